package fwupdate

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogLookup(t *testing.T) {
	c := &Catalog{
		DefaultChipID:   0x75,
		DefaultConfigID: 0x0E01,
		Mappings: []Mapping{
			{ChipID: 0x55, ConfigID: 0x0E01, Filename: "max11871.bin"},
			{ChipID: 0x75, ConfigID: 0x0E01, Filename: "max11876.bin"},
		},
	}
	testCases := []struct {
		name     string
		chip     uint16
		config   uint16
		filename string
	}{
		{"exact", 0x55, 0x0E01, "max11871.bin"},
		{"default chip", 0, 0x0E01, "max11876.bin"},
		{"all defaults", 0, 0, "max11876.bin"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := c.Lookup(tc.chip, tc.config)
			require.NoError(t, err)
			assert.Equal(t, tc.filename, m.Filename)
		})
	}
	_, err := c.Lookup(0x55, 0x0F00)
	assert.ErrorIs(t, err, ErrNoFirmware)
}

func TestCatalogLoad(t *testing.T) {
	dir, err := ioutil.TempDir("", "fwupdate")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	data := testImage().Data
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "fw.bin"), data, 0644))

	c := &Catalog{Dir: dir}
	img, err := c.Load(&Mapping{Filename: "fw.bin", FileSize: len(data), CodeSize: 256})
	require.NoError(t, err)
	assert.Equal(t, data, img.Data)
	assert.Equal(t, 256, img.CodeSize)

	_, err = c.Load(&Mapping{Filename: "fw.bin", FileSize: len(data) + 1, CodeSize: 256})
	assert.ErrorIs(t, err, ErrImageSize)
	_, err = c.Load(&Mapping{Filename: "missing.bin", FileSize: 1, CodeSize: 1})
	assert.Error(t, err)
}
