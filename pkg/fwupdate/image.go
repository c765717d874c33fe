package fwupdate

import (
	"io/ioutil"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/max1187x/pkg/crc16"
)

// MaxImageSize is the largest image the bootloader can address.
const MaxImageSize = 0xFFFF

// Image is a raw firmware binary. The first CodeSize bytes are the
// code region checked before deciding to reflash.
type Image struct {
	Data     []byte
	CodeSize int
}

// Validate checks the image sizes.
func (img *Image) Validate() error {
	if len(img.Data) == 0 || len(img.Data) > MaxImageSize {
		return errors.Wrapf(ErrImageSize, "image of %d bytes", len(img.Data))
	}
	if img.CodeSize <= 0 || img.CodeSize > len(img.Data) {
		return errors.Wrapf(ErrImageSize, "code size %d of %d bytes", img.CodeSize, len(img.Data))
	}
	return nil
}

// CodeCRC is the CRC of the code region.
func (img *Image) CodeCRC() uint16 {
	return crc16.Checksum(img.Data[:img.CodeSize])
}

// CRC is the CRC of the whole image.
func (img *Image) CRC() uint16 {
	return crc16.Checksum(img.Data)
}

// Mapping selects a firmware file for a chip and touch configuration.
type Mapping struct {
	ChipID   uint16 `yaml:"chip_id" json:"chip_id"`
	ConfigID uint16 `yaml:"config_id" json:"config_id"`
	Filename string `yaml:"filename" json:"filename"`
	FileSize int    `yaml:"filesize" json:"filesize"`
	CodeSize int    `yaml:"file_codesize" json:"file_codesize"`
}

// Catalog lists the firmware files available.
type Catalog struct {
	Dir string `yaml:"dir" json:"dir"`
	// DefaultsAllow permits an update with the default IDs when the
	// device doesn't answer identification queries.
	DefaultsAllow   bool      `yaml:"defaults_allow" json:"defaults_allow"`
	DefaultChipID   uint16    `yaml:"default_chip_id" json:"default_chip_id"`
	DefaultConfigID uint16    `yaml:"default_config_id" json:"default_config_id"`
	Mappings        []Mapping `yaml:"mappings" json:"mappings"`
}

// Lookup finds the mapping for the IDs. A zero ID is replaced by the
// default one.
func (c *Catalog) Lookup(chipID, configID uint16) (*Mapping, error) {
	if chipID == 0 {
		chipID = c.DefaultChipID
	}
	if configID == 0 {
		configID = c.DefaultConfigID
	}
	for i := range c.Mappings {
		if m := &c.Mappings[i]; m.ChipID == chipID && m.ConfigID == configID {
			return m, nil
		}
	}
	return nil, errors.Wrapf(ErrNoFirmware, "config_id %04x chip_id %04x", configID, chipID)
}

// Load reads the firmware file of the mapping and checks its size.
func (c *Catalog) Load(m *Mapping) (*Image, error) {
	fn := m.Filename
	if !filepath.IsAbs(fn) && c.Dir != "" {
		fn = filepath.Join(c.Dir, fn)
	}
	glog.Infof("firmware file %s", fn)
	data, err := ioutil.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	if len(data) != m.FileSize {
		return nil, errors.Wrapf(ErrImageSize, "%s has %d bytes, expect %d", fn, len(data), m.FileSize)
	}
	img := &Image{Data: data, CodeSize: m.CodeSize}
	if err = img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}
