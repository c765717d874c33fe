package i2cdev

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGPIOReset(t *testing.T) {
	dir, err := ioutil.TempDir("", "gpio")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	fn := filepath.Join(dir, "value")
	require.NoError(t, ioutil.WriteFile(fn, []byte("1"), 0644))

	g := NewGPIOReset(fn)
	var levels []string
	var sleeps []time.Duration
	g.Sleep = func(d time.Duration) {
		data, err := ioutil.ReadFile(fn)
		require.NoError(t, err)
		levels = append(levels, string(data))
		sleeps = append(sleeps, d)
	}
	require.NoError(t, g.PowerCycle())
	assert.Equal(t, []string{"0", "1"}, levels)
	assert.Equal(t, []time.Duration{DefaultResetHold, DefaultResetSettle}, sleeps)

	g.ValuePath = filepath.Join(dir, "missing", "value")
	assert.Error(t, g.PowerCycle())
}
