//go:build linux

package i2cdev

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"

	"github.com/robotalks/max1187x/pkg/mtp"
)

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr(nil))
	assert.Equal(t, mtp.ErrAgain, mapErr(unix.EAGAIN))
	assert.Equal(t, unix.EIO, mapErr(unix.EIO))
}

func TestOpenMissing(t *testing.T) {
	_, err := Open("/nonexistent/i2c-0", 0x48)
	assert.Error(t, err)
}
