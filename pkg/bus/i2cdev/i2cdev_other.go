//go:build !linux

package i2cdev

import (
	"github.com/pkg/errors"
)

// ErrUnsupported is returned on platforms without i2c-dev.
var ErrUnsupported = errors.New("i2c-dev is only supported on linux")

// Bus is unavailable on this platform.
type Bus struct{}

// Open always fails.
func Open(path string, addr uint) (*Bus, error) {
	return nil, ErrUnsupported
}

// Send implements mtp.Bus.
func (b *Bus) Send(p []byte) (int, error) {
	return 0, ErrUnsupported
}

// Receive implements mtp.Bus.
func (b *Bus) Receive(p []byte) (int, error) {
	return 0, ErrUnsupported
}

// Close implements io.Closer.
func (b *Bus) Close() error {
	return nil
}
