//go:build linux

package i2cdev

import (
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/robotalks/max1187x/pkg/mtp"
)

// I2CSlave is the ioctl selecting the slave address.
const I2CSlave = 0x0703

// Bus is an opened i2c-dev device bound to one slave address.
type Bus struct {
	Path    string
	Address uint

	lock sync.Mutex
	fd   int
}

// Open opens the device and selects the slave address.
func Open(path string, addr uint) (*Bus, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if err = unix.IoctlSetInt(fd, I2CSlave, int(addr)); err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(err, "%s select address %#x", path, addr)
	}
	glog.Infof("opened %s address %#x", path, addr)
	return &Bus{Path: path, Address: addr, fd: fd}, nil
}

// Send implements mtp.Bus.
func (b *Bus) Send(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	n, err := unix.Write(b.fd, p)
	return n, mapErr(err)
}

// Receive implements mtp.Bus.
func (b *Bus) Receive(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	n, err := unix.Read(b.fd, p)
	return n, mapErr(err)
}

// Close implements io.Closer.
func (b *Bus) Close() error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.fd < 0 {
		return nil
	}
	err := unix.Close(b.fd)
	b.fd = -1
	return err
}

func mapErr(err error) error {
	switch err {
	case nil:
		return nil
	case unix.EAGAIN:
		return mtp.ErrAgain
	}
	return err
}
