// Package bltest provides a simulated bootloader for tests.
package bltest

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/robotalks/max1187x/pkg/crc16"
)

var (
	enterSeq = []byte{0x47, 0xC7, 0x07}
	exitSeq  = []byte{0x40, 0xC0, 0x00}

	dataReady = [2]byte{0x3E, 0x00}
)

// ErrUnexpected is returned for transactions the bootloader doesn't understand.
var ErrUnexpected = errors.New("unexpected bootloader transaction")

// Device emulates the status and data registers of the bootloader and
// implements mtp.Bus. The zero value is a device in normal mode with an
// empty flash.
type Device struct {
	// Flash is the programmed flash content.
	Flash []byte

	// FailEnter leaves that many enter sequences unconfirmed.
	FailEnter int
	// FailErase leaves that many erase commands unconfirmed.
	FailErase int
	// CorruptWrites flips a bit in that many programmed images.
	CorruptWrites int
	// NotReady makes that many status reads return busy.
	NotReady int

	// Transaction counters.
	Enters  int
	Exits   int
	Erases  int
	Writes  int
	Buffers []byte

	lock      sync.Mutex
	active    bool
	enterStep int
	exitStep  int
	selected  byte
	cmd       []byte
	writeLen  int
	written   []byte
	corrupt   bool
	data      [][2]byte
}

// InBootloader indicates the enter sequence was completed.
func (d *Device) InBootloader() bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.active
}

// IsSequence tells whether p is an enter or exit sequence transaction.
func IsSequence(p []byte) bool {
	return len(p) == 4 && p[0] == 0x00 && p[1] == 0x7F
}

// Send implements mtp.Bus.
func (d *Device) Send(p []byte) (int, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	switch {
	case IsSequence(p):
		d.sequence(p[2])
		return len(p), nil
	case !d.active:
		return 0, errors.Wrapf(ErrUnexpected, "% 02x in normal mode", p)
	case len(p) == 130 && (p[0] == 0x00 || p[0] == 0x40):
		d.block(p)
		return len(p), nil
	case len(p) == 2 && (p[0] == 0xFF || p[0] == 0xFE) && p[1] == 0x00:
		d.selected = p[0]
		return len(p), nil
	case len(p) == 4 && p[0] == 0xFF && p[1] == 0x00 && p[2] == 0x32 && p[3] == 0x54:
		return len(p), nil
	case len(p) == 6 && p[0] == 0xFE && p[1] == 0x00 && p[4] == 0x32 && p[5] == 0x54:
		d.command(p[2])
		return len(p), nil
	}
	return 0, errors.Wrapf(ErrUnexpected, "% 02x", p)
}

// Receive implements mtp.Bus.
func (d *Device) Receive(p []byte) (int, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if !d.active {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	var reg []byte
	switch d.selected {
	case 0xFF:
		reg = []byte{0xCC, 0xAB}
		if d.NotReady > 0 {
			d.NotReady--
			reg = []byte{0x00, 0x00}
		}
	case 0xFE:
		var v [2]byte
		if len(d.data) > 0 {
			v, d.data = d.data[0], d.data[1:]
		}
		reg = []byte{v[0], v[1], 0xCC, 0xAB}
	default:
		return 0, errors.Wrap(ErrUnexpected, "no register selected")
	}
	return copy(p, reg), nil
}

func (d *Device) sequence(h byte) {
	if h == enterSeq[d.enterStep] {
		d.enterStep++
	} else {
		d.enterStep = 0
	}
	if h == exitSeq[d.exitStep] {
		d.exitStep++
	} else {
		d.exitStep = 0
	}
	if d.enterStep == len(enterSeq) {
		d.enterStep = 0
		d.Enters++
		if d.FailEnter > 0 {
			d.FailEnter--
			return
		}
		d.active = true
		d.data = append(d.data[:0], dataReady)
	}
	if d.exitStep == len(exitSeq) {
		d.exitStep = 0
		d.Exits++
		d.active = false
		d.cmd, d.data = nil, nil
	}
}

func (d *Device) command(b byte) {
	d.cmd = append(d.cmd, b)
	switch d.cmd[0] {
	case 0x02:
		d.cmd = nil
		d.Erases++
		if d.FailErase > 0 {
			d.FailErase--
			return
		}
		d.Flash = nil
		d.data = append(d.data, dataReady)
	case 0x0A:
		if len(d.cmd) == 2 {
			d.cmd = nil
			d.data = append(d.data, dataReady)
		}
	case 0xF0:
		if len(d.cmd) == 5 {
			d.writeLen = int(d.cmd[2])<<8 | int(d.cmd[3])
			d.cmd, d.written = nil, nil
			d.Writes++
			d.corrupt = d.CorruptWrites > 0
			if d.corrupt {
				d.CorruptWrites--
			}
			if d.writeLen < 128 {
				d.program()
			}
		}
	case 0x30:
		if len(d.cmd) == 6 {
			addr := int(d.cmd[2]) | int(d.cmd[3])<<8
			length := int(d.cmd[4]) | int(d.cmd[5])<<8
			d.cmd = nil
			var crc uint16
			if addr+length <= len(d.Flash) {
				crc = crc16.Checksum(d.Flash[addr : addr+length])
			} else {
				crc = ^crc16.Checksum(d.Flash)
			}
			d.data = append(d.data, [2]byte{byte(crc), 0}, [2]byte{byte(crc >> 8), 0}, dataReady)
		}
	default:
		d.cmd = nil
	}
}

func (d *Device) block(p []byte) {
	d.Buffers = append(d.Buffers, p[0])
	d.written = append(d.written, p[2:]...)
	if len(d.written) >= d.writeLen&^127 {
		d.program()
	}
}

func (d *Device) program() {
	d.Flash = append([]byte(nil), d.written...)
	if d.corrupt && len(d.Flash) > 0 {
		d.Flash[0] ^= 0x01
	}
	d.data = append(d.data, dataReady)
}
