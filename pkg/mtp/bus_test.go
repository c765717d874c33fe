package mtp

import (
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
)

// fakeDevice emulates the register window of a controller. Writing a
// single word selects the read address, longer writes are commands.
// Reads return words of the queued report packet from the selected address.
// Words beyond the packet read as zero. Packets queued must carry at
// least two words after the header.
type fakeDevice struct {
	lock     sync.Mutex
	addr     uint16
	packets  [][]uint16
	commands [][]uint16
	again    int
	sendErr  error
	sendCut  int
	recvCut  int
	onCmd    func(cmd []uint16)
}

func (d *fakeDevice) queue(pkts ...[]uint16) {
	d.lock.Lock()
	d.packets = append(d.packets, pkts...)
	d.lock.Unlock()
}

func (d *fakeDevice) Send(p []byte) (int, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.again > 0 {
		d.again--
		return 0, ErrAgain
	}
	if d.sendErr != nil {
		return 0, d.sendErr
	}
	if len(p) == 2 {
		d.addr = binary.LittleEndian.Uint16(p)
		return 2, nil
	}
	n := len(p)
	if d.sendCut > 0 && d.sendCut < n {
		n = d.sendCut
	}
	cmd := make([]uint16, len(p)/2)
	for i := range cmd {
		cmd[i] = binary.LittleEndian.Uint16(p[i*2:])
	}
	d.commands = append(d.commands, cmd)
	if d.onCmd != nil {
		go d.onCmd(cmd)
	}
	return n, nil
}

func (d *fakeDevice) Receive(p []byte) (int, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if len(d.packets) == 0 {
		return 0, errors.New("no data")
	}
	pkt := d.packets[0]
	offset := int(d.addr - RptStartAddr)
	n := len(p) &^ 1
	for i := 0; i < n; i += 2 {
		var w uint16
		if idx := offset + i/2; idx < len(pkt) {
			w = pkt[idx]
		}
		binary.LittleEndian.PutUint16(p[i:], w)
	}
	if d.recvCut > 0 && d.recvCut < n {
		n = d.recvCut
	}
	// a read reaching the end of the packet consumes it, except the
	// two word header read
	if offset+len(p)/2 >= len(pkt) && (offset > 0 || len(p) > 4) {
		d.packets = d.packets[1:]
	}
	return n, nil
}

func (d *fakeDevice) sentCommands() [][]uint16 {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([][]uint16(nil), d.commands...)
}
