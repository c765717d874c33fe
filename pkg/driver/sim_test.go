package driver

import (
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"

	"github.com/robotalks/max1187x/pkg/bootloader/bltest"
	"github.com/robotalks/max1187x/pkg/mtp"
)

var errNoData = errors.New("no report pending")

// simController answers commands with queued report packets and raises
// an interrupt for every packet pending. Transactions addressed to the
// bootloader are forwarded to bl.
type simController struct {
	lock     sync.Mutex
	addr     uint16
	packets  [][]uint16
	commands [][]uint16
	partial  []uint16
	reads    int
	respond  func(cmd []uint16) [][]uint16
	irq      func()
	bl       *bltest.Device
}

func report(id uint16, data ...uint16) []uint16 {
	return append([]uint16{uint16(mtp.OnePacketSeq)<<8 | uint16(len(data)+2), id, uint16(len(data))}, data...)
}

func touchReport(counter uint16, ids ...uint16) []uint16 {
	data := []uint16{uint16(len(ids)), 0, counter}
	for _, id := range ids {
		data = append(data, id, 0x100+id, 0x200+id, 50, 0, 0, 0, 30, 1, 2, 3, 4)
	}
	return report(mtp.RptExtTouchInfo, data...)
}

func (s *simController) bootloader() bool {
	return s.bl != nil && s.bl.InBootloader()
}

func (s *simController) queue(pkts ...[]uint16) {
	s.lock.Lock()
	s.packets = append(s.packets, pkts...)
	irq := s.irq
	s.lock.Unlock()
	if irq != nil && len(pkts) > 0 {
		irq()
	}
}

func (s *simController) Send(p []byte) (int, error) {
	if s.bl != nil && (bltest.IsSequence(p) || s.bl.InBootloader()) {
		return s.bl.Send(p)
	}
	s.lock.Lock()
	if len(p) == 2 {
		s.addr = binary.LittleEndian.Uint16(p)
		s.lock.Unlock()
		return 2, nil
	}
	words := make([]uint16, len(p)/2)
	for i := range words {
		words[i] = binary.LittleEndian.Uint16(p[i*2:])
	}
	hdr := words[1]
	s.partial = append(s.partial, words[2:]...)
	if int(hdr>>8)&0x0F != int(hdr>>12) {
		s.lock.Unlock()
		return len(p), nil
	}
	cmd := s.partial
	s.partial = nil
	s.commands = append(s.commands, cmd)
	respond := s.respond
	s.lock.Unlock()
	if respond != nil {
		s.queue(respond(cmd)...)
	}
	return len(p), nil
}

func (s *simController) Receive(p []byte) (int, error) {
	if s.bootloader() {
		return s.bl.Receive(p)
	}
	s.lock.Lock()
	s.reads++
	if len(s.packets) == 0 {
		s.lock.Unlock()
		return 0, errNoData
	}
	pkt := s.packets[0]
	offset := int(s.addr - mtp.RptStartAddr)
	n := len(p) &^ 1
	for i := 0; i < n; i += 2 {
		var w uint16
		if idx := offset + i/2; idx < len(pkt) {
			w = pkt[idx]
		}
		binary.LittleEndian.PutUint16(p[i:], w)
	}
	var more bool
	if offset+n/2 >= len(pkt) && (offset > 0 || n > 4) {
		s.packets = s.packets[1:]
		more = len(s.packets) > 0
	}
	irq := s.irq
	s.lock.Unlock()
	if more && irq != nil {
		irq()
	}
	return n, nil
}

// reportReads counts reads of the report window.
func (s *simController) reportReads() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.reads
}

func (s *simController) sentCommands() [][]uint16 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([][]uint16(nil), s.commands...)
}
