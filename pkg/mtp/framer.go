package mtp

import (
	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Framer sends commands and reads report packets over a Link.
// Framer is not safe for concurrent use.
type Framer struct {
	Link *Link
	// Window is the number of words read in one transaction while the
	// device streams raw touch images. Zero disables the raw image mode.
	Window int

	rawMode bool
}

// NewFramer creates a Framer.
func NewFramer(link *Link, window int) *Framer {
	return &Framer{Link: link, Window: window}
}

// RawMode indicates reports are read in fixed size windows.
func (f *Framer) RawMode() bool {
	return f.rawMode
}

// Reset leaves the raw image mode.
func (f *Framer) Reset() {
	f.rawMode = false
}

// SendCommand packetizes and sends command words. A failure on any
// packet fails the whole command, nothing is retried.
func (f *Framer) SendCommand(words []uint16) error {
	packets, err := EncodeCommand(words)
	if err != nil {
		return err
	}
	buf := make([]uint16, 0, CmdPacketMaxWords+2)
	for n, pkt := range packets {
		buf = append(append(buf[:0], CmdStartAddr), pkt...)
		sent, err := f.Link.SendWords(buf)
		if err != nil {
			return errors.Wrapf(err, "command packet %d", n)
		}
		if sent != len(buf) {
			return errors.Wrapf(ErrTransportShortWrite,
				"command packet %d: transmitted %d expected %d words", n, sent, len(buf))
		}
	}
	return nil
}

// ReadReportPacket reads one report packet.
func (f *Framer) ReadReportPacket() (*Packet, error) {
	if err := f.setAddress(RptStartAddr); err != nil {
		return nil, err
	}
	if f.rawMode && f.Window >= 2 {
		return f.readWindowed()
	}

	hdr, err := f.Link.ReceiveWords(2)
	if err != nil {
		return nil, err
	}
	if len(hdr) != 2 || int(hdr[0]&0xFF) > RptPacketMaxWords {
		return nil, errors.Wrapf(ErrTransportShortRead,
			"received %d expected 2 words, header %04x", len(hdr), headerOf(hdr))
	}
	pkt := &Packet{Words: hdr}
	if f.Window >= 2 && pkt.Number() == 1 && pkt.ReportID() == RptTouchRawImage {
		glog.V(2).Info("raw image mode on")
		f.rawMode = true
	}

	count := pkt.Size() + 1
	if err = f.setAddress(RptStartAddr); err != nil {
		return nil, err
	}
	words, err := f.Link.ReceiveWords(count)
	if err != nil {
		return nil, err
	}
	if len(words) != count {
		return nil, errors.Wrapf(ErrTransportShortRead,
			"received %d expected %d words", len(words), count)
	}
	return &Packet{Words: words}, nil
}

func (f *Framer) readWindowed() (*Packet, error) {
	words, err := f.Link.ReceiveWords(f.Window)
	if err != nil {
		return nil, err
	}
	if len(words) != f.Window || int(words[0]&0xFF) > RptPacketMaxWords {
		return nil, errors.Wrapf(ErrTransportShortRead,
			"received %d expected %d words, header %04x", len(words), f.Window, headerOf(words))
	}
	pkt := &Packet{Words: words}
	if pkt.Number() == 1 && pkt.ReportID() != RptTouchRawImage {
		glog.V(2).Info("raw image mode off")
		f.rawMode = false
	}

	count := pkt.Size() + 1
	if count <= f.Window {
		pkt.Words = words[:count]
		return pkt, nil
	}

	addr := RptStartAddr + uint16(f.Window)
	if err = f.setAddress(addr); err != nil {
		return nil, err
	}
	rest, err := f.Link.ReceiveWords(count - f.Window)
	if err != nil {
		return nil, err
	}
	if len(rest) != count-f.Window {
		return nil, errors.Wrapf(ErrTransportShortRead,
			"at %04x received %d expected %d words", addr, len(rest), count-f.Window)
	}
	pkt.Words = append(words, rest...)
	return pkt, nil
}

func (f *Framer) setAddress(addr uint16) error {
	sent, err := f.Link.SendWords([]uint16{addr})
	if err != nil {
		return err
	}
	if sent != 1 {
		return errors.Wrapf(ErrTransportShortWrite, "failed to set address %04x", addr)
	}
	return nil
}

func headerOf(words []uint16) uint16 {
	if len(words) == 0 {
		return 0
	}
	return words[0]
}
