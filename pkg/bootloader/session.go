package bootloader

import (
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/max1187x/pkg/mtp"
)

// Register addresses and codes.
const (
	StatusAddrL byte = 0xFF
	StatusAddrH byte = 0x00
	DataAddrL   byte = 0xFE
	DataAddrH   byte = 0x00

	StatusReadyL byte = 0xCC
	StatusReadyH byte = 0xAB
	DataReadyL   byte = 0x3E
	DataReadyH   byte = 0x00

	RxTxCompleteL byte = 0x32
	RxTxCompleteH byte = 0x54
)

// Commands written to the data register.
const (
	cmdEraseFlash    byte = 0x02
	cmdSetByteMode   byte = 0x0A
	cmdFastWriteL    byte = 0xF0
	cmdGetCRCL       byte = 0x30
	cmdGetCRCH       byte = 0x02
	writeStartAddr   byte = 0x00
	writeBuffer0Addr byte = 0x00
	writeBuffer1Addr byte = 0x40
)

// Magic sequences are written as word pairs to the normal command window.
const (
	seqPrefix uint16 = 0x7F00
)

var (
	enterSequence = []uint16{0x0047, 0x00C7, 0x0007}
	exitSequence  = []uint16{0x0040, 0x00C0, 0x0000}
)

// Retry bounds and delays.
const (
	EnterConfRetries    = 5
	ByteModeConfRetries = 10
	EraseConfRetries    = 10
	StatusRetries       = 3
	WriteStatusRetries  = 100
	WriteConfRetries    = 5
	CRCConfRetries      = 5

	EraseDelay       = 60 * time.Millisecond
	WriteStatusDelay = time.Millisecond
	WriteConfDelay   = 10 * time.Millisecond

	// DefaultCRCDelay is the time the device needs to compute a CRC.
	DefaultCRCDelay = 200 * time.Millisecond

	// BlockSize is the number of image bytes in one write transaction.
	BlockSize = 128
)

// Mode is the state of the bootloader session.
type Mode int

// Modes
const (
	ModeNormal Mode = iota
	ModeEntering
	ModeEntered
	ModeErasing
	ModeSettingByteMode
	ModeWriting
	ModeReadingCRC
	ModeExiting
)

var modeNames = []string{
	"normal", "entering", "entered", "erasing",
	"byte-mode", "writing", "reading-crc", "exiting",
}

func (m Mode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Stats counts polls which did not succeed at first, per phase.
type Stats struct {
	EnterRetries int
	EraseRetries int
	WriteRetries int
	CRCRetries   int
}

// Session drives the bootloader over a Link. The caller must hold the
// transport exclusively for the lifetime of the session, the registers
// overlap the ones used by normal report traffic.
type Session struct {
	Link *mtp.Link
	// Sleep waits between polls, it's time.Sleep by default.
	Sleep func(time.Duration)

	mode  Mode
	stats Stats
}

// NewSession creates a Session.
func NewSession(link *mtp.Link) *Session {
	return &Session{Link: link, Sleep: time.Sleep}
}

// Mode returns the current mode.
func (s *Session) Mode() Mode {
	return s.mode
}

// Stats returns the retry counters.
func (s *Session) Stats() Stats {
	return s.stats
}

// Enter writes the enter sequence and waits for the data register to
// confirm the bootloader is ready.
func (s *Session) Enter() error {
	s.mode = ModeEntering
	if err := s.writeSequence(enterSequence); err != nil {
		glog.Errorf("failed to enter bootloader: %v", err)
		return errors.Wrapf(ErrEnterFailed, "%v", err)
	}
	retries, err := s.cmdConf(EnterConfRetries)
	s.stats.EnterRetries += retries
	if err != nil {
		glog.Errorf("failed to enter bootloader mode: %v", err)
		return errors.Wrapf(ErrEnterFailed, "no confirmation: %v", err)
	}
	s.mode = ModeEntered
	return nil
}

// Exit writes the exit sequence. The session is considered in normal
// mode afterwards even if the sequence failed.
func (s *Session) Exit() error {
	s.mode = ModeExiting
	err := s.writeSequence(exitSequence)
	s.mode = ModeNormal
	if err != nil {
		glog.Errorf("failed to exit bootloader: %v", err)
	}
	return err
}

// EraseFlash erases the application flash.
func (s *Session) EraseFlash() error {
	done, err := s.begin(ModeErasing)
	if err != nil {
		return err
	}
	defer done()

	if err = s.writeData(cmdEraseFlash, 0x00); err != nil {
		return errors.Wrapf(ErrEraseFailed, "%v", err)
	}
	for i := 0; i < EraseConfRetries; i++ {
		s.Sleep(EraseDelay)
		if _, err = s.cmdConf(0); err == nil {
			return nil
		}
		s.stats.EraseRetries++
	}
	glog.Error("flash erase failed")
	return errors.Wrapf(ErrEraseFailed, "no confirmation after %d polls", EraseConfRetries)
}

// SetByteMode switches the bootloader to byte addressing before writing.
func (s *Session) SetByteMode() error {
	done, err := s.begin(ModeSettingByteMode)
	if err != nil {
		return err
	}
	defer done()

	if err = s.writeBuffer([]byte{cmdSetByteMode, 0x00}); err != nil {
		return err
	}
	if _, err = s.cmdConf(ByteModeConfRetries); err != nil {
		glog.Errorf("set byte mode not confirmed: %v", err)
		return err
	}
	return nil
}

// WriteFlash programs image from the start of flash in blocks of
// BlockSize bytes. Trailing bytes not filling a block are not written.
func (s *Session) WriteFlash(image []byte) error {
	done, err := s.begin(ModeWriting)
	if err != nil {
		return err
	}
	defer done()

	if len(image) > 0xFFFF {
		return errors.Wrapf(ErrFlashWriteFailed, "image of %d bytes too large", len(image))
	}
	length := uint16(len(image))
	cmd := []byte{cmdFastWriteL, 0x00, byte(length >> 8), byte(length), writeStartAddr}
	if err = s.writeBuffer(cmd); err != nil {
		return errors.Wrapf(ErrFlashWriteFailed, "%v", err)
	}

	blocks := int(length) / BlockSize
	buf := make([]byte, BlockSize+2)
	for i := 0; i < blocks; i++ {
		ready := false
		for j := 0; j < WriteStatusRetries; j++ {
			s.Sleep(WriteStatusDelay)
			if s.readStatus(StatusReadyL, StatusReadyH) == nil {
				ready = true
				break
			}
			s.stats.WriteRetries++
		}
		if !ready {
			glog.Errorf("block %d: status register not ready", i)
			return errors.Wrapf(ErrFlashWriteFailed, "block %d: status not ready", i)
		}

		buf[0] = writeBuffer0Addr
		if i%2 != 0 {
			buf[0] = writeBuffer1Addr
		}
		buf[1] = 0x00
		copy(buf[2:], image[i*BlockSize:(i+1)*BlockSize])
		if err = s.send(buf); err != nil {
			glog.Errorf("failed to write block %d: %v", i, err)
			return errors.Wrapf(ErrFlashWriteFailed, "block %d: %v", i, err)
		}
		if err = s.rxtxComplete(); err != nil {
			glog.Errorf("block %d transfer failure: %v", i, err)
			return errors.Wrapf(ErrFlashWriteFailed, "block %d: %v", i, err)
		}
	}

	s.Sleep(WriteConfDelay)
	if _, err = s.cmdConf(WriteConfRetries); err != nil {
		glog.Error("flash programming failed")
		return errors.Wrapf(ErrFlashWriteFailed, "programming not confirmed: %v", err)
	}
	return nil
}

// GetCRC asks the device for the CRC of length bytes of flash from addr.
// delay is the time granted to the device for the computation.
func (s *Session) GetCRC(addr, length uint16, delay time.Duration) (uint16, error) {
	done, err := s.begin(ModeReadingCRC)
	if err != nil {
		return 0, err
	}
	defer done()

	cmd := []byte{cmdGetCRCL, cmdGetCRCH, byte(addr), byte(addr >> 8), byte(length), byte(length >> 8)}
	if err = s.writeBuffer(cmd); err != nil {
		return 0, errors.Wrapf(ErrCRCReadFailed, "%v", err)
	}
	s.Sleep(delay)

	lo, _, err := s.readData()
	if err != nil {
		glog.Errorf("failed to read low byte of CRC: %v", err)
		return 0, errors.Wrapf(ErrCRCReadFailed, "low byte: %v", err)
	}
	hi, _, err := s.readData()
	if err != nil {
		glog.Errorf("failed to read high byte of CRC: %v", err)
		return 0, errors.Wrapf(ErrCRCReadFailed, "high byte: %v", err)
	}
	retries, err := s.cmdConf(CRCConfRetries)
	s.stats.CRCRetries += retries
	if err != nil {
		return 0, errors.Wrapf(ErrCRCReadFailed, "not confirmed: %v", err)
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

func (s *Session) begin(m Mode) (func(), error) {
	if s.mode != ModeEntered {
		return nil, errors.Wrapf(ErrNotInBootloader, "%s requested in %s", m, s.mode)
	}
	s.mode = m
	return func() { s.mode = ModeEntered }, nil
}

func (s *Session) writeSequence(seq []uint16) error {
	for _, w := range seq {
		sent, err := s.Link.SendWords([]uint16{seqPrefix, w})
		if err != nil {
			return errors.Wrapf(ErrIO, "sequence %04x: %v", w, err)
		}
		if sent != 2 {
			return errors.Wrapf(ErrIO, "sequence %04x: sent %d words", w, sent)
		}
	}
	return nil
}

func (s *Session) send(p []byte) error {
	n, err := s.Link.SendBytes(p)
	if err != nil {
		return errors.Wrapf(ErrIO, "TX fail: %v", err)
	}
	if n != len(p) {
		return errors.Wrapf(ErrIO, "TX fail: sent %d of %d bytes", n, len(p))
	}
	return nil
}

func (s *Session) receive(p []byte) error {
	n, err := s.Link.ReceiveBytes(p)
	if err != nil {
		return errors.Wrapf(ErrIO, "RX fail: %v", err)
	}
	if n != len(p) {
		return errors.Wrapf(ErrIO, "RX fail: received %d of %d bytes", n, len(p))
	}
	return nil
}

func (s *Session) readStatus(l, h byte) error {
	buf := make([]byte, 2)
	for i := 0; i < StatusRetries; i++ {
		if err := s.send([]byte{StatusAddrL, StatusAddrH}); err != nil {
			return err
		}
		if err := s.receive(buf); err != nil {
			return err
		}
		if buf[0] == l && buf[1] == h {
			return nil
		}
	}
	return errors.Wrapf(ErrIO, "unexpected status %02x%02x vs %02x%02x", buf[0], buf[1], l, h)
}

func (s *Session) rxtxComplete() error {
	return s.send([]byte{StatusAddrL, StatusAddrH, RxTxCompleteL, RxTxCompleteH})
}

func (s *Session) readData() (l, h byte, err error) {
	if err = s.send([]byte{DataAddrL, DataAddrH}); err != nil {
		return
	}
	buf := make([]byte, 4)
	if err = s.receive(buf); err != nil {
		return
	}
	if buf[2] != StatusReadyL || buf[3] != StatusReadyH {
		return 0, 0, errors.Wrapf(ErrIO, "status not ready: %02x%02x", buf[2], buf[3])
	}
	return buf[0], buf[1], s.rxtxComplete()
}

func (s *Session) writeData(l, h byte) error {
	if err := s.readStatus(StatusReadyL, StatusReadyH); err != nil {
		return err
	}
	return s.send([]byte{DataAddrL, DataAddrH, l, h, RxTxCompleteL, RxTxCompleteH})
}

func (s *Session) writeBuffer(p []byte) error {
	for _, b := range p {
		if err := s.writeData(b, writeStartAddr); err != nil {
			return err
		}
	}
	return nil
}

// cmdConf polls the data register for the data ready code. The register
// is read at least once. It returns the number of polls that failed.
func (s *Session) cmdConf(retries int) (int, error) {
	var failed int
	for {
		l, h, err := s.readData()
		if err == nil && l == DataReadyL && h == DataReadyH {
			return failed, nil
		}
		failed++
		if retries--; retries <= 0 {
			if err == nil {
				err = errors.Wrapf(ErrIO, "data %02x%02x", l, h)
			}
			return failed, err
		}
	}
}
