package mtp

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Framing limits, in words.
const (
	CmdPacketMaxWords = 9
	CmdMaxWords       = 15 * CmdPacketMaxWords
	CmdMinWords       = 2
	RptPacketMaxWords = 245
	RptMaxWords       = 1000

	// rptFragmentWords is the payload size of every non-final fragment.
	rptFragmentWords = 0xF4
)

// Register addresses.
const (
	CmdStartAddr uint16 = 0x0000
	RptStartAddr uint16 = 0x000A
)

// OnePacketSeq is the sequence byte of a report contained in one packet.
const OnePacketSeq byte = 0x11

// Command IDs.
const (
	CmdGetConfigInfo      uint16 = 0x0002
	CmdSetTouchRptMode    uint16 = 0x0018
	CmdSetPowerMode       uint16 = 0x0020
	CmdGetFirmwareVersion uint16 = 0x0040
	CmdResetSystem        uint16 = 0x00E9
)

// Report IDs.
const (
	RptConfigInfo    uint16 = 0x0102
	RptPowerMode     uint16 = 0x0121
	RptFirmwareVer   uint16 = 0x0140
	RptSystemStatus  uint16 = 0x01A0
	RptTouchRawImage uint16 = 0x0800
	RptExtTouchInfo  uint16 = 0x0802

	// AnyReport matches all reports when used as a filter.
	AnyReport uint16 = 0xFFFF
)

// Packet is one report packet read from the device, header word included.
type Packet struct {
	Words []uint16
}

// Header returns the packet header word.
func (p *Packet) Header() uint16 {
	return p.Words[0]
}

// Seq returns the sequence byte: total packets in the high nibble and
// packet number in the low nibble.
func (p *Packet) Seq() byte {
	return byte(p.Words[0] >> 8)
}

// Size returns the number of words following the header.
func (p *Packet) Size() int {
	return int(p.Words[0] & 0xFF)
}

// TotalPackets returns the number of packets of the report.
func (p *Packet) TotalPackets() int {
	return int(p.Seq() >> 4)
}

// Number returns the 1-based packet number within the report.
func (p *Packet) Number() int {
	return int(p.Seq() & 0x0F)
}

// ReportID returns the report ID, valid on single packet reports and
// on the first packet of a multi-packet report.
func (p *Packet) ReportID() uint16 {
	if len(p.Words) < 2 {
		return 0
	}
	return p.Words[1]
}

// Report is a completely received report. Words[0] is the header word of
// the first packet and Words[1] the report ID, so payload word i of the
// device documentation is Words[i].
type Report struct {
	Words []uint16
}

// ID returns the report ID.
func (r *Report) ID() uint16 {
	if len(r.Words) < 2 {
		return 0
	}
	return r.Words[1]
}

// Len returns the report length in words, header excluded.
func (r *Report) Len() int {
	return len(r.Words) - 1
}

// Payload returns the words following the header, starting with the ID.
func (r *Report) Payload() []uint16 {
	return r.Words[1:]
}

// Word returns the word at index i, or 0 if the report is shorter.
func (r *Report) Word(i int) uint16 {
	if i < 0 || i >= len(r.Words) {
		return 0
	}
	return r.Words[i]
}

// Clone makes a deep copy.
func (r *Report) Clone() *Report {
	words := make([]uint16, len(r.Words))
	copy(words, r.Words)
	return &Report{Words: words}
}

// NewCommand builds command words from an ID and payload.
func NewCommand(id uint16, payload ...uint16) []uint16 {
	words := make([]uint16, 0, len(payload)+2)
	words = append(words, id, uint16(len(payload)))
	return append(words, payload...)
}

// ValidateCommand checks command words: ID, payload size and payload.
func ValidateCommand(words []uint16) error {
	if len(words) < CmdMinWords || len(words) > CmdMaxWords {
		return errors.Wrapf(ErrInvalidCommandLength, "%d words", len(words))
	}
	if int(words[1])+2 != len(words) {
		return errors.Wrapf(ErrInvalidCommandLength, "declared %d payload words, got %d", words[1], len(words)-2)
	}
	return nil
}

// EncodeCommand splits command words into packets, each starting with
// its header word.
func EncodeCommand(words []uint16) ([][]uint16, error) {
	if err := ValidateCommand(words); err != nil {
		return nil, err
	}
	total := (len(words) + CmdPacketMaxWords - 1) / CmdPacketMaxWords
	packets := make([][]uint16, 0, total)
	for n := 0; n < total; n++ {
		chunk := words[n*CmdPacketMaxWords:]
		if len(chunk) > CmdPacketMaxWords {
			chunk = chunk[:CmdPacketMaxWords]
		}
		pkt := make([]uint16, 0, len(chunk)+1)
		pkt = append(pkt, uint16(total)<<12|uint16(n+1)<<8|uint16(len(chunk)))
		packets = append(packets, append(pkt, chunk...))
	}
	return packets, nil
}

// ParseWords parses hexadecimal words of 4 digits each. Words may be
// separated by white spaces or written back to back.
func ParseWords(s string) ([]uint16, error) {
	var words []uint16
	for _, field := range strings.Fields(s) {
		if len(field)%4 != 0 {
			return nil, errors.Wrapf(ErrInvalidCommandLength, "words not properly defined: %q", field)
		}
		for i := 0; i < len(field); i += 4 {
			w, err := strconv.ParseUint(field[i:i+4], 16, 16)
			if err != nil {
				return nil, errors.Wrapf(err, "bad word %q", field[i:i+4])
			}
			words = append(words, uint16(w))
		}
	}
	return words, nil
}
