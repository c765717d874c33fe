// Package touch decodes touch reports.
package touch

import (
	"github.com/pkg/errors"

	"github.com/robotalks/max1187x/pkg/mtp"
)

// Report layout, in words including the packet header word.
//
// Header:
//
//	0: packet header
//	1: report ID
//	2: report size
//	3: touch count, bits 0-3
//	4: buttons, bits 0-3
//	5: frame counter
//
// Extended contact, one per touch:
//
//	0: finger ID bits 0-3, tool type bits 8-11
//	1: X, bits 0-11
//	2: Y, bits 0-11
//	3: Z
//	4: X speed, signed
//	5: Y speed, signed
//	6: X pixels low byte, Y pixels high byte, signed
//	7: area
//	8-11: X min, X max, Y min, Y max
const (
	HeaderWords  = 6
	ContactWords = 12
	MaxContacts  = 10

	touchCountMask  = 0x000F
	buttonsMask     = 0x000F
	fingerIDMask    = 0x000F
	toolTypeShift   = 8
	toolTypeMask    = 0x000F
	coordinateMask  = 0x0FFF
	numberOfButtons = 4
)

// Errors
var (
	ErrShortReport = errors.New("touch report too short")
	ErrTouchCount  = errors.New("touch count out of bounds")
	ErrNotTouch    = errors.New("not a touch report")
)

// ToolType is the kind of object touching the panel.
type ToolType uint8

// Tool types
const (
	ToolFinger ToolType = 0
	ToolStylus ToolType = 1
)

func (t ToolType) String() string {
	switch t {
	case ToolFinger:
		return "finger"
	case ToolStylus:
		return "stylus"
	}
	return "unknown"
}

// Header is the common part of touch reports.
type Header struct {
	ReportID     uint16
	Size         uint16
	TouchCount   int
	Buttons      uint8
	FrameCounter uint16
}

// Button returns the state of button n (0-3).
func (h *Header) Button(n int) bool {
	return n >= 0 && n < numberOfButtons && h.Buttons&(1<<uint(n)) != 0
}

// Contact is one touch point of an extended touch report.
type Contact struct {
	FingerID uint8
	Tool     ToolType
	X, Y, Z  uint16
	XSpeed   int16
	YSpeed   int16
	XPixels  int8
	YPixels  int8
	Area     uint16
	XMin     uint16
	XMax     uint16
	YMin     uint16
	YMax     uint16
}

// Frame is a decoded extended touch report.
type Frame struct {
	Header
	Contacts []Contact
}

// DecodeHeader decodes the header words of a report.
func DecodeHeader(words []uint16) (*Header, error) {
	if len(words) < HeaderWords {
		return nil, errors.Wrapf(ErrShortReport, "%d words", len(words))
	}
	return &Header{
		ReportID:     words[1],
		Size:         words[2],
		TouchCount:   int(words[3] & touchCountMask),
		Buttons:      uint8(words[4] & buttonsMask),
		FrameCounter: words[5],
	}, nil
}

// DecodeContact decodes ContactWords words.
func DecodeContact(words []uint16) Contact {
	return Contact{
		FingerID: uint8(words[0] & fingerIDMask),
		Tool:     ToolType(words[0] >> toolTypeShift & toolTypeMask),
		X:        words[1] & coordinateMask,
		Y:        words[2] & coordinateMask,
		Z:        words[3],
		XSpeed:   int16(words[4]),
		YSpeed:   int16(words[5]),
		XPixels:  int8(words[6]),
		YPixels:  int8(words[6] >> 8),
		Area:     words[7],
		XMin:     words[8],
		XMax:     words[9],
		YMin:     words[10],
		YMax:     words[11],
	}
}

// DecodeFrame decodes an extended touch report.
func DecodeFrame(words []uint16) (*Frame, error) {
	hdr, err := DecodeHeader(words)
	if err != nil {
		return nil, err
	}
	if hdr.ReportID != mtp.RptExtTouchInfo {
		return nil, errors.Wrapf(ErrNotTouch, "report %04x", hdr.ReportID)
	}
	if hdr.TouchCount > MaxContacts {
		return nil, errors.Wrapf(ErrTouchCount, "%d", hdr.TouchCount)
	}
	need := HeaderWords + hdr.TouchCount*ContactWords
	if len(words) < need {
		return nil, errors.Wrapf(ErrShortReport, "%d touches in %d words", hdr.TouchCount, len(words))
	}
	f := &Frame{Header: *hdr, Contacts: make([]Contact, hdr.TouchCount)}
	for i := range f.Contacts {
		offset := HeaderWords + i*ContactWords
		f.Contacts[i] = DecodeContact(words[offset : offset+ContactWords])
	}
	return f, nil
}
