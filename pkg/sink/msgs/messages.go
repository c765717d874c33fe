package msgs

import (
	"time"

	"github.com/pkg/errors"

	"github.com/robotalks/max1187x/pkg/mtp"
	"github.com/robotalks/max1187x/pkg/touch"
)

// TypeIDs
const (
	ReportMsgTypeID uint32 = 0x00010001
	TouchMsgTypeID  uint32 = 0x00010002
)

// Message can be carried in a Typed envelope.
type Message interface {
	TypeID() uint32
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

// ErrUnknownType indicates an unknown type ID in a Typed envelope.
var ErrUnknownType = errors.New("unknown message type")

// ReportMsg carries a completed report.
type ReportMsg struct {
	Device    string
	ReportID  uint16
	Words     []uint16
	Timestamp time.Time
}

// NewReportMsg creates a ReportMsg from a report.
func NewReportMsg(device string, rpt *mtp.Report) *ReportMsg {
	return &ReportMsg{
		Device:    device,
		ReportID:  rpt.ID(),
		Words:     append([]uint16(nil), rpt.Words...),
		Timestamp: time.Now(),
	}
}

// TypeID implements Message.
func (m *ReportMsg) TypeID() uint32 { return ReportMsgTypeID }

// Marshal implements Message.
func (m *ReportMsg) Marshal() ([]byte, error) {
	e := newEncoder()
	e.text(1, m.Device)
	e.varint(2, uint64(m.ReportID))
	words := make([]uint64, len(m.Words))
	for i, w := range m.Words {
		words[i] = uint64(w)
	}
	e.packed(3, words)
	e.varint(4, timestamp(m.Timestamp))
	return e.result()
}

// Unmarshal implements Message.
func (m *ReportMsg) Unmarshal(data []byte) error {
	*m = ReportMsg{}
	return decodeFields(data, func(f *field) error {
		switch f.Num {
		case 1:
			if err := f.expect(wireBytes); err != nil {
				return err
			}
			m.Device = string(f.Bytes)
		case 2:
			m.ReportID = uint16(f.Value)
		case 3:
			words, err := f.unpack()
			if err != nil {
				return err
			}
			for _, w := range words {
				m.Words = append(m.Words, uint16(w))
			}
		case 4:
			m.Timestamp = time.Unix(0, int64(f.Value))
		}
		return nil
	})
}

// ContactMsg is a contact in a TouchMsg.
type ContactMsg struct {
	FingerID uint8
	Stylus   bool
	X, Y, Z  uint16
}

func (c *ContactMsg) marshal() ([]byte, error) {
	e := newEncoder()
	e.varint(1, uint64(c.FingerID))
	e.flag(2, c.Stylus)
	e.varint(3, uint64(c.X))
	e.varint(4, uint64(c.Y))
	e.varint(5, uint64(c.Z))
	return e.result()
}

func (c *ContactMsg) unmarshal(data []byte) error {
	return decodeFields(data, func(f *field) error {
		switch f.Num {
		case 1:
			c.FingerID = uint8(f.Value)
		case 2:
			c.Stylus = f.Value != 0
		case 3:
			c.X = uint16(f.Value)
		case 4:
			c.Y = uint16(f.Value)
		case 5:
			c.Z = uint16(f.Value)
		}
		return nil
	})
}

// TouchMsg carries a touch update.
type TouchMsg struct {
	Device       string
	Wakeup       bool
	FrameCounter uint16
	Buttons      uint8
	Contacts     []ContactMsg
	Released     []uint8
	Timestamp    time.Time
}

// NewTouchMsg creates a TouchMsg from a touch update.
func NewTouchMsg(device string, u *touch.Update) *TouchMsg {
	m := &TouchMsg{
		Device:    device,
		Wakeup:    u.Wakeup,
		Released:  append([]uint8(nil), u.Released...),
		Timestamp: time.Now(),
	}
	if f := u.Frame; f != nil {
		m.FrameCounter, m.Buttons = f.FrameCounter, f.Buttons
		for _, c := range f.Contacts {
			m.Contacts = append(m.Contacts, ContactMsg{
				FingerID: c.FingerID,
				Stylus:   c.Tool == touch.ToolStylus,
				X:        c.X,
				Y:        c.Y,
				Z:        c.Z,
			})
		}
	}
	return m
}

// TypeID implements Message.
func (m *TouchMsg) TypeID() uint32 { return TouchMsgTypeID }

// Marshal implements Message.
func (m *TouchMsg) Marshal() ([]byte, error) {
	e := newEncoder()
	e.text(1, m.Device)
	e.flag(2, m.Wakeup)
	e.varint(3, uint64(m.FrameCounter))
	e.varint(4, uint64(m.Buttons))
	for i := range m.Contacts {
		data, err := m.Contacts[i].marshal()
		if err != nil {
			return nil, err
		}
		e.bytes(5, data)
	}
	released := make([]uint64, len(m.Released))
	for i, id := range m.Released {
		released[i] = uint64(id)
	}
	e.packed(6, released)
	e.varint(7, timestamp(m.Timestamp))
	return e.result()
}

// Unmarshal implements Message.
func (m *TouchMsg) Unmarshal(data []byte) error {
	*m = TouchMsg{}
	return decodeFields(data, func(f *field) error {
		switch f.Num {
		case 1:
			if err := f.expect(wireBytes); err != nil {
				return err
			}
			m.Device = string(f.Bytes)
		case 2:
			m.Wakeup = f.Value != 0
		case 3:
			m.FrameCounter = uint16(f.Value)
		case 4:
			m.Buttons = uint8(f.Value)
		case 5:
			if err := f.expect(wireBytes); err != nil {
				return err
			}
			var c ContactMsg
			if err := c.unmarshal(f.Bytes); err != nil {
				return err
			}
			m.Contacts = append(m.Contacts, c)
		case 6:
			ids, err := f.unpack()
			if err != nil {
				return err
			}
			for _, id := range ids {
				m.Released = append(m.Released, uint8(id))
			}
		case 7:
			m.Timestamp = time.Unix(0, int64(f.Value))
		}
		return nil
	})
}

func timestamp(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixNano())
}
