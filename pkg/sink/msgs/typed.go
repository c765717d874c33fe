package msgs

import (
	"github.com/pkg/errors"
)

// Typed wraps an encoded message with its type ID.
type Typed struct {
	TypeID  uint32
	Message []byte
}

// MessageTypes creates empty messages by type ID.
var MessageTypes = map[uint32]func() Message{
	ReportMsgTypeID: func() Message { return &ReportMsg{} },
	TouchMsgTypeID:  func() Message { return &TouchMsg{} },
}

// TypedFrom encodes a message into a Typed.
func TypedFrom(msg Message) (*Typed, error) {
	data, err := msg.Marshal()
	if err != nil {
		return nil, err
	}
	return &Typed{TypeID: msg.TypeID(), Message: data}, nil
}

// Decode decodes the wrapped message.
func (t *Typed) Decode() (Message, error) {
	factory, ok := MessageTypes[t.TypeID]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownType, "%08x", t.TypeID)
	}
	msg := factory()
	if err := msg.Unmarshal(t.Message); err != nil {
		return nil, err
	}
	return msg, nil
}

// Encode encodes the envelope.
func (t *Typed) Encode() ([]byte, error) {
	e := newEncoder()
	e.varint(1, uint64(t.TypeID))
	e.bytes(2, t.Message)
	return e.result()
}

// DecodeTyped decodes an envelope.
func DecodeTyped(data []byte) (*Typed, error) {
	t := &Typed{}
	err := decodeFields(data, func(f *field) error {
		switch f.Num {
		case 1:
			t.TypeID = uint32(f.Value)
		case 2:
			if err := f.expect(wireBytes); err != nil {
				return err
			}
			t.Message = f.Bytes
		}
		return nil
	})
	return t, err
}

// Encode wraps and encodes a message.
func Encode(msg Message) ([]byte, error) {
	t, err := TypedFrom(msg)
	if err != nil {
		return nil, err
	}
	return t.Encode()
}

// Decode decodes an enveloped message.
func Decode(data []byte) (Message, error) {
	t, err := DecodeTyped(data)
	if err != nil {
		return nil, err
	}
	return t.Decode()
}
