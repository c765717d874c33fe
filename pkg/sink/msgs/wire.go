package msgs

import (
	"io"

	"github.com/golang/protobuf/proto"
	"github.com/pkg/errors"
)

// Wire types
const (
	wireVarint uint64 = 0
	wireBytes  uint64 = 2
)

// ErrWireType indicates a field encoded with an unexpected wire type.
var ErrWireType = errors.New("unexpected wire type")

type encoder struct {
	buf *proto.Buffer
	err error
}

func newEncoder() *encoder {
	return &encoder{buf: proto.NewBuffer(nil)}
}

func (e *encoder) tag(field int, wire uint64) {
	if e.err == nil {
		e.err = e.buf.EncodeVarint(uint64(field)<<3 | wire)
	}
}

func (e *encoder) varint(field int, v uint64) {
	if v == 0 {
		return
	}
	e.tag(field, wireVarint)
	if e.err == nil {
		e.err = e.buf.EncodeVarint(v)
	}
}

func (e *encoder) flag(field int, v bool) {
	if v {
		e.varint(field, 1)
	}
}

func (e *encoder) text(field int, s string) {
	if s == "" {
		return
	}
	e.tag(field, wireBytes)
	if e.err == nil {
		e.err = e.buf.EncodeStringBytes(s)
	}
}

func (e *encoder) bytes(field int, p []byte) {
	e.tag(field, wireBytes)
	if e.err == nil {
		e.err = e.buf.EncodeRawBytes(p)
	}
}

func (e *encoder) packed(field int, values []uint64) {
	if len(values) == 0 {
		return
	}
	inner := proto.NewBuffer(nil)
	for _, v := range values {
		if err := inner.EncodeVarint(v); err != nil {
			e.err = err
			return
		}
	}
	e.bytes(field, inner.Bytes())
}

func (e *encoder) result() ([]byte, error) {
	return e.buf.Bytes(), e.err
}

// field is a decoded field, Bytes is set for length delimited fields.
type field struct {
	Num   int
	Wire  uint64
	Value uint64
	Bytes []byte
}

// decodeFields splits data into fields.
func decodeFields(data []byte, fn func(*field) error) error {
	buf := proto.NewBuffer(data)
	for {
		key, err := buf.DecodeVarint()
		if err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return err
		}
		f := &field{Num: int(key >> 3), Wire: key & 7}
		switch f.Wire {
		case wireVarint:
			f.Value, err = buf.DecodeVarint()
		case wireBytes:
			f.Bytes, err = buf.DecodeRawBytes(true)
		default:
			return errors.Wrapf(ErrWireType, "field %d wire type %d", f.Num, f.Wire)
		}
		if err != nil {
			return errors.Wrapf(err, "field %d", f.Num)
		}
		if err = fn(f); err != nil {
			return err
		}
	}
}

func (f *field) expect(wire uint64) error {
	if f.Wire != wire {
		return errors.Wrapf(ErrWireType, "field %d wire type %d", f.Num, f.Wire)
	}
	return nil
}

func (f *field) unpack() ([]uint64, error) {
	if err := f.expect(wireBytes); err != nil {
		return nil, err
	}
	buf := proto.NewBuffer(f.Bytes)
	var values []uint64
	for {
		v, err := buf.DecodeVarint()
		if err == io.ErrUnexpectedEOF {
			return values, nil
		}
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
}
