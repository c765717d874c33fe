// Package stream dumps messages to a byte stream and reads them back.
// Each message is prefixed by its 4-byte little-endian length.
package stream

import (
	"context"
	"encoding/binary"
	"io"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/max1187x/pkg/mtp"
	"github.com/robotalks/max1187x/pkg/sink/msgs"
	"github.com/robotalks/max1187x/pkg/touch"
)

// MaxPacketSize limits the length of a packet read.
const MaxPacketSize = 1 << 16

// ErrPacketTooLarge indicates a length prefix beyond MaxPacketSize.
var ErrPacketTooLarge = errors.New("packet too large")

// Writer writes length-prefixed messages. It's safe for concurrent use.
type Writer struct {
	Device string

	lock sync.Mutex
	w    io.Writer
}

// NewWriter creates a Writer.
func NewWriter(w io.Writer, device string) *Writer {
	return &Writer{Device: device, w: w}
}

// WritePacket writes one length-prefixed packet.
func (w *Writer) WritePacket(pkt []byte) error {
	w.lock.Lock()
	defer w.lock.Unlock()
	if err := binary.Write(w.w, binary.LittleEndian, uint32(len(pkt))); err != nil {
		return err
	}
	_, err := w.w.Write(pkt)
	return err
}

// WriteMessage encodes and writes a message.
func (w *Writer) WriteMessage(msg msgs.Message) error {
	data, err := msgs.Encode(msg)
	if err != nil {
		return err
	}
	return w.WritePacket(data)
}

// HandleReport implements mtp.ReportSink.
func (w *Writer) HandleReport(ctx context.Context, rpt *mtp.Report) {
	if err := w.WriteMessage(msgs.NewReportMsg(w.Device, rpt)); err != nil {
		glog.Errorf("dump report: %v", err)
	}
}

// HandleTouch implements driver.TouchSink.
func (w *Writer) HandleTouch(ctx context.Context, u *touch.Update) {
	if err := w.WriteMessage(msgs.NewTouchMsg(w.Device, u)); err != nil {
		glog.Errorf("dump touch: %v", err)
	}
}

// Reader reads length-prefixed messages.
type Reader struct {
	r io.Reader
}

// NewReader creates a Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadPacket reads one packet. io.EOF is returned at the end of stream.
func (r *Reader) ReadPacket() ([]byte, error) {
	var size uint32
	if err := binary.Read(r.r, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if size > MaxPacketSize {
		return nil, errors.Wrapf(ErrPacketTooLarge, "%d bytes", size)
	}
	pkt := make([]byte, size)
	if _, err := io.ReadFull(r.r, pkt); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return pkt, nil
}

// ReadMessage reads and decodes one message.
func (r *Reader) ReadMessage() (msgs.Message, error) {
	pkt, err := r.ReadPacket()
	if err != nil {
		return nil, err
	}
	return msgs.Decode(pkt)
}
