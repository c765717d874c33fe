package mtp

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Bus is a byte oriented transport. Each call is one bus transaction.
// Implementations return ErrAgain when the transaction should be retried.
type Bus interface {
	Send(p []byte) (int, error)
	Receive(p []byte) (int, error)
}

// MaxAgainRetries bounds retries of a transaction reporting ErrAgain.
const MaxAgainRetries = 100

// DefaultAgainDelay is the pause before retrying a transaction
// reporting ErrAgain.
const DefaultAgainDelay = 500 * time.Microsecond

// Link performs byte and word transactions over a Bus.
// Link is not safe for concurrent use, callers serialize transactions.
type Link struct {
	Bus        Bus
	AgainDelay time.Duration
	Sleep      func(time.Duration)
}

// NewLink creates a Link.
func NewLink(bus Bus) *Link {
	return &Link{Bus: bus, AgainDelay: DefaultAgainDelay, Sleep: time.Sleep}
}

func (l *Link) transact(fn func([]byte) (int, error), p []byte) (n int, err error) {
	for i := 0; i < MaxAgainRetries; i++ {
		if n, err = fn(p); !errors.Is(err, ErrAgain) {
			return
		}
		if l.AgainDelay > 0 && l.Sleep != nil {
			l.Sleep(l.AgainDelay)
		}
	}
	return
}

// SendBytes sends raw bytes and returns the number of bytes sent.
func (l *Link) SendBytes(p []byte) (n int, err error) {
	n, err = l.transact(l.Bus.Send, p)
	if err != nil {
		glog.Errorf("bus TX fail: %v", err)
		return n, err
	}
	if glog.V(2) {
		glog.Infof("bus tx: % 02x", p[:n])
	}
	return n, nil
}

// ReceiveBytes fills p and returns the number of bytes received.
func (l *Link) ReceiveBytes(p []byte) (n int, err error) {
	n, err = l.transact(l.Bus.Receive, p)
	if err != nil {
		glog.Errorf("bus RX fail: %v", err)
		return n, err
	}
	if glog.V(2) {
		glog.Infof("bus rx: % 02x", p[:n])
	}
	return n, nil
}

// SendWords sends words in little-endian and returns the number of words sent.
func (l *Link) SendWords(words []uint16) (int, error) {
	buf := make([]byte, len(words)*2)
	for i, w := range words {
		binary.LittleEndian.PutUint16(buf[i*2:], w)
	}
	n, err := l.SendBytes(buf)
	if err != nil {
		return n / 2, err
	}
	if n%2 != 0 {
		return n / 2, errors.Wrapf(ErrTransportShortWrite, "odd number of bytes (%d)", n)
	}
	return n / 2, nil
}

// ReceiveWords reads up to count words.
func (l *Link) ReceiveWords(count int) ([]uint16, error) {
	buf := make([]byte, count*2)
	n, err := l.ReceiveBytes(buf)
	if err != nil {
		return nil, err
	}
	if n%2 != 0 {
		return nil, errors.Wrapf(ErrTransportShortRead, "odd number of bytes (%d)", n)
	}
	words := make([]uint16, n/2)
	for i := range words {
		words[i] = binary.LittleEndian.Uint16(buf[i*2:])
	}
	return words, nil
}

// FormatWords formats words for diagnostics.
func FormatWords(words []uint16) string {
	s := make([]byte, 0, len(words)*5)
	for i, w := range words {
		if i > 0 {
			s = append(s, ' ')
		}
		s = append(s, fmt.Sprintf("%04x", w)...)
	}
	return string(s)
}
