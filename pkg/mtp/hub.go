package mtp

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// MaxReaders is the capacity of the reader table.
const MaxReaders = 5

// ReportSink receives completed reports.
type ReportSink interface {
	HandleReport(context.Context, *Report)
}

// HandleReportFunc is func type of ReportSink.
type HandleReportFunc func(context.Context, *Report)

// HandleReport implements ReportSink.
func (f HandleReportFunc) HandleReport(ctx context.Context, r *Report) {
	f(ctx, r)
}

// Hub combines report packets and distributes completed reports to
// the Correlator, subscribed Readers and the Sink.
//
// A delivered report stays outstanding until every Reader it was handed
// to has been released. No new report is combined before that.
type Hub struct {
	// Correlator is offered every completed report before Readers.
	Correlator *Correlator
	// Sink receives reports not consumed by Correlator.
	Sink ReportSink

	lock        sync.Mutex
	readers     [MaxReaders]reader
	used        uint8
	outstanding int
	gate        chan struct{}
	combiner    Reassembler
	closed      bool
}

type reader struct {
	filter    uint16
	gen       uint32
	delivered int
	pending   bool
	report    *Report
	err       error
	wakeCh    chan struct{}
}

// Reader is a subscription slot in the Hub. It's released by the first
// Wait or by Close.
type Reader struct {
	hub  *Hub
	slot int
	gen  uint32
}

// NewHub creates a Hub.
func NewHub() *Hub {
	return &Hub{gate: make(chan struct{}, 1)}
}

// Subscribe allocates a Reader receiving reports with the given ID,
// or all reports with AnyReport.
func (h *Hub) Subscribe(reportID uint16) (*Reader, error) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	for i := 0; i < MaxReaders; i++ {
		if h.used&(1<<uint(i)) != 0 {
			continue
		}
		h.used |= 1 << uint(i)
		r := &h.readers[i]
		r.filter, r.delivered, r.pending = reportID, 0, false
		r.report, r.err = nil, nil
		r.wakeCh = make(chan struct{}, 1)
		return &Reader{hub: h, slot: i, gen: r.gen}, nil
	}
	glog.Error("maximum readers reached")
	return nil, ErrReaderTableFull
}

// Active returns the number of allocated Readers.
func (h *Hub) Active() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	n := 0
	for u := h.used; u != 0; u &= u - 1 {
		n++
	}
	return n
}

// Deliver combines a packet. If a report completes, it's offered to the
// Correlator, handed to matching Readers and then passed to Sink.
// Deliver blocks while a previous report is still outstanding.
func (h *Hub) Deliver(ctx context.Context, pkt *Packet) error {
	select {
	case h.gate <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	h.lock.Lock()
	if h.closed {
		<-h.gate
		h.lock.Unlock()
		return ErrClosed
	}
	rpt, err := h.combiner.Combine(pkt)
	if err != nil || rpt == nil {
		<-h.gate
		h.lock.Unlock()
		return err
	}

	var consumed bool
	if c := h.Correlator; c != nil {
		consumed = c.offer(rpt)
	}
	id := rpt.ID()
	for i := range h.readers {
		r := &h.readers[i]
		if h.used&(1<<uint(i)) == 0 || r.err != nil {
			continue
		}
		if r.filter != AnyReport && (id == 0 || r.filter != id) {
			continue
		}
		r.report = rpt
		r.delivered++
		if !r.pending {
			r.pending = true
			h.outstanding++
		}
		wake(r.wakeCh)
	}
	if h.outstanding == 0 {
		<-h.gate
	}
	sink := h.Sink
	h.lock.Unlock()

	if !consumed && sink != nil {
		sink.HandleReport(ctx, rpt)
	}
	return nil
}

// Fail wakes all active Readers and the Correlator with err and drops
// any partially combined report.
func (h *Hub) Fail(err error) {
	h.lock.Lock()
	h.combiner.Reset()
	h.failAll(err)
	c := h.Correlator
	h.lock.Unlock()
	if c != nil {
		c.fail(err)
	}
}

// Close fails all waiters with ErrClosed. Later Subscribe and Deliver
// calls fail with ErrClosed.
func (h *Hub) Close() error {
	h.lock.Lock()
	h.closed = true
	h.failAll(ErrClosed)
	c := h.Correlator
	h.lock.Unlock()
	if c != nil {
		c.fail(ErrClosed)
	}
	return nil
}

func (h *Hub) failAll(err error) {
	for i := range h.readers {
		if h.used&(1<<uint(i)) != 0 {
			h.readers[i].err = err
			wake(h.readers[i].wakeCh)
		}
	}
}

// lookup must be called with lock held.
func (h *Hub) lookup(rd *Reader) *reader {
	if h.used&(1<<uint(rd.slot)) == 0 || h.readers[rd.slot].gen != rd.gen {
		return nil
	}
	return &h.readers[rd.slot]
}

// release must be called with lock held.
func (h *Hub) release(rd *Reader) {
	r := &h.readers[rd.slot]
	if r.pending {
		r.pending = false
		if h.outstanding--; h.outstanding == 0 {
			<-h.gate
		}
	}
	r.report, r.wakeCh = nil, nil
	r.gen++
	h.used &^= 1 << uint(rd.slot)
}

// Wait blocks until a report is delivered, the hub fails, timeout
// elapses or ctx is done. A negative timeout waits forever.
// The Reader is released when Wait returns.
func (rd *Reader) Wait(ctx context.Context, timeout time.Duration) (*Report, error) {
	h := rd.hub
	h.lock.Lock()
	r := h.lookup(rd)
	if r == nil {
		h.lock.Unlock()
		return nil, ErrReaderReleased
	}
	wakeCh := r.wakeCh
	h.lock.Unlock()

	var timeoutCh <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	var err error
	select {
	case <-wakeCh:
	case <-timeoutCh:
		err = errors.Wrapf(ErrResponseTimeout, "no report in %v", timeout)
	case <-ctx.Done():
		err = ctx.Err()
	}

	h.lock.Lock()
	defer h.lock.Unlock()
	if r = h.lookup(rd); r == nil {
		return nil, ErrReaderReleased
	}
	rpt, rerr := r.report, r.err
	h.release(rd)
	if err != nil {
		return nil, err
	}
	if rerr != nil {
		return nil, rerr
	}
	return rpt, nil
}

// Delivered returns the number of reports delivered since subscribed.
func (rd *Reader) Delivered() int {
	h := rd.hub
	h.lock.Lock()
	defer h.lock.Unlock()
	if r := h.lookup(rd); r != nil {
		return r.delivered
	}
	return 0
}

// Close releases the Reader without waiting.
func (rd *Reader) Close() error {
	h := rd.hub
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.lookup(rd) == nil {
		return ErrReaderReleased
	}
	h.release(rd)
	return nil
}

func wake(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
