package mtp

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// CommandSender sends command words to the device.
type CommandSender interface {
	SendCommand(words []uint16) error
}

// SendCommandFunc is func type of CommandSender.
type SendCommandFunc func(words []uint16) error

// SendCommand implements CommandSender.
func (f SendCommandFunc) SendCommand(words []uint16) error {
	return f(words)
}

// Correlator sends a command and waits for the report answering it.
// Only one exchange is outstanding at any time, concurrent callers
// are served one after another.
type Correlator struct {
	Sender CommandSender

	gate     chan struct{}
	lock     sync.Mutex
	waiting  bool
	received bool
	reportID uint16
	resultCh chan correlated
}

type correlated struct {
	report *Report
	err    error
}

// NewCorrelator creates a Correlator.
func NewCorrelator(sender CommandSender) *Correlator {
	return &Correlator{
		Sender:   sender,
		gate:     make(chan struct{}, 1),
		resultCh: make(chan correlated, 1),
	}
}

// SendAndAwait sends command words and waits up to timeout for a report
// with reportID.
func (c *Correlator) SendAndAwait(ctx context.Context, words []uint16, reportID uint16, timeout time.Duration) (*Report, error) {
	if err := ValidateCommand(words); err != nil {
		return nil, err
	}
	select {
	case c.gate <- struct{}{}:
	case <-ctx.Done():
		return nil, errors.Wrapf(ErrResponseTimeout, "%v", ctx.Err())
	}
	defer func() { <-c.gate }()

	c.lock.Lock()
	c.waiting, c.received, c.reportID = true, false, reportID
	select {
	case <-c.resultCh:
	default:
	}
	c.lock.Unlock()
	defer func() {
		c.lock.Lock()
		c.waiting = false
		c.lock.Unlock()
	}()

	if err := c.Sender.SendCommand(words); err != nil {
		glog.Errorf("send command %04x failed: %v", words[0], err)
		return nil, errors.Wrapf(ErrCommandSendFailed, "%v", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case res := <-c.resultCh:
		return res.report, res.err
	case <-timer.C:
		return nil, errors.Wrapf(ErrResponseTimeout, "report %04x", reportID)
	case <-ctx.Done():
		return nil, errors.Wrapf(ErrResponseTimeout, "report %04x: %v", reportID, ctx.Err())
	}
}

// offer hands a completed report to the waiting exchange.
// It returns true if the report was consumed.
func (c *Correlator) offer(rpt *Report) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.waiting || c.received || rpt.ID() != c.reportID {
		return false
	}
	c.received = true
	c.resultCh <- correlated{report: rpt}
	return true
}

func (c *Correlator) fail(err error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.waiting || c.received {
		return
	}
	c.received = true
	c.resultCh <- correlated{err: err}
}
