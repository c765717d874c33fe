package framework

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// Loop dispatches events to a handler one at a time. Events come from
// Trigger and, if Interval is set, from a periodic timer. Triggers
// arriving while the handler runs are coalesced into one event.
type Loop struct {
	Handler  EventHandler
	Interval time.Duration

	wakeUpCh chan struct{}
	events   uint64
	enabled  int32
}

// NewLoop creates a Loop.
func NewLoop(handler EventHandler, interval time.Duration) *Loop {
	return &Loop{
		Handler:  handler,
		Interval: interval,
		wakeUpCh: make(chan struct{}, 1),
		enabled:  1,
	}
}

// Trigger schedules the handler without blocking. It returns false if
// the loop is disabled.
func (l *Loop) Trigger() bool {
	if atomic.LoadInt32(&l.enabled) == 0 {
		return false
	}
	atomic.AddUint64(&l.events, 1)
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
	return true
}

// Events returns the number of accepted triggers.
func (l *Loop) Events() uint64 {
	return atomic.LoadUint64(&l.events)
}

// ResetEvents clears the trigger counter.
func (l *Loop) ResetEvents() {
	atomic.StoreUint64(&l.events, 0)
}

// SetEnabled enables or disables event dispatching. A disabled loop
// ignores triggers and timer events.
func (l *Loop) SetEnabled(enabled bool) {
	var v int32
	if enabled {
		v = 1
	}
	atomic.StoreInt32(&l.enabled, v)
}

// Enabled indicates events are dispatched.
func (l *Loop) Enabled() bool {
	return atomic.LoadInt32(&l.enabled) != 0
}

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context) error {
	var tickCh <-chan time.Time
	if l.Interval > 0 {
		ticker := time.NewTicker(l.Interval)
		defer ticker.Stop()
		tickCh = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tickCh:
		case <-l.wakeUpCh:
		}
		if !l.Enabled() {
			continue
		}
		if err := l.Handler.HandleEvent(ctx); err != nil {
			glog.Errorf("event handler error: %v", err)
		}
	}
}
