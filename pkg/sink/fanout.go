// Package sink distributes reports and touch updates to multiple
// consumers. Subpackages implement the consumers.
package sink

import (
	"context"

	"github.com/robotalks/max1187x/pkg/driver"
	"github.com/robotalks/max1187x/pkg/mtp"
	"github.com/robotalks/max1187x/pkg/touch"
)

// Sink consumes both reports and touch updates.
type Sink interface {
	mtp.ReportSink
	driver.TouchSink
}

// Fanout passes everything to all Sinks in order. It must be fully
// set up before the driver runs.
type Fanout struct {
	Sinks []Sink
}

// Add appends sinks.
func (f *Fanout) Add(sinks ...Sink) *Fanout {
	f.Sinks = append(f.Sinks, sinks...)
	return f
}

// HandleReport implements mtp.ReportSink.
func (f *Fanout) HandleReport(ctx context.Context, rpt *mtp.Report) {
	for _, s := range f.Sinks {
		s.HandleReport(ctx, rpt)
	}
}

// HandleTouch implements driver.TouchSink.
func (f *Fanout) HandleTouch(ctx context.Context, u *touch.Update) {
	for _, s := range f.Sinks {
		s.HandleTouch(ctx, u)
	}
}

// Wakeup returns a driver.WakeupFunc passing a wake-up update to all Sinks.
func (f *Fanout) Wakeup() driver.WakeupFunc {
	return func() {
		f.HandleTouch(context.Background(), &touch.Update{Wakeup: true})
	}
}
