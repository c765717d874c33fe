package sink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/robotalks/max1187x/pkg/mtp"
	"github.com/robotalks/max1187x/pkg/touch"
)

type recorder struct {
	reports []uint16
	touches []*touch.Update
}

func (r *recorder) HandleReport(ctx context.Context, rpt *mtp.Report) {
	r.reports = append(r.reports, rpt.ID())
}

func (r *recorder) HandleTouch(ctx context.Context, u *touch.Update) {
	r.touches = append(r.touches, u)
}

func TestFanout(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	f := (&Fanout{}).Add(a, b)
	f.HandleReport(context.Background(), &mtp.Report{Words: []uint16{0x1102, 0x01A0, 0}})
	f.Wakeup()()
	for _, r := range []*recorder{a, b} {
		assert.Equal(t, []uint16{mtp.RptSystemStatus}, r.reports)
		if assert.Len(t, r.touches, 1) {
			assert.True(t, r.touches[0].Wakeup)
		}
	}
}
