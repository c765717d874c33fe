package touch

import (
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/max1187x/pkg/mtp"
)

// WakeupTouchCount is the number of touches waking up a suspended panel.
const WakeupTouchCount = 2

// FrameFilter drops frames repeating the previous frame counter.
type FrameFilter struct {
	last  uint16
	valid bool
}

// Accept returns false if counter equals the one last accepted.
func (f *FrameFilter) Accept(counter uint16) bool {
	if f.valid && f.last == counter {
		return false
	}
	f.last, f.valid = counter, true
	return true
}

// Reset forgets the last frame counter.
func (f *FrameFilter) Reset() {
	f.valid = false
}

// Update is the outcome of processing a touch report.
type Update struct {
	// Wakeup is set when a wake-up gesture is detected while suspended.
	// No frame is decoded in that case.
	Wakeup bool
	Frame  *Frame
	// Released lists the finger IDs lifted since the previous frame.
	Released []uint8
}

// Processor tracks touch state across reports of one device.
type Processor struct {
	lock      sync.Mutex
	suspended bool
	filter    FrameFilter
	down      uint16
}

// SetSuspended switches wake-up gesture detection.
func (p *Processor) SetSuspended(suspended bool) {
	p.lock.Lock()
	p.suspended = suspended
	p.lock.Unlock()
}

// Suspended indicates wake-up gesture detection is on.
func (p *Processor) Suspended() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.suspended
}

// Process handles a single packet report and returns nil if there's
// nothing to report.
func (p *Processor) Process(words []uint16) (*Update, error) {
	if len(words) == 0 || byte(words[0]>>8) != mtp.OnePacketSeq {
		return nil, nil
	}
	hdr, err := DecodeHeader(words)
	if err != nil {
		return nil, nil
	}

	p.lock.Lock()
	defer p.lock.Unlock()
	if p.suspended {
		if hdr.TouchCount >= WakeupTouchCount {
			glog.V(1).Info("wake-up gesture")
			return &Update{Wakeup: true}, nil
		}
		return nil, nil
	}
	if hdr.ReportID != mtp.RptExtTouchInfo {
		return nil, nil
	}
	if !p.filter.Accept(hdr.FrameCounter) {
		glog.Warningf("same frame counter %d", hdr.FrameCounter)
		return nil, nil
	}
	frame, err := DecodeFrame(words)
	if err != nil {
		return nil, err
	}

	var down uint16
	for _, c := range frame.Contacts {
		down |= 1 << c.FingerID
	}
	u := &Update{Frame: frame, Released: fingers(p.down &^ down)}
	p.down = down
	return u, nil
}

// ReleaseAll forgets all touches, returning the IDs which were down.
func (p *Processor) ReleaseAll() []uint8 {
	p.lock.Lock()
	defer p.lock.Unlock()
	ids := fingers(p.down)
	p.down = 0
	return ids
}

// fingers lists the finger IDs set in mask, covering every ID the
// contact field can carry.
func fingers(mask uint16) []uint8 {
	var ids []uint8
	for id := uint8(0); id <= fingerIDMask; id++ {
		if mask&(1<<id) != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}
