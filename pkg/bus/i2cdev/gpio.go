package i2cdev

import (
	"io/ioutil"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Reset line timing
const (
	DefaultResetHold   = 10 * time.Millisecond
	DefaultResetSettle = 300 * time.Millisecond
)

// GPIOReset power cycles the controller by pulling its reset line low
// through a sysfs GPIO value file. It implements driver.PowerCycler.
type GPIOReset struct {
	ValuePath string
	Hold      time.Duration
	Settle    time.Duration
	Sleep     func(time.Duration)
}

// NewGPIOReset creates a GPIOReset with default timing.
func NewGPIOReset(valuePath string) *GPIOReset {
	return &GPIOReset{
		ValuePath: valuePath,
		Hold:      DefaultResetHold,
		Settle:    DefaultResetSettle,
		Sleep:     time.Sleep,
	}
}

// PowerCycle drives the line low, then high and waits for the firmware
// to boot.
func (g *GPIOReset) PowerCycle() error {
	glog.V(1).Infof("reset %s", g.ValuePath)
	if err := g.set(false); err != nil {
		return err
	}
	g.Sleep(g.Hold)
	if err := g.set(true); err != nil {
		return err
	}
	g.Sleep(g.Settle)
	return nil
}

func (g *GPIOReset) set(high bool) error {
	val := []byte("0")
	if high {
		val = []byte("1")
	}
	if err := ioutil.WriteFile(g.ValuePath, val, 0); err != nil {
		return errors.Wrap(err, "reset gpio")
	}
	return nil
}
