// Package driver is a session with one touch controller: it reads
// reports when the device signals them, distributes them and exposes the
// command, query and flashing operations.
package driver

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/max1187x/pkg/framework"
	"github.com/robotalks/max1187x/pkg/fwupdate"
	"github.com/robotalks/max1187x/pkg/mtp"
	"github.com/robotalks/max1187x/pkg/touch"
)

// Defaults
const (
	DefaultQueryTimeout = 250 * time.Millisecond
	DefaultQueryRetries = 5
	SoftResetTimeout    = 3 * time.Second
)

// PowerCycler drops and raises the supply and reset line of the device.
type PowerCycler interface {
	PowerCycle() error
}

// PowerCycleFunc is the func form of PowerCycler.
type PowerCycleFunc func() error

// PowerCycle implements PowerCycler.
func (f PowerCycleFunc) PowerCycle() error {
	return f()
}

// TouchSink receives touch updates.
type TouchSink interface {
	HandleTouch(context.Context, *touch.Update)
}

// HandleTouchFunc is the func form of TouchSink.
type HandleTouchFunc func(context.Context, *touch.Update)

// HandleTouch implements TouchSink.
func (f HandleTouchFunc) HandleTouch(ctx context.Context, u *touch.Update) {
	f(ctx, u)
}

// WakeupFunc is called when a wake-up gesture is detected.
type WakeupFunc func()

// Config is the driver configuration.
type Config struct {
	// Window is the number of words read at once while raw images are
	// streamed, 0 disables windowed reads.
	Window int
	// PollInterval reads reports periodically, for devices without
	// an interrupt line.
	PollInterval time.Duration
	QueryTimeout time.Duration
	QueryRetries int
	CRCDelay     time.Duration
	// ResumePOR power cycles the device on resume.
	ResumePOR bool
	// WakeupGesture keeps the device in wake-up mode when suspended.
	WakeupGesture bool
	Catalog       *fwupdate.Catalog
}

// ChipData is the identification read from the device.
type ChipData struct {
	FirmwareMajor uint8
	FirmwareMinor uint8
	FirmwareBuild uint16
	ChipID        uint8
	ConfigID      uint16
	CustomerInfo  [2]uint16
}

// Driver is a session with a device.
type Driver struct {
	Config
	PowerCycler   PowerCycler
	TouchSink     TouchSink
	Wakeup        WakeupFunc
	FlashProgress fwupdate.ProgressCallback

	lock       sync.Mutex
	link       *mtp.Link
	framer     *mtp.Framer
	hub        *mtp.Hub
	correlator *mtp.Correlator
	loop       *framework.Loop
	touch      touch.Processor

	chipLock sync.RWMutex
	chip     ChipData
	fwLock   sync.Mutex
}

// New creates a Driver over a bus.
func New(bus mtp.Bus, config Config) *Driver {
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = DefaultQueryTimeout
	}
	if config.QueryRetries <= 0 {
		config.QueryRetries = DefaultQueryRetries
	}
	d := &Driver{Config: config, link: mtp.NewLink(bus)}
	d.framer = mtp.NewFramer(d.link, config.Window)
	d.correlator = mtp.NewCorrelator(mtp.SendCommandFunc(d.sendCommand))
	d.hub = mtp.NewHub()
	d.hub.Correlator = d.correlator
	d.loop = framework.NewLoop(framework.HandleEventFunc(d.readReport), config.PollInterval)
	return d
}

// Hub returns the report hub. Set Hub().Sink to receive reports not
// consumed by queries.
func (d *Driver) Hub() *mtp.Hub {
	return d.hub
}

// Name implements framework.Named.
func (d *Driver) Name() string {
	return "driver"
}

// Run processes report events until ctx is done. All waiters are failed
// with mtp.ErrClosed before returning.
func (d *Driver) Run(ctx context.Context) error {
	defer d.Close()
	return d.loop.Run(ctx)
}

// Close fails all waiters and stops accepting interrupts.
func (d *Driver) Close() error {
	d.loop.SetEnabled(false)
	return d.hub.Close()
}

// Interrupt signals a report is ready. It never blocks.
func (d *Driver) Interrupt() {
	d.loop.Trigger()
}

// IRQCount returns the number of interrupts accepted.
func (d *Driver) IRQCount() uint64 {
	return d.loop.Events()
}

// ResetIRQCount clears the interrupt counter.
func (d *Driver) ResetIRQCount() {
	d.loop.ResetEvents()
}

func (d *Driver) readReport(ctx context.Context) error {
	d.lock.Lock()
	pkt, err := d.framer.ReadReportPacket()
	d.lock.Unlock()
	if err != nil {
		glog.Errorf("read report failed: %v", err)
		d.hub.Fail(err)
		if perr := d.powerCycle(); perr != nil && perr != ErrNoPowerControl {
			glog.Errorf("power cycle failed: %v", perr)
		}
		return nil
	}
	if pkt.Header() == 0 {
		// nothing pending, seen when polling
		return nil
	}

	if u, err := d.touch.Process(pkt.Words); err != nil {
		glog.Warningf("touch report: %v", err)
	} else if u != nil {
		if u.Wakeup {
			if fn := d.Wakeup; fn != nil {
				fn()
			}
		} else if sink := d.TouchSink; sink != nil {
			sink.HandleTouch(ctx, u)
		}
	}

	if err = d.hub.Deliver(ctx, pkt); err != nil {
		glog.Warningf("report dropped: %v", err)
	}
	return nil
}

func (d *Driver) sendCommand(words []uint16) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	err := d.framer.SendCommand(words)
	if err != nil {
		glog.Errorf("failed to send command: %v", err)
	}
	return err
}

// powerCycle must be called without the transport lock.
func (d *Driver) powerCycle() error {
	if released := d.touch.ReleaseAll(); len(released) > 0 {
		if sink := d.TouchSink; sink != nil {
			sink.HandleTouch(context.Background(), &touch.Update{Released: released})
		}
	}
	if d.PowerCycler == nil {
		return ErrNoPowerControl
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.PowerCycler.PowerCycle()
}
