package driver

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/max1187x/pkg/bootloader"
	"github.com/robotalks/max1187x/pkg/bootloader/bltest"
	"github.com/robotalks/max1187x/pkg/fwupdate"
	"github.com/robotalks/max1187x/pkg/mtp"
	"github.com/robotalks/max1187x/pkg/touch"
)

func startDriver(t *testing.T, sim *simController, config Config, setup ...func(*Driver)) *Driver {
	if config.QueryTimeout == 0 {
		config.QueryTimeout = 50 * time.Millisecond
	}
	d := New(sim, config)
	for _, fn := range setup {
		fn(d)
	}
	sim.irq = d.Interrupt
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return d
}

func chipResponder(cmd []uint16) [][]uint16 {
	switch cmd[0] {
	case mtp.CmdGetFirmwareVersion:
		return [][]uint16{report(mtp.RptFirmwareVer, 0x0102, 0x7500, 0x0033)}
	case mtp.CmdGetConfigInfo:
		data := make([]uint16, 41)
		data[0] = 0x0E01
		data[39], data[40] = 0x1234, 0x5678
		return [][]uint16{report(mtp.RptConfigInfo, data...)}
	case mtp.CmdResetSystem:
		return [][]uint16{report(mtp.RptSystemStatus, 0)}
	}
	return nil
}

func TestReadChipData(t *testing.T) {
	sim := &simController{respond: chipResponder}
	d := startDriver(t, sim, Config{})
	chip, err := d.ReadChipData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(0x75), chip.ChipID)
	assert.Equal(t, uint16(0x0E01), chip.ConfigID)
	assert.Equal(t, "1.2.51", chip.FirmwareVersion())
	assert.Equal(t, [2]uint16{0x5678, 0x1234}, chip.CustomerInfo)
	assert.Equal(t, chip, d.ChipData())
	assert.Equal(t, [][]uint16{{0x0040, 0x0000}, {0x0002, 0x0000}}, sim.sentCommands())
}

func TestQueryRetried(t *testing.T) {
	var calls int32
	sim := &simController{respond: func(cmd []uint16) [][]uint16 {
		if atomic.AddInt32(&calls, 1) < 3 {
			return nil
		}
		return chipResponder(cmd)
	}}
	d := startDriver(t, sim, Config{QueryTimeout: 20 * time.Millisecond})
	rpt, err := d.Query(context.Background(), mtp.NewCommand(mtp.CmdGetFirmwareVersion), mtp.RptFirmwareVer, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), rpt.Word(3))
	assert.Len(t, sim.sentCommands(), 3)
}

func TestQueryTimeout(t *testing.T) {
	sim := &simController{}
	d := startDriver(t, sim, Config{QueryTimeout: 10 * time.Millisecond, QueryRetries: 2})
	_, err := d.ReadChipData(context.Background())
	assert.ErrorIs(t, err, mtp.ErrResponseTimeout)
	assert.Len(t, sim.sentCommands(), 2)

	_, err = d.Query(context.Background(), []uint16{0x0040}, mtp.RptFirmwareVer, 0)
	assert.ErrorIs(t, err, mtp.ErrInvalidCommandLength)
}

func TestTouchAndReportSinks(t *testing.T) {
	sim := &simController{}
	updates := make(chan *touch.Update, 4)
	reports := make(chan *mtp.Report, 4)
	d := startDriver(t, sim, Config{}, func(d *Driver) {
		d.TouchSink = HandleTouchFunc(func(_ context.Context, u *touch.Update) { updates <- u })
		d.Hub().Sink = mtp.HandleReportFunc(func(_ context.Context, r *mtp.Report) { reports <- r })
	})

	sim.queue(touchReport(1, 0, 3), touchReport(2, 3))
	u := <-updates
	require.NotNil(t, u.Frame)
	require.Len(t, u.Frame.Contacts, 2)
	assert.Equal(t, uint16(0x103), u.Frame.Contacts[1].X)
	u = <-updates
	assert.Equal(t, []uint8{0}, u.Released)

	rpt := <-reports
	assert.Equal(t, mtp.RptExtTouchInfo, rpt.ID())
	<-reports
	assert.True(t, d.IRQCount() >= 2)
	d.ResetIRQCount()
	assert.Zero(t, d.IRQCount())
}

func TestGetReport(t *testing.T) {
	sim := &simController{}
	d := startDriver(t, sim, Config{})
	result := make(chan *mtp.Report, 1)
	go func() {
		rpt, err := d.GetReport(context.Background(), mtp.RptPowerMode, time.Second)
		assert.NoError(t, err)
		result <- rpt
	}()
	require.Eventually(t, func() bool { return d.Hub().Active() == 1 }, time.Second, time.Millisecond)
	sim.queue(report(mtp.RptSystemStatus, 0), report(mtp.RptPowerMode, 2))
	rpt := <-result
	require.NotNil(t, rpt)
	assert.Equal(t, uint16(2), rpt.Word(3))
}

func TestSoftReset(t *testing.T) {
	sim := &simController{respond: chipResponder}
	d := startDriver(t, sim, Config{})
	require.NoError(t, d.SoftReset(context.Background()))
	assert.Equal(t, [][]uint16{{0x00E9, 0x0000}}, sim.sentCommands())
}

func TestReadFailurePowerCycles(t *testing.T) {
	sim := &simController{}
	var cycles int32
	d := startDriver(t, sim, Config{}, func(d *Driver) {
		d.PowerCycler = PowerCycleFunc(func() error {
			atomic.AddInt32(&cycles, 1)
			return nil
		})
	})
	errCh := make(chan error, 1)
	go func() {
		_, err := d.GetReport(context.Background(), mtp.AnyReport, 5*time.Second)
		errCh <- err
	}()
	require.Eventually(t, func() bool { return d.Hub().Active() == 1 }, time.Second, time.Millisecond)
	d.Interrupt()
	assert.ErrorIs(t, <-errCh, errNoData)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&cycles) == 1 }, time.Second, time.Millisecond)
}

func TestPowerOnResetWithoutControl(t *testing.T) {
	d := New(&simController{}, Config{})
	assert.ErrorIs(t, d.PowerOnReset(), ErrNoPowerControl)
}

func TestSuspendResume(t *testing.T) {
	sim := &simController{}
	var cycles, wakeups int32
	d := startDriver(t, sim, Config{WakeupGesture: true, ResumePOR: true}, func(d *Driver) {
		d.PowerCycler = PowerCycleFunc(func() error {
			atomic.AddInt32(&cycles, 1)
			return nil
		})
		d.Wakeup = func() { atomic.AddInt32(&wakeups, 1) }
	})

	require.NoError(t, d.SetScreen(false))
	assert.True(t, d.Suspended())
	require.NoError(t, d.SetScreen(false))
	assert.Equal(t, [][]uint16{{0x0020, 0x0001, 0x0006}}, sim.sentCommands())

	sim.queue(touchReport(5, 1, 2))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&wakeups) == 1 }, time.Second, time.Millisecond)

	require.NoError(t, d.SetScreen(true))
	assert.False(t, d.Suspended())
	assert.Equal(t, int32(1), atomic.LoadInt32(&cycles))
	assert.Equal(t, [][]uint16{
		{0x0020, 0x0001, 0x0006},
		{0x0020, 0x0001, 0x0002},
		{0x0018, 0x0001, 0x0002},
	}, sim.sentCommands())
}

func TestSendRawCommand(t *testing.T) {
	sim := &simController{}
	d := New(sim, Config{})
	require.NoError(t, d.SendRawCommand([]uint16{0x0018, 0x0001, 0x0001}))
	assert.ErrorIs(t, d.SendRawCommand([]uint16{0x0018, 0x0002, 0x0001}), mtp.ErrInvalidCommandLength)
	assert.Len(t, sim.sentCommands(), 1)
}

func TestCloseFailsWaiters(t *testing.T) {
	sim := &simController{}
	d := startDriver(t, sim, Config{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := d.GetReport(context.Background(), mtp.AnyReport, -1)
		assert.ErrorIs(t, err, mtp.ErrClosed)
	}()
	require.Eventually(t, func() bool { return d.Hub().Active() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, d.Close())
	wg.Wait()
	_, err := d.Query(context.Background(), mtp.NewCommand(mtp.CmdGetFirmwareVersion), mtp.RptFirmwareVer, 0)
	assert.Error(t, err)
}

func testImage() *fwupdate.Image {
	data := make([]byte, 4*bootloader.BlockSize)
	for i := range data {
		data[i] = byte(i*7 + 1)
	}
	return &fwupdate.Image{Data: data, CodeSize: 2 * bootloader.BlockSize}
}

func TestFlash(t *testing.T) {
	bl := &bltest.Device{}
	sim := &simController{bl: bl}
	d := startDriver(t, sim, Config{CRCDelay: time.Millisecond})
	var phases []fwupdate.Phase
	d.FlashProgress = func(p fwupdate.Progress) { phases = append(phases, p.Phase) }

	img := testImage()
	res, err := d.Flash(context.Background(), img, false)
	require.NoError(t, err)
	assert.True(t, res.Reflashed)
	assert.Equal(t, img.Data, bl.Flash)
	assert.False(t, bl.InBootloader())
	assert.Equal(t, fwupdate.PhaseComplete, phases[len(phases)-1])
	assert.True(t, d.loop.Enabled())
}

func TestFlashShutsOutReports(t *testing.T) {
	bl := &bltest.Device{}
	sim := &simController{bl: bl}
	d := startDriver(t, sim, Config{CRCDelay: time.Millisecond})

	pending := make(chan error, 1)
	go func() {
		_, err := d.GetReport(context.Background(), mtp.RptSystemStatus, 5*time.Second)
		pending <- err
	}()
	require.Eventually(t, func() bool { return d.Hub().Active() == 1 }, time.Second, time.Millisecond)

	var accepted, reads int
	d.FlashProgress = func(fwupdate.Progress) {
		before := d.IRQCount()
		d.Interrupt()
		if d.IRQCount() != before {
			accepted++
		}
		reads += sim.reportReads()
	}
	_, err := d.Flash(context.Background(), testImage(), false)
	require.NoError(t, err)

	select {
	case err := <-pending:
		assert.ErrorIs(t, err, ErrFirmwareUpdate)
	case <-time.After(time.Second):
		t.Fatal("pending report waiter not woken")
	}
	assert.Zero(t, accepted)
	assert.Zero(t, reads)
	assert.Zero(t, sim.reportReads())
	assert.Zero(t, d.IRQCount())

	d.Interrupt()
	assert.Equal(t, uint64(1), d.IRQCount())
	assert.Eventually(t, func() bool { return sim.reportReads() > 0 }, time.Second, time.Millisecond)
}

func TestBootloaderReset(t *testing.T) {
	bl := &bltest.Device{}
	d := New(&simController{bl: bl}, Config{})
	require.NoError(t, d.BootloaderReset())
	assert.Equal(t, 1, bl.Exits)
}

func writeCatalog(t *testing.T, img *fwupdate.Image) *fwupdate.Catalog {
	dir, err := ioutil.TempDir("", "driver")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "max11876.bin"), img.Data, 0644))
	return &fwupdate.Catalog{
		Dir:             dir,
		DefaultChipID:   0x75,
		DefaultConfigID: 0x0E01,
		Mappings: []fwupdate.Mapping{{
			ChipID:   0x75,
			ConfigID: 0x0E01,
			Filename: "max11876.bin",
			FileSize: len(img.Data),
			CodeSize: img.CodeSize,
		}},
	}
}

func TestValidateFirmware(t *testing.T) {
	img := testImage()
	bl := &bltest.Device{}
	sim := &simController{bl: bl, respond: chipResponder}
	d := startDriver(t, sim, Config{CRCDelay: time.Millisecond, Catalog: writeCatalog(t, img)})

	res, err := d.ValidateFirmware(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, img.Data, bl.Flash)

	res, err = d.ValidateFirmware(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, res.Attempts)

	cmds := sim.sentCommands()
	assert.Equal(t, []uint16{0x0018, 0x0001, 0x0002}, cmds[len(cmds)-1])
}

func TestValidateFirmwareUnresponsive(t *testing.T) {
	img := testImage()
	bl := &bltest.Device{}
	sim := &simController{bl: bl}
	catalog := writeCatalog(t, img)
	d := startDriver(t, sim, Config{
		QueryTimeout: 5 * time.Millisecond,
		QueryRetries: 1,
		CRCDelay:     time.Millisecond,
		Catalog:      catalog,
	})

	_, err := d.ValidateFirmware(context.Background(), false)
	assert.ErrorIs(t, err, ErrNotResponsive)
	assert.Zero(t, bl.Writes)

	catalog.DefaultsAllow = true
	_, err = d.ValidateFirmware(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, img.Data, bl.Flash)

	res, err := d.ValidateFirmware(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 2, bl.Writes)
}

func TestValidateFirmwareNoCatalog(t *testing.T) {
	_, err := New(&simController{}, Config{}).ValidateFirmware(context.Background(), false)
	assert.ErrorIs(t, err, ErrNoCatalog)
}
