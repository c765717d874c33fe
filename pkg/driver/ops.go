package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/max1187x/pkg/bootloader"
	"github.com/robotalks/max1187x/pkg/mtp"
)

// Power modes
const (
	PowerModeSleep  uint16 = 0x0001
	PowerModeActive uint16 = 0x0002
	PowerModeWakeup uint16 = 0x0006
)

// Touch report modes
const (
	TouchReportBasic    uint16 = 0x0001
	TouchReportExtended uint16 = 0x0002
)

// SendRawCommand sends command words without waiting for a response.
func (d *Driver) SendRawCommand(words []uint16) error {
	if err := mtp.ValidateCommand(words); err != nil {
		return err
	}
	return d.sendCommand(words)
}

// Query sends a command and waits up to timeout for the report with
// reportID, QueryTimeout is used if timeout isn't positive. The exchange
// is attempted QueryRetries times.
func (d *Driver) Query(ctx context.Context, words []uint16, reportID uint16, timeout time.Duration) (rpt *mtp.Report, err error) {
	if err = mtp.ValidateCommand(words); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = d.QueryTimeout
	}
	for i := 0; i < d.QueryRetries; i++ {
		rpt, err = d.correlator.SendAndAwait(ctx, words, reportID, timeout)
		if err == nil {
			return rpt, nil
		}
		if ctx.Err() != nil || errors.Is(err, mtp.ErrClosed) {
			break
		}
		glog.V(1).Infof("query %04x attempt %d: %v", words[0], i+1, err)
	}
	return nil, err
}

// GetReport waits up to timeout for the next report with reportID,
// or any report with mtp.AnyReport.
func (d *Driver) GetReport(ctx context.Context, reportID uint16, timeout time.Duration) (*mtp.Report, error) {
	rd, err := d.hub.Subscribe(reportID)
	if err != nil {
		return nil, err
	}
	return rd.Wait(ctx, timeout)
}

// ReadChipData queries firmware version and configuration of the device.
func (d *Driver) ReadChipData(ctx context.Context) (ChipData, error) {
	var chip ChipData
	rpt, err := d.Query(ctx, mtp.NewCommand(mtp.CmdGetFirmwareVersion), mtp.RptFirmwareVer, 0)
	if err != nil {
		return chip, errors.Wrap(err, "firmware version")
	}
	w3 := rpt.Word(3)
	chip.FirmwareMajor, chip.FirmwareMinor = uint8(w3>>8), uint8(w3)
	chip.ChipID = uint8(rpt.Word(4) >> 8)
	chip.FirmwareBuild = rpt.Word(5)

	rpt, err = d.Query(ctx, mtp.NewCommand(mtp.CmdGetConfigInfo), mtp.RptConfigInfo, 0)
	if err != nil {
		return chip, errors.Wrap(err, "config info")
	}
	chip.ConfigID = rpt.Word(3)
	chip.CustomerInfo = [2]uint16{rpt.Word(43), rpt.Word(42)}

	glog.Infof("firmware %s chip id %02x config id %04x", chip.FirmwareVersion(), chip.ChipID, chip.ConfigID)
	d.chipLock.Lock()
	d.chip = chip
	d.chipLock.Unlock()
	return chip, nil
}

// ChipData returns the identification from the last successful read.
func (d *Driver) ChipData() ChipData {
	d.chipLock.RLock()
	defer d.chipLock.RUnlock()
	return d.chip
}

// FirmwareVersion formats the version as major.minor.build.
func (c ChipData) FirmwareVersion() string {
	return fmt.Sprintf("%d.%d.%d", c.FirmwareMajor, c.FirmwareMinor, c.FirmwareBuild)
}

// SoftReset resets the firmware and waits for the system status report.
func (d *Driver) SoftReset(ctx context.Context) error {
	_, err := d.correlator.SendAndAwait(ctx, mtp.NewCommand(mtp.CmdResetSystem),
		mtp.RptSystemStatus, SoftResetTimeout)
	if err != nil {
		return errors.Wrap(err, "soft reset")
	}
	d.touch.ReleaseAll()
	return nil
}

// PowerOnReset power cycles the device.
func (d *Driver) PowerOnReset() error {
	glog.Info("power on reset")
	return d.powerCycle()
}

// BootloaderReset asks the device to leave the bootloader.
func (d *Driver) BootloaderReset() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return bootloader.NewSession(d.link).Exit()
}

// SetPowerMode sets the device power mode.
func (d *Driver) SetPowerMode(mode uint16) error {
	return d.sendCommand(mtp.NewCommand(mtp.CmdSetPowerMode, mode))
}

// SetTouchReportMode selects basic or extended touch reports.
func (d *Driver) SetTouchReportMode(mode uint16) error {
	return d.sendCommand(mtp.NewCommand(mtp.CmdSetTouchRptMode, mode))
}

// Suspend puts the device to sleep, or into wake-up gesture mode if
// WakeupGesture is set.
func (d *Driver) Suspend() error {
	mode := PowerModeSleep
	if d.WakeupGesture {
		mode = PowerModeWakeup
	}
	glog.Infof("suspend, power mode %04x", mode)
	if released := d.touch.ReleaseAll(); len(released) > 0 {
		glog.V(1).Infof("released %v", released)
	}
	if err := d.SetPowerMode(mode); err != nil {
		return err
	}
	d.touch.SetSuspended(true)
	return nil
}

// Resume wakes the device up and restores extended touch reports.
func (d *Driver) Resume() error {
	glog.Info("resume")
	if d.ResumePOR {
		if err := d.powerCycle(); err != nil {
			glog.Warningf("resume power cycle: %v", err)
		}
	}
	if err := d.SetPowerMode(PowerModeActive); err != nil {
		return err
	}
	if err := d.SetTouchReportMode(TouchReportExtended); err != nil {
		return err
	}
	d.touch.SetSuspended(false)
	return nil
}

// Suspended indicates the device was suspended.
func (d *Driver) Suspended() bool {
	return d.touch.Suspended()
}

// SetScreen suspends the device when the screen turns off and resumes
// it when the screen turns on.
func (d *Driver) SetScreen(on bool) error {
	if on == !d.Suspended() {
		return nil
	}
	if on {
		return d.Resume()
	}
	return d.Suspend()
}
