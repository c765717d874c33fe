package driver

import (
	"context"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/max1187x/pkg/bootloader"
	"github.com/robotalks/max1187x/pkg/fwupdate"
)

// Flash writes img to the device. Report processing is stopped and the
// transport is held for the whole update.
func (d *Driver) Flash(ctx context.Context, img *fwupdate.Image, force bool) (*fwupdate.Result, error) {
	d.fwLock.Lock()
	defer d.fwLock.Unlock()
	return d.flash(ctx, img, force)
}

func (d *Driver) flash(ctx context.Context, img *fwupdate.Image, force bool) (*fwupdate.Result, error) {
	enabled := d.loop.Enabled()
	d.loop.SetEnabled(false)
	defer d.loop.SetEnabled(enabled)

	if released := d.touch.ReleaseAll(); len(released) > 0 {
		glog.V(1).Infof("released %v", released)
	}
	d.hub.Fail(ErrFirmwareUpdate)

	d.lock.Lock()
	defer d.lock.Unlock()
	opts := []fwupdate.Option{fwupdate.WithProgressCallback(d.FlashProgress)}
	if d.CRCDelay > 0 {
		opts = append(opts, fwupdate.WithCRCDelay(d.CRCDelay))
	}
	res, err := fwupdate.New(bootloader.NewSession(d.link), opts...).Update(ctx, img, force)
	d.framer.Reset()
	return res, err
}

// ValidateFirmware identifies the device, looks up its image in the
// catalog and updates the device if the image differs. With force the
// identification is skipped and the default image is written.
func (d *Driver) ValidateFirmware(ctx context.Context, force bool) (*fwupdate.Result, error) {
	if d.Catalog == nil {
		return nil, ErrNoCatalog
	}
	d.fwLock.Lock()
	defer d.fwLock.Unlock()

	var chipID, configID uint16
	if !force {
		chip, err := d.ReadChipData(ctx)
		if err != nil {
			if !d.Catalog.DefaultsAllow {
				return nil, errors.Wrapf(ErrNotResponsive, "%v", err)
			}
			glog.Warningf("chip data unavailable, using defaults: %v", err)
		} else {
			chipID, configID = uint16(chip.ChipID), chip.ConfigID
		}
	}

	m, err := d.Catalog.Lookup(chipID, configID)
	if err != nil {
		return nil, err
	}
	img, err := d.Catalog.Load(m)
	if err != nil {
		return nil, err
	}
	glog.Infof("validating firmware %s", m.Filename)
	res, err := d.flash(ctx, img, force)
	if err != nil {
		return res, err
	}

	if _, err := d.ReadChipData(ctx); err != nil {
		glog.Warningf("chip data after update: %v", err)
	}
	if err := d.SetTouchReportMode(TouchReportExtended); err != nil {
		glog.Warningf("set touch report mode: %v", err)
	}
	return res, nil
}
