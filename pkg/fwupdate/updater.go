package fwupdate

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/max1187x/pkg/bootloader"
)

// Bootloader is the flashing interface of the device,
// implemented by bootloader.Session.
type Bootloader interface {
	Enter() error
	Exit() error
	EraseFlash() error
	SetByteMode() error
	WriteFlash(image []byte) error
	GetCRC(addr, length uint16, delay time.Duration) (uint16, error)
}

// DefaultRetries bounds the CRC check, reprogramming and exit attempts.
const DefaultRetries = 5

// Phase is the stage of an update.
type Phase string

// Phases
const (
	PhaseChecking      Phase = "checking"
	PhaseReprogramming Phase = "reprogramming"
	PhaseExiting       Phase = "exiting"
	PhaseComplete      Phase = "complete"
)

// Progress is reported at the beginning of each phase and attempt.
type Progress struct {
	Phase   Phase
	Attempt int
}

// ProgressCallback receives Progress.
type ProgressCallback func(Progress)

// Config configures an Updater.
type Config struct {
	Retries          int
	CRCDelay         time.Duration
	ProgressCallback ProgressCallback
}

// Option is a functional option of Updater.
type Option func(*Config)

// WithRetries sets the attempt bound.
func WithRetries(retries int) Option {
	return func(c *Config) {
		if retries > 0 {
			c.Retries = retries
		}
	}
}

// WithCRCDelay sets the time the device is given to compute a CRC.
func WithCRCDelay(delay time.Duration) Option {
	return func(c *Config) {
		c.CRCDelay = delay
	}
}

// WithProgressCallback sets the progress callback.
func WithProgressCallback(cb ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = cb
	}
}

// Result describes a completed update.
type Result struct {
	// Attempts is the number of reprogramming attempts, 0 if the device
	// was already up to date.
	Attempts  int
	Reflashed bool

	ImageCodeCRC uint16
	ChipCodeCRC  uint16
	// ChipCodeCRCValid is false if the device never reported the CRC
	// of its code region.
	ChipCodeCRCValid bool
	ImageCRC         uint16
	ChipCRC          uint16
}

// Updater flashes images through a Bootloader.
type Updater struct {
	bl     Bootloader
	config Config
}

// New creates an Updater.
func New(bl Bootloader, opts ...Option) *Updater {
	u := &Updater{
		bl: bl,
		config: Config{
			Retries:  DefaultRetries,
			CRCDelay: bootloader.DefaultCRCDelay,
		},
	}
	for _, opt := range opts {
		opt(&u.config)
	}
	return u
}

// Update verifies the device against img and reprograms it when the code
// region differs or force is set. The bootloader is always exited before
// returning.
func (u *Updater) Update(ctx context.Context, img *Image, force bool) (*Result, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	res, err := u.update(ctx, img, force)
	if exitErr := u.exit(); exitErr != nil && err == nil {
		err = errors.Wrap(exitErr, "exit bootloader")
	}
	if err == nil {
		u.progress(PhaseComplete, res.Attempts)
	}
	return res, err
}

func (u *Updater) update(ctx context.Context, img *Image, force bool) (*Result, error) {
	res := &Result{ImageCodeCRC: img.CodeCRC()}
	codeSize := uint16(img.CodeSize)
	for i := 0; i < u.config.Retries && !res.ChipCodeCRCValid; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		u.progress(PhaseChecking, i+1)
		err := u.bl.Enter()
		if err == nil {
			res.ChipCodeCRC, err = u.bl.GetCRC(0, codeSize, u.config.CRCDelay)
			res.ChipCodeCRCValid = err == nil
		}
		if err != nil {
			glog.Warningf("code CRC check attempt %d: %v", i+1, err)
		}
		u.bl.Exit()
	}
	glog.Infof("image code CRC %04x, chip code CRC %04x (valid %v)",
		res.ImageCodeCRC, res.ChipCodeCRC, res.ChipCodeCRCValid)

	if !force && res.ChipCodeCRCValid && res.ChipCodeCRC == res.ImageCodeCRC {
		return res, nil
	}

	res.ImageCRC = img.CRC()
	length := uint16(len(img.Data))
	verified := false
	var lastErr error
	for res.Attempts < u.config.Retries && !verified {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Attempts++
		res.Reflashed = true
		u.progress(PhaseReprogramming, res.Attempts)
		glog.Infof("reprogramming chip, attempt %d", res.Attempts)
		err := u.bl.Enter()
		if err == nil {
			err = u.bl.EraseFlash()
		}
		if err == nil {
			err = u.bl.SetByteMode()
		}
		if err == nil {
			err = u.bl.WriteFlash(img.Data)
		}
		if err == nil {
			var crc uint16
			if crc, err = u.bl.GetCRC(0, length, u.config.CRCDelay); err == nil {
				res.ChipCRC = crc
				verified = crc == res.ImageCRC
			}
		}
		glog.Infof("image CRC %04x, chip CRC %04x", res.ImageCRC, res.ChipCRC)
		if err != nil {
			glog.Warningf("reprogramming attempt %d: %v", res.Attempts, err)
			lastErr = err
		}
		u.bl.Exit()
	}
	if !verified {
		if lastErr != nil {
			return res, errors.Wrapf(ErrVerifyFailed, "after %d attempts: %v", res.Attempts, lastErr)
		}
		return res, errors.Wrapf(ErrVerifyFailed, "chip CRC %04x, image CRC %04x", res.ChipCRC, res.ImageCRC)
	}
	return res, nil
}

func (u *Updater) exit() (err error) {
	u.progress(PhaseExiting, 0)
	for i := 0; i < u.config.Retries; i++ {
		if err = u.bl.Exit(); err == nil {
			return nil
		}
	}
	return err
}

func (u *Updater) progress(phase Phase, attempt int) {
	if cb := u.config.ProgressCallback; cb != nil {
		cb(Progress{Phase: phase, Attempt: attempt})
	}
}
