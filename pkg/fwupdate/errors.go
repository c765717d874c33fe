package fwupdate

import (
	"github.com/pkg/errors"
)

// Errors
var (
	ErrVerifyFailed = errors.New("firmware verify failed")
	ErrImageSize    = errors.New("invalid firmware image size")
	ErrNoFirmware   = errors.New("no firmware for chip")
)
