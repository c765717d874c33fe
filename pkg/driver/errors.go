package driver

import (
	"github.com/pkg/errors"
)

// Errors
var (
	ErrNoPowerControl = errors.New("power control not available")
	ErrNoCatalog      = errors.New("firmware catalog not configured")
	ErrNotResponsive  = errors.New("firmware not responsive and default update disabled")
	ErrFirmwareUpdate = errors.New("firmware update in progress")
)
