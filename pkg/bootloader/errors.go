package bootloader

import (
	"github.com/pkg/errors"
)

// Errors
var (
	ErrEnterFailed      = errors.New("bootloader enter failed")
	ErrIO               = errors.New("bootloader I/O error")
	ErrEraseFailed      = errors.New("flash erase failed")
	ErrFlashWriteFailed = errors.New("flash write failed")
	ErrCRCReadFailed    = errors.New("CRC read failed")
	ErrNotInBootloader  = errors.New("not in bootloader mode")
)
