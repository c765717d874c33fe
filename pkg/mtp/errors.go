package mtp

import (
	"github.com/pkg/errors"
)

var (
	// ErrAgain is returned by a Bus when the transaction should be retried.
	ErrAgain = errors.New("try again")
	// ErrTransportShortWrite indicates fewer bytes than requested were sent.
	ErrTransportShortWrite = errors.New("transport short write")
	// ErrTransportShortRead indicates fewer bytes than requested were received,
	// or the received header declares an invalid size.
	ErrTransportShortRead = errors.New("transport short read")
	// ErrInvalidCommandLength indicates the command words are malformed.
	ErrInvalidCommandLength = errors.New("invalid command length")
	// ErrUnexpectedFragment indicates a report packet arrived out of sequence.
	// The partially combined report is discarded.
	ErrUnexpectedFragment = errors.New("unexpected report fragment")
	// ErrReaderTableFull indicates all reader slots are in use.
	ErrReaderTableFull = errors.New("maximum readers reached")
	// ErrReaderReleased indicates the reader has already been released.
	ErrReaderReleased = errors.New("reader released")
	// ErrResponseTimeout indicates the expected report didn't arrive in time.
	ErrResponseTimeout = errors.New("response timeout")
	// ErrCommandSendFailed indicates a correlated command couldn't be sent.
	ErrCommandSendFailed = errors.New("command send failed")
	// ErrClosed indicates the session is shutting down.
	ErrClosed = errors.New("closed")
)
