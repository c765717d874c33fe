// Package fwupdate decides whether a controller needs to be reflashed and
// drives the bootloader to program and verify a firmware image.
//
// The check compares the CRC-16 of the image's code region with the one
// computed by the device. Reprogramming erases, writes and verifies the
// whole image, with a bounded number of attempts.
package fwupdate
