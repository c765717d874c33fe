// Package i2cdev implements mtp.Bus on Linux i2c-dev character devices
// and power cycles the controller through a sysfs GPIO.
package i2cdev
