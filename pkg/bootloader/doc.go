// Package bootloader talks to the flashing registers a controller exposes
// after the enter sequence. The bootloader has a status register and a data
// register. Every data exchange waits for the status register to read
// ready, and every transfer is acknowledged by writing the transfer
// complete code into the status register.
package bootloader
