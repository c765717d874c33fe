// Package crc16 implements the CRC-16/ARC checksum used to verify
// controller firmware: reflected polynomial 0xA001, zero initial value,
// no final xor.
package crc16

// Polynomial is the reflected form of 0x8005.
const Polynomial = 0xA001

var table = makeTable()

func makeTable() (t [256]uint16) {
	for i := range t {
		crc := uint16(i)
		for bit := 0; bit < 8; bit++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ Polynomial
			} else {
				crc >>= 1
			}
		}
		t[i] = crc
	}
	return
}

// Update continues crc over data.
func Update(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = crc>>8 ^ table[byte(crc)^b]
	}
	return crc
}

// Checksum returns the CRC of data.
func Checksum(data []byte) uint16 {
	return Update(0, data)
}
