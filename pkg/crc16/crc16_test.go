package crc16

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksum(t *testing.T) {
	testCases := []struct {
		name   string
		data   []byte
		expect uint16
	}{
		{"empty", nil, 0x0000},
		{"check string", []byte("123456789"), 0xBB3D},
		{"single byte", []byte{0x01}, 0xC0C1},
		{"zeros", make([]byte, 4), 0x0000},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, Checksum(tc.data))
		})
	}
}

func TestUpdateIncremental(t *testing.T) {
	data := []byte("touch controller firmware image")
	crc := Update(0, data[:7])
	crc = Update(crc, data[7:])
	assert.Equal(t, Checksum(data), crc)
}
