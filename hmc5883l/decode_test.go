package hmc5883l

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTwosComplement16(t *testing.T) {
	for v := uint32(0); v <= 0xFFFF; v++ {
		got := TwosComplement(v, 16)
		if v <= 32767 {
			if got != int64(v) {
				t.Fatalf("%#x: expected %d, got %d", v, v, got)
			}
		} else if got != int64(v)-65536 {
			t.Fatalf("%#x: expected %d, got %d", v, int64(v)-65536, got)
		}
		// re-encoding modulo 2^16 gives back the raw value
		if uint32(uint16(got)) != v {
			t.Fatalf("%#x: re-encoded to %#x", v, uint16(got))
		}
	}
}

func TestTwosComplementWidths(t *testing.T) {
	tests := []struct {
		value    uint32
		bits     uint
		expected int64
	}{
		{0x0, 1, 0},
		{0x1, 1, -1},
		{0x7F, 8, 127},
		{0x80, 8, -128},
		{0xFF, 8, -1},
		{0x7FF, 12, 2047},
		{0x800, 12, -2048},
		{0xFFFFFFFF, 32, -1},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, TwosComplement(test.value, test.bits), "value %#x width %d", test.value, test.bits)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		given    [6]byte
		expected AxisSample
	}{
		{[6]byte{0x00, 0x0A, 0xFF, 0xF6, 0x00, 0x14}, AxisSample{X: 10, Z: -10, Y: 20}},
		{[6]byte{0x80, 0x00, 0x80, 0x00, 0x80, 0x00}, AxisSample{X: -32768, Y: -32768, Z: -32768}},
		{[6]byte{0x7F, 0xFF, 0x7F, 0xFF, 0x7F, 0xFF}, AxisSample{X: 32767, Y: 32767, Z: 32767}},
		{[6]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, AxisSample{}},
		{[6]byte{0xFF, 0xFF, 0x01, 0x00, 0xF0, 0x00}, AxisSample{X: -1, Z: 256, Y: -4096}},
	}
	for _, test := range tests {
		t.Run(hex.EncodeToString(test.given[:]), func(t *testing.T) {
			assert.Equal(t, test.expected, Decode(test.given))
			// same input, same output
			assert.Equal(t, Decode(test.given), Decode(test.given))
		})
	}
}

func TestAxisSampleString(t *testing.T) {
	assert.Equal(t, "x=10 y=20 z=-10", AxisSample{X: 10, Y: 20, Z: -10}.String())
}
