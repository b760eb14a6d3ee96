package hmc5883l

import (
	"encoding/binary"
	"fmt"
)

// AxisSample holds raw signed counts for one reading.
type AxisSample struct {
	X int16 `yaml:"x"`
	Y int16 `yaml:"y"`
	Z int16 `yaml:"z"`
}

func (s AxisSample) String() string {
	return fmt.Sprintf("x=%d y=%d z=%d", s.X, s.Y, s.Z)
}

// TwosComplement interprets the low bits of value as a signed integer of the given width.
func TwosComplement(value uint32, bits uint) int64 {
	if value&(1<<(bits-1)) != 0 {
		return int64(value) - int64(1)<<bits
	}
	return int64(value)
}

// Decode converts the six data registers into a sample.
// The device stores the axes in X, Z, Y order, each MSB first.
func Decode(raw [dataLen]byte) AxisSample {
	return AxisSample{
		X: decodeAxis(raw[0:2]),
		Z: decodeAxis(raw[2:4]),
		Y: decodeAxis(raw[4:6]),
	}
}

func decodeAxis(pair []byte) int16 {
	return int16(TwosComplement(uint32(binary.BigEndian.Uint16(pair)), 16))
}
