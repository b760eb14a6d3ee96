package hmc5883l

// DefaultAddress is the fixed 7-bit bus address of the HMC5883L.
const DefaultAddress = 0x1E

// Register map
const (
	RegConfigA byte = 0x00
	RegConfigB byte = 0x01
	RegMode    byte = 0x02
	RegXMSB    byte = 0x03
	RegXLSB    byte = 0x04
	RegZMSB    byte = 0x05
	RegZLSB    byte = 0x06
	RegYMSB    byte = 0x07
	RegYLSB    byte = 0x08
	RegStatus  byte = 0x09
	RegIDA     byte = 0x10
	RegIDB     byte = 0x11
	RegIDC     byte = 0x12
)

// RegIdentification is where a real part answers with "H43": decimal 10,
// right after the status register. The pointer wraps to 0 after it.
const RegIdentification byte = 0x0A

// lastRegister is the highest register the device auto-increments to.
const lastRegister = RegIdentification + idLen - 1

// Mode is a ModeRegister operating mode code.
type Mode byte

const (
	ModeContinuous Mode = 0x00
	ModeSingleShot Mode = 0x01
	ModeIdle       Mode = 0x03
)

func (m Mode) String() string {
	switch m {
	case ModeContinuous:
		return "continuous"
	case ModeSingleShot:
		return "single"
	case ModeIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// GainCode5 selects gain 5 (bits 7:5 of ConfigurationRegisterB), the only
// operating point this driver writes.
const GainCode5 byte = 0xA0

// Scale is the digital resolution paired with the gain setting in mG/LSB.
// Samples are reported as raw counts and it is not applied.
const Scale = 0.92

const (
	dataLen = 6
	idLen   = 3

	statusRDY  = 0x01
	statusLOCK = 0x02
)
