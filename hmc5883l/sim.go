package hmc5883l

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/mklimuk/magnetometer"
)

// SampleBehaviorFunc produces the field the simulated device measures on each conversion.
type SampleBehaviorFunc func(ctx context.Context) (AxisSample, error)

// Simulator emulates the HMC5883L register file behind a magnetometer.Bus,
// so the driver and the CLI can run without hardware.
//
// Writes set the register pointer from their first byte and store the rest
// with auto-increment. A pointer past register 12 restarts at 0. Reads continue from the pointer. In continuous mode a
// fresh sample is latched whenever a read starts at the X MSB register.
//
// Example usage:
//
//	sim := NewSimulator(func(ctx context.Context) (AxisSample, error) {
//		return AxisSample{X: 10, Y: 20, Z: -10}, nil
//	})
//	s := New(sim)
type Simulator struct {
	mx       sync.Mutex
	behavior SampleBehaviorFunc
	regs     [int(lastRegister) + 1]byte
	pointer  byte
	bound    uint16
	closed   bool
	txCount  int
}

func NewSimulator(behavior SampleBehaviorFunc) *Simulator {
	sim := &Simulator{behavior: behavior, bound: DefaultAddress}
	sim.regs[RegConfigA] = 0x10
	sim.regs[RegConfigB] = 0x20
	sim.regs[RegMode] = byte(ModeSingleShot)
	copy(sim.regs[RegIdentification:], "H43")
	return sim
}

func (sim *Simulator) Bind(addr uint16) error {
	sim.mx.Lock()
	defer sim.mx.Unlock()
	if addr != DefaultAddress {
		return &magnetometer.BindError{Addr: addr, Err: fmt.Errorf("no simulated device at %#x", addr)}
	}
	sim.bound = addr
	return nil
}

func (sim *Simulator) Close() error {
	sim.mx.Lock()
	defer sim.mx.Unlock()
	sim.closed = true
	return nil
}

// Register returns the current content of reg, zero past the last register.
func (sim *Simulator) Register(reg byte) byte {
	sim.mx.Lock()
	defer sim.mx.Unlock()
	if int(reg) >= len(sim.regs) {
		return 0
	}
	return sim.regs[reg]
}

// Transactions returns the number of transfers accepted so far.
func (sim *Simulator) Transactions() int {
	sim.mx.Lock()
	defer sim.mx.Unlock()
	return sim.txCount
}

func (sim *Simulator) Transfer(ctx context.Context, msgs []magnetometer.Message) error {
	sim.mx.Lock()
	defer sim.mx.Unlock()
	if sim.closed {
		return magnetometer.NewTransferError(msgs, fmt.Errorf("simulator closed"))
	}
	if err := magnetometer.ValidateMessages(msgs); err != nil {
		return magnetometer.NewTransferError(msgs, err)
	}
	for _, msg := range msgs {
		if msg.Addr != sim.bound {
			return magnetometer.NewTransferError(msgs, magnetometer.ErrAddressMismatch)
		}
	}
	for _, msg := range msgs {
		if !msg.Read {
			sim.write(msg.Buf)
			continue
		}
		if err := sim.read(ctx, msg.Buf); err != nil {
			return magnetometer.NewTransferError(msgs, err)
		}
	}
	sim.txCount++
	return nil
}

func (sim *Simulator) write(buf []byte) {
	sim.pointer = buf[0]
	if int(sim.pointer) >= len(sim.regs) {
		sim.pointer = 0
	}
	for _, b := range buf[1:] {
		if sim.pointer <= RegMode {
			sim.regs[sim.pointer] = b
		}
		sim.advance()
	}
}

func (sim *Simulator) read(ctx context.Context, buf []byte) error {
	continuous := Mode(sim.regs[RegMode]&0x03) == ModeContinuous
	start := sim.pointer
	switch {
	case start == RegXMSB && continuous:
		sample, err := sim.behavior(ctx)
		if err != nil {
			return err
		}
		binary.BigEndian.PutUint16(sim.regs[RegXMSB:], uint16(sample.X))
		binary.BigEndian.PutUint16(sim.regs[RegZMSB:], uint16(sample.Z))
		binary.BigEndian.PutUint16(sim.regs[RegYMSB:], uint16(sample.Y))
	case start == RegStatus && continuous:
		sim.regs[RegStatus] |= statusRDY
	}
	for i := range buf {
		buf[i] = sim.regs[sim.pointer]
		sim.advance()
	}
	if start == RegXMSB {
		sim.regs[RegStatus] &^= statusRDY
	}
	return nil
}

// advance moves the pointer the way the device does: up to 12, then back to 0.
func (sim *Simulator) advance() {
	sim.pointer++
	if int(sim.pointer) >= len(sim.regs) {
		sim.pointer = 0
	}
}
