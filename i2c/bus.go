package i2c

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/mklimuk/magnetometer"
)

var _ magnetometer.Bus = &GenericBus{}

// GenericBus is a periph.io backed bus. periph executes a write followed by
// a read as one combined transaction, so only [write], [read] and
// [write, read] transactions are accepted.
type GenericBus struct {
	bus   i2c.BusCloser
	name  string
	addr  uint16
	bound bool
}

var ErrAddressOutOfRange = errors.New("address out of range")

func OpenGenericBus(busNumber int) (*GenericBus, error) {
	name := strconv.Itoa(busNumber)
	state, err := host.Init()
	if err != nil {
		return nil, &magnetometer.OpenError{Path: name, Err: fmt.Errorf("could not init host: %w", err)}
	}
	for _, driver := range state.Loaded {
		slog.Debug("periph driver loaded", "driver", driver.String())
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, &magnetometer.OpenError{Path: name, Err: err}
	}
	return &GenericBus{
		bus:  bus,
		name: bus.String(),
	}, nil
}

// Bind records the device address; periph addresses every Tx explicitly.
func (b *GenericBus) Bind(addr uint16) error {
	if addr > 0x3FF {
		return &magnetometer.BindError{Addr: addr, Err: ErrAddressOutOfRange}
	}
	b.addr = addr
	b.bound = true
	return nil
}

func (b *GenericBus) SetSpeed(f physic.Frequency) error {
	return b.bus.SetSpeed(f)
}

func (b *GenericBus) Transfer(ctx context.Context, msgs []magnetometer.Message) error {
	if !b.bound {
		return magnetometer.NewTransferError(msgs, magnetometer.ErrNotBound)
	}
	w, r, err := splitTx(msgs)
	if err != nil {
		return magnetometer.NewTransferError(msgs, err)
	}
	if msgs[0].Addr != b.addr {
		return magnetometer.NewTransferError(msgs, magnetometer.ErrAddressMismatch)
	}
	err = b.bus.Tx(b.addr, w, r)
	if err != nil {
		return magnetometer.NewTransferError(msgs, err)
	}
	slog.DebugContext(ctx, "i2c transaction", "bus", b.name, "msgs", msgs)
	return nil
}

func (b *GenericBus) Close() error {
	return b.bus.Close()
}

// splitTx maps a transaction onto a single write buffer and read buffer.
func splitTx(msgs []magnetometer.Message) (w, r []byte, err error) {
	if err := magnetometer.ValidateMessages(msgs); err != nil {
		return nil, nil, err
	}
	for _, msg := range msgs[1:] {
		if msg.Addr != msgs[0].Addr {
			return nil, nil, magnetometer.ErrAddressMismatch
		}
	}
	switch {
	case len(msgs) == 1 && msgs[0].Read:
		return nil, msgs[0].Buf, nil
	case len(msgs) == 1:
		return msgs[0].Buf, nil, nil
	case len(msgs) == 2 && !msgs[0].Read && msgs[1].Read:
		return msgs[0].Buf, msgs[1].Buf, nil
	default:
		return nil, nil, magnetometer.ErrUnsupportedTransaction
	}
}
