package i2c

import (
	"context"
	"fmt"
	"log/slog"

	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"

	"github.com/mklimuk/magnetometer"
)

// blockConn is the subset of a gobot i2c.Connection the bus relies on.
type blockConn interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	ReadBlockData(reg uint8, b []byte) error
	Close() error
}

var _ magnetometer.Bus = &GobotBus{}

// GobotBus drives the bus through a gobot NanoPi adaptor. A register
// pointer write followed by a read is issued as an SMBus block read, which
// the kernel performs as one transaction with a repeated start.
type GobotBus struct {
	adaptor *nanopi.NeoAdaptor
	busNr   int
	conn    blockConn
	addr    uint16
}

func OpenGobotBus(busNumber int) (*GobotBus, error) {
	npi := nanopi.NewNeoAdaptor()
	err := npi.I2cBusAdaptor.Connect()
	if err != nil {
		return nil, &magnetometer.OpenError{Path: DevicePath(busNumber), Err: fmt.Errorf("adaptor connect error: %w", err)}
	}
	return &GobotBus{adaptor: npi, busNr: busNumber}, nil
}

func (b *GobotBus) Bind(addr uint16) error {
	conn, err := b.adaptor.I2cBusAdaptor.GetI2cConnection(int(addr), b.busNr)
	if err != nil {
		return &magnetometer.BindError{Addr: addr, Err: err}
	}
	if b.conn != nil {
		_ = b.conn.Close()
	}
	b.conn = conn
	b.addr = addr
	return nil
}

func (b *GobotBus) Transfer(ctx context.Context, msgs []magnetometer.Message) error {
	if b.conn == nil {
		return magnetometer.NewTransferError(msgs, magnetometer.ErrNotBound)
	}
	err := transferBlock(b.conn, b.addr, msgs)
	if err != nil {
		return magnetometer.NewTransferError(msgs, err)
	}
	slog.DebugContext(ctx, "i2c transaction", "bus", b.busNr, "msgs", msgs)
	return nil
}

func transferBlock(conn blockConn, addr uint16, msgs []magnetometer.Message) error {
	w, r, err := splitTx(msgs)
	if err != nil {
		return err
	}
	if msgs[0].Addr != addr {
		return magnetometer.ErrAddressMismatch
	}
	switch {
	case r == nil:
		n, err := conn.Write(w)
		if err != nil {
			return err
		}
		if n != len(w) {
			return fmt.Errorf("short write: %d of %d", n, len(w))
		}
	case w == nil:
		n, err := conn.Read(r)
		if err != nil {
			return err
		}
		if n != len(r) {
			return fmt.Errorf("short read: %d of %d", n, len(r))
		}
	case len(w) == 1:
		return conn.ReadBlockData(w[0], r)
	default:
		return fmt.Errorf("%d byte pointer write: %w", len(w), magnetometer.ErrUnsupportedTransaction)
	}
	return nil
}

func (b *GobotBus) Close() error {
	var err error
	if b.conn != nil {
		err = b.conn.Close()
	}
	if ferr := b.adaptor.I2cBusAdaptor.Finalize(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}
