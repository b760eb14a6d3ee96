//go:build !linux

package i2c

import (
	"context"
	"errors"

	"github.com/mklimuk/magnetometer"
)

var errNotLinux = errors.New("i2c-dev is only available on linux")

// Devfs is unavailable outside linux, Open always fails.
type Devfs struct{}

func Open(bus int) (*Devfs, error) {
	return nil, &magnetometer.OpenError{Path: DevicePath(bus), Err: errNotLinux}
}

func (d *Devfs) Bind(addr uint16) error {
	return &magnetometer.BindError{Addr: addr, Err: errNotLinux}
}

func (d *Devfs) Transfer(ctx context.Context, msgs []magnetometer.Message) error {
	return magnetometer.NewTransferError(msgs, errNotLinux)
}

func (d *Devfs) Close() error {
	return nil
}
