//go:build linux

package i2c

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/mklimuk/magnetometer"
)

// i2c-dev ioctl requests and message flags, see linux/i2c-dev.h and linux/i2c.h
const (
	ioctlTenBit = 0x0704
	ioctlSlave  = 0x0703
	ioctlRdwr   = 0x0707

	flagRead   = 0x0001
	flagTenBit = 0x0010

	maxSevenBitAddr = 0x7F
	maxMessages     = 42 // I2C_RDWR_IOCTL_MAX_MSGS
)

// kernelMsg mirrors struct i2c_msg.
type kernelMsg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

// rdwrData mirrors struct i2c_rdwr_ioctl_data.
type rdwrData struct {
	msgs  uintptr
	nmsgs uint32
}

var _ magnetometer.Bus = &Devfs{}

// Devfs talks to an I2C adapter through the i2c-dev character device.
// The "i2c-dev" kernel module must be loaded.
type Devfs struct {
	f     *os.File
	path  string
	addr  uint16
	bound bool
}

// Open opens /dev/i2c-<bus> for read and write.
func Open(bus int) (*Devfs, error) {
	path := DevicePath(bus)
	f, err := os.OpenFile(path, os.O_RDWR, os.ModeDevice)
	if err != nil {
		return nil, &magnetometer.OpenError{Path: path, Err: err}
	}
	slog.Debug("opened i2c device", "path", path)
	return &Devfs{f: f, path: path}, nil
}

// Bind selects the target device for all subsequent transfers.
func (d *Devfs) Bind(addr uint16) error {
	tenBit := 0
	if addr > maxSevenBitAddr {
		tenBit = 1
	}
	if err := unix.IoctlSetInt(int(d.f.Fd()), ioctlTenBit, tenBit); err != nil {
		return &magnetometer.BindError{Addr: addr, Err: fmt.Errorf("could not set address width: %w", err)}
	}
	if err := unix.IoctlSetInt(int(d.f.Fd()), ioctlSlave, int(addr)); err != nil {
		return &magnetometer.BindError{Addr: addr, Err: err}
	}
	d.addr = addr
	d.bound = true
	slog.Debug("bound i2c address", "path", d.path, "addr", fmt.Sprintf("%#x", addr))
	return nil
}

// Transfer submits msgs with a single I2C_RDWR ioctl so no other bus
// traffic can interleave between them.
func (d *Devfs) Transfer(ctx context.Context, msgs []magnetometer.Message) error {
	if err := d.check(ctx, msgs); err != nil {
		return magnetometer.NewTransferError(msgs, err)
	}
	kmsgs := packMessages(msgs)
	data := rdwrData{
		msgs:  uintptr(unsafe.Pointer(&kmsgs[0])),
		nmsgs: uint32(len(kmsgs)),
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), ioctlRdwr, uintptr(unsafe.Pointer(&data)))
	runtime.KeepAlive(kmsgs)
	runtime.KeepAlive(msgs)
	if errno != 0 {
		return magnetometer.NewTransferError(msgs, errno)
	}
	slog.DebugContext(ctx, "i2c transaction", "path", d.path, "msgs", msgs)
	return nil
}

func (d *Devfs) check(ctx context.Context, msgs []magnetometer.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !d.bound {
		return magnetometer.ErrNotBound
	}
	if err := magnetometer.ValidateMessages(msgs); err != nil {
		return err
	}
	if len(msgs) > maxMessages {
		return fmt.Errorf("%d messages exceed the kernel limit of %d", len(msgs), maxMessages)
	}
	for i, msg := range msgs {
		if msg.Addr != d.addr {
			return fmt.Errorf("message %d to %#x: %w", i, msg.Addr, magnetometer.ErrAddressMismatch)
		}
		if len(msg.Buf) > 0xFFFF {
			return fmt.Errorf("message %d is %d bytes long", i, len(msg.Buf))
		}
	}
	return nil
}

// packMessages converts msgs into the kernel layout. The returned structs
// point into the message buffers, which must stay alive until the ioctl returns.
func packMessages(msgs []magnetometer.Message) []kernelMsg {
	kmsgs := make([]kernelMsg, len(msgs))
	for i, msg := range msgs {
		var flags uint16
		if msg.Read {
			flags |= flagRead
		}
		if msg.Addr > maxSevenBitAddr {
			flags |= flagTenBit
		}
		kmsgs[i] = kernelMsg{
			addr:  msg.Addr,
			flags: flags,
			len:   uint16(len(msg.Buf)),
			buf:   uintptr(unsafe.Pointer(&msg.Buf[0])),
		}
	}
	return kmsgs
}

func (d *Devfs) Close() error {
	return d.f.Close()
}
