package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/mklimuk/magnetometer"
	"github.com/mklimuk/magnetometer/mgctx"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

// HID command codes
const (
	cmdStatus             = 0x10
	cmdGetI2CData         = 0x40
	cmdWriteData          = 0x90
	cmdReadData           = 0x91
	cmdReadDataRepStart   = 0x93
	cmdWriteDataNoStop    = 0x94
	subCmdCancelTransfer  = 0x10
	respI2CDataError      = 0x41
	maxTransferLength     = 60
	packetSize            = 64
	invalidDataLengthByte = 127
)

var ErrTransferTooLong = fmt.Errorf("transfer longer than %d bytes", maxTransferLength)

var _ magnetometer.Bus = &MCP2221{}

// MCP2221 is a Microchip MCP2221 USB to I2C bridge used as a bus.
// Each request is a 64 byte HID report answered by a 64 byte report.
type MCP2221 struct {
	mx           sync.Mutex
	index        int
	addr         uint16
	bound        bool
	request      []byte
	response     []byte
	responseWait time.Duration
}

type MCP2221Status struct {
	I2CDataBufferCounter   int    `yaml:"i2c_data_buffer_counter"`
	I2CSpeedDivider        int    `yaml:"i2c_speed_divider"`
	I2CTimeout             int    `yaml:"i2c_timeout"`
	CurrentAddress         string `yaml:"current_address"`
	LastWriteRequestedSize uint16 `yaml:"last_write_requested_size"`
	LastWriteSentSize      uint16 `yaml:"last_write_sent_size"`
	ReadPending            int    `yaml:"read_pending"`
}

// NewMCP2221 returns a bridge bound to the index-th enumerated MCP2221.
func NewMCP2221(index int) *MCP2221 {
	return &MCP2221{
		index:        index,
		request:      make([]byte, packetSize),
		response:     make([]byte, packetSize),
		responseWait: 50 * time.Millisecond,
	}
}

// Open checks that the bridge is attached and answers a status request.
func Open(index int) (*MCP2221, error) {
	d := NewMCP2221(index)
	if _, err := d.Status(context.Background()); err != nil {
		return nil, &magnetometer.OpenError{Path: fmt.Sprintf("mcp2221:%d", index), Err: err}
	}
	return d, nil
}

func (d *MCP2221) Bind(addr uint16) error {
	if addr > 0x7F {
		return &magnetometer.BindError{Addr: addr, Err: errors.New("mcp2221 supports 7-bit addresses only")}
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.addr = addr
	d.bound = true
	return nil
}

// Transfer maps [write], [read] and [write, read] onto the bridge commands.
// A write followed by a read uses write-without-STOP and a repeated start
// read so the bridge keeps the bus between them.
func (d *MCP2221) Transfer(ctx context.Context, msgs []magnetometer.Message) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.validate(msgs); err != nil {
		return magnetometer.NewTransferError(msgs, err)
	}
	err := d.transfer(ctx, msgs)
	if err != nil {
		if _, rerr := d.releaseBus(ctx); rerr != nil {
			slog.WarnContext(ctx, "could not release mcp2221 i2c engine", "error", rerr)
		}
		return magnetometer.NewTransferError(msgs, err)
	}
	return nil
}

func (d *MCP2221) validate(msgs []magnetometer.Message) error {
	if !d.bound {
		return magnetometer.ErrNotBound
	}
	if err := magnetometer.ValidateMessages(msgs); err != nil {
		return err
	}
	for _, msg := range msgs {
		if msg.Addr != d.addr {
			return magnetometer.ErrAddressMismatch
		}
		if len(msg.Buf) > maxTransferLength {
			return ErrTransferTooLong
		}
	}
	return nil
}

func (d *MCP2221) transfer(ctx context.Context, msgs []magnetometer.Message) error {
	switch {
	case len(msgs) == 1 && msgs[0].Read:
		return d.read(ctx, cmdReadData, msgs[0].Buf)
	case len(msgs) == 1:
		return d.write(ctx, cmdWriteData, msgs[0].Buf)
	case len(msgs) == 2 && !msgs[0].Read && msgs[1].Read:
		if err := d.write(ctx, cmdWriteDataNoStop, msgs[0].Buf); err != nil {
			return err
		}
		return d.read(ctx, cmdReadDataRepStart, msgs[1].Buf)
	default:
		return magnetometer.ErrUnsupportedTransaction
	}
}

func (d *MCP2221) write(ctx context.Context, cmd byte, buffer []byte) error {
	d.resetBuffers()
	encodeWrite(d.request, cmd, byte(d.addr), buffer)
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("write to %x failed: %w", d.addr, err)
	}
	// write could not be performed
	if d.response[1] == 0x01 {
		slog.DebugContext(ctx, "adapter busy")
		return magnetometer.ErrBusBusy
	}
	return nil
}

func (d *MCP2221) read(ctx context.Context, cmd byte, buffer []byte) error {
	d.resetBuffers()
	encodeRead(d.request, cmd, byte(d.addr), len(buffer))
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("bus read from %x failed: %w", d.addr, err)
	}
	if d.response[1] == 0x01 {
		return magnetometer.ErrBusBusy
	}
	d.resetBuffers()
	d.request[0] = cmdGetI2CData
	err = d.send(ctx)
	if err != nil {
		return fmt.Errorf("error getting read data from adapter: %w", err)
	}
	return decodeReadData(d.response, buffer)
}

func encodeWrite(request []byte, cmd byte, address byte, buffer []byte) {
	request[0] = cmd
	binary.LittleEndian.PutUint16(request[1:3], uint16(len(buffer)))
	request[3] = address << 1
	copy(request[4:], buffer)
}

func encodeRead(request []byte, cmd byte, address byte, n int) {
	request[0] = cmd
	binary.LittleEndian.PutUint16(request[1:3], uint16(n))
	request[3] = address<<1 + 1
}

func decodeReadData(response []byte, buffer []byte) error {
	if response[1] == respI2CDataError {
		return fmt.Errorf("error reading the I2C slave data from the I2C engine")
	}
	if response[3] == invalidDataLengthByte || int(response[3]) != len(buffer) {
		return fmt.Errorf("invalid data size byte; expected %d, got %d", len(buffer), response[3])
	}
	copy(buffer, response[4:])
	return nil
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		9: Lower byte (16-bit value) of the requested I2C transfer length
		10: Higher byte (16-bit value) of the requested I2C transfer length
		11:	Lower byte (16-bit value) of the already transferred (through I2C) number of bytes
		12:	Higher byte (16-bit value) of the already transferred (through I2C) number of bytes
		13:	Internal I2C data buffer counter
		14: Current I2C communication speed divider value
		15: Current I2C timeout value
		16:	Lower byte (16-bit value) of the I2C address being used
		17:	Higher byte (16-bit value) of the I2C address being used
	*/
	status := &MCP2221Status{
		I2CDataBufferCounter: int(buffer[13]),
		I2CSpeedDivider:      int(buffer[14]),
		I2CTimeout:           int(buffer[15]),
		ReadPending:          int(buffer[25]),
		CurrentAddress:       hex.EncodeToString(buffer[16:18]),
	}
	status.LastWriteRequestedSize = binary.LittleEndian.Uint16(buffer[9:11])
	status.LastWriteSentSize = binary.LittleEndian.Uint16(buffer[11:13])
	return status
}

// ReleaseBus cancels the current transfer and frees the I2C engine.
func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.releaseBus(ctx)
}

func (d *MCP2221) releaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[2] = subCmdCancelTransfer
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

// Close is a no-op, the HID device is opened per request.
func (d *MCP2221) Close() error {
	return nil
}

// send writes the request report and reads the answer into d.response.
func (d *MCP2221) send(ctx context.Context) error {
	devs := hid.Enumerate(VendorID, ProductID)
	if len(devs) == 0 {
		return fmt.Errorf("MCP2221 device not found")
	}
	if d.index < 0 || d.index >= len(devs) {
		return fmt.Errorf("no device with id %d (%d attached)", d.index, len(devs))
	}
	dev, err := devs[d.index].Open()
	if err != nil {
		return fmt.Errorf("error opening device: %w", err)
	}
	defer func() {
		err := dev.Close()
		if err != nil {
			slog.DebugContext(ctx, "error closing adapter", "error", err)
		}
	}()
	verbose := mgctx.IsVerbose(ctx)
	if verbose {
		slog.DebugContext(ctx, "sending message to adapter", "request", "\n"+hex.Dump(d.request))
	}
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != packetSize {
		return fmt.Errorf("short write: %d", n)
	}
	time.Sleep(d.responseWait)
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != packetSize {
		return fmt.Errorf("short read: %d", n)
	}
	if verbose {
		slog.DebugContext(ctx, "read message from adapter", "response", "\n"+hex.Dump(d.response))
	}
	return nil
}

func (d *MCP2221) resetBuffers() {
	resetBuffer(d.request)
	resetBuffer(d.response)
}

func resetBuffer(buf []byte) {
	for i := range buf {
		buf[i] = 0x00
	}
}
