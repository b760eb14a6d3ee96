package hmc5883l

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mklimuk/magnetometer"
	"github.com/mklimuk/magnetometer/mgctx"
)

// DefaultSettleDelay covers one conversion period at the slowest continuous output rate.
const DefaultSettleDelay = 6 * time.Millisecond

// DefaultPollInterval is used by WaitReady when no positive interval is given.
const DefaultPollInterval = time.Millisecond

var ErrUnexpectedID = errors.New("hmc5883l: unexpected identification bytes")

// HMC5883L represents a Honeywell HMC5883L 3-axis digital compass.
// See: https://cdn-shop.adafruit.com/datasheets/HMC5883L_3-Axis_Digital_Compass_IC.pdf
//
// Typical usage:
//
//	s := New(bus, WithAddress(0x1e))
//	err := s.Configure(ctx)
//	sample, err := s.ReadAxes(ctx)
//
// Configure must complete before the first ReadAxes; reading earlier may
// return stale or zero data rather than an error.
type HMC5883L struct {
	transport magnetometer.Transactor
	address   uint16
	settle    time.Duration
}

type Config struct {
	Address     uint16
	SettleDelay time.Duration
}

type ConfigOption func(*Config)

func WithAddress(address uint16) ConfigOption {
	return func(c *Config) {
		c.Address = address
	}
}

func WithSettleDelay(delay time.Duration) ConfigOption {
	return func(c *Config) {
		c.SettleDelay = delay
	}
}

func New(trans magnetometer.Transactor, opts ...ConfigOption) *HMC5883L {
	config := &Config{
		Address:     DefaultAddress,
		SettleDelay: DefaultSettleDelay,
	}
	for _, opt := range opts {
		opt(config)
	}
	return &HMC5883L{transport: trans, address: config.Address, settle: config.SettleDelay}
}

func (s *HMC5883L) Address() uint16 {
	return s.address
}

// WriteRegister writes payload starting at reg in a single one-message transaction.
// Transport errors are returned unchanged.
func (s *HMC5883L) WriteRegister(ctx context.Context, reg byte, payload []byte) error {
	buf := make([]byte, 0, len(payload)+1)
	buf = append(buf, reg)
	buf = append(buf, payload...)
	return s.transport.Transfer(ctx, []magnetometer.Message{magnetometer.WriteMessage(s.address, buf)})
}

// SetScale writes the fixed gain setting to ConfigurationRegisterB.
func (s *HMC5883L) SetScale(ctx context.Context) error {
	err := s.WriteRegister(ctx, RegConfigB, []byte{GainCode5})
	if err != nil {
		return fmt.Errorf("hmc5883l: could not set scale: %w", err)
	}
	return nil
}

func (s *HMC5883L) SetMode(ctx context.Context, mode Mode) error {
	err := s.WriteRegister(ctx, RegMode, []byte{byte(mode)})
	if err != nil {
		return fmt.Errorf("hmc5883l: could not set %s mode: %w", mode, err)
	}
	return nil
}

func (s *HMC5883L) SetContinuousMode(ctx context.Context) error {
	return s.SetMode(ctx, ModeContinuous)
}

// Configure writes the gain and continuous mode, then waits for the first conversion.
func (s *HMC5883L) Configure(ctx context.Context) error {
	if err := s.SetScale(ctx); err != nil {
		return err
	}
	if err := s.SetContinuousMode(ctx); err != nil {
		return err
	}
	timer := time.NewTimer(s.settle)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readBlock sets the register pointer and reads n bytes in one transaction.
// The pointer write and the read must not be split, otherwise other bus
// traffic may move the pointer in between.
func (s *HMC5883L) readBlock(ctx context.Context, reg byte, n int) ([]byte, error) {
	msgs := []magnetometer.Message{
		magnetometer.WriteMessage(s.address, []byte{reg}),
		magnetometer.ReadMessage(s.address, n),
	}
	err := s.transport.Transfer(ctx, msgs)
	if err != nil {
		return nil, err
	}
	return msgs[1].Buf, nil
}

// ReadAxes fetches and decodes the X, Z and Y data registers.
func (s *HMC5883L) ReadAxes(ctx context.Context) (AxisSample, error) {
	buf, err := s.readBlock(ctx, RegXMSB, dataLen)
	if err != nil {
		return AxisSample{}, fmt.Errorf("hmc5883l: could not read axis data: %w", err)
	}
	var raw [dataLen]byte
	copy(raw[:], buf)
	sample := Decode(raw)
	slog.DebugContext(ctx, "axis data", "raw", fmt.Sprintf("% x", raw), "sample", sample, "driver", mgctx.Driver(ctx))
	return sample, nil
}

// ReadID returns the three identification bytes ("H43" on a genuine part).
func (s *HMC5883L) ReadID(ctx context.Context) ([idLen]byte, error) {
	var id [idLen]byte
	buf, err := s.readBlock(ctx, RegIdentification, idLen)
	if err != nil {
		return id, fmt.Errorf("hmc5883l: could not read identification: %w", err)
	}
	copy(id[:], buf)
	return id, nil
}

// VerifyID reads the identification registers and fails if they do not spell "H43".
func (s *HMC5883L) VerifyID(ctx context.Context) error {
	id, err := s.ReadID(ctx)
	if err != nil {
		return err
	}
	if string(id[:]) != "H43" {
		return fmt.Errorf("%w: % x", ErrUnexpectedID, id)
	}
	return nil
}

// Status is the content of the status register.
type Status byte

func (st Status) Ready() bool {
	return st&statusRDY != 0
}

// Locked reports that some but not all data registers have been read since the last update.
func (st Status) Locked() bool {
	return st&statusLOCK != 0
}

func (s *HMC5883L) ReadStatus(ctx context.Context) (Status, error) {
	buf, err := s.readBlock(ctx, RegStatus, 1)
	if err != nil {
		return 0, fmt.Errorf("hmc5883l: could not read status: %w", err)
	}
	return Status(buf[0]), nil
}

// WaitReady polls the status register until the RDY bit is set or ctx is done.
// A non-positive poll falls back to DefaultPollInterval.
func (s *HMC5883L) WaitReady(ctx context.Context, poll time.Duration) error {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		st, err := s.ReadStatus(ctx)
		if err != nil {
			return err
		}
		if st.Ready() {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("hmc5883l: data not ready: %w", ctx.Err())
		}
	}
}
