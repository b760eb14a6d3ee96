package hmc5883l

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/magnetometer"
)

// MockTransactor is a mock implementation of magnetometer.Transactor using testify/mock.
// Read messages are filled from the []byte returned as the first value.
type MockTransactor struct {
	mock.Mock
}

func (m *MockTransactor) Transfer(ctx context.Context, msgs []magnetometer.Message) error {
	args := m.Called(ctx, msgs)
	if data, ok := args.Get(0).([]byte); ok {
		for _, msg := range msgs {
			if msg.Read {
				copy(msg.Buf, data)
			}
		}
	}
	return args.Error(1)
}

func isWrite(addr uint16, expected ...byte) interface{} {
	return mock.MatchedBy(func(msgs []magnetometer.Message) bool {
		return len(msgs) == 1 && !msgs[0].Read && msgs[0].Addr == addr && string(msgs[0].Buf) == string(expected)
	})
}

func isRegisterRead(addr uint16, reg byte, n int) interface{} {
	return mock.MatchedBy(func(msgs []magnetometer.Message) bool {
		return len(msgs) == 2 &&
			!msgs[0].Read && msgs[0].Addr == addr && string(msgs[0].Buf) == string([]byte{reg}) &&
			msgs[1].Read && msgs[1].Addr == addr && len(msgs[1].Buf) == n
	})
}

func TestHMC5883L_WriteRegister(t *testing.T) {
	bus := new(MockTransactor)
	s := New(bus)
	bus.On("Transfer", mock.Anything, isWrite(DefaultAddress, 0x02, 0x00)).Return(nil, nil).Once()

	err := s.WriteRegister(context.Background(), RegMode, []byte{0x00})
	assert.NoError(t, err)
	bus.AssertExpectations(t)
}

func TestHMC5883L_WriteRegisterPropagatesError(t *testing.T) {
	bus := new(MockTransactor)
	s := New(bus)
	terr := &magnetometer.TransferError{Addr: DefaultAddress, Msgs: 1, Err: syscall.ENXIO}
	bus.On("Transfer", mock.Anything, mock.Anything).Return(nil, terr).Once()

	err := s.WriteRegister(context.Background(), RegConfigA, []byte{0x70, 0x20})
	assert.Same(t, terr, err)
}

func TestHMC5883L_Configure(t *testing.T) {
	bus := new(MockTransactor)
	s := New(bus, WithAddress(0x1d), WithSettleDelay(20*time.Millisecond))
	scale := bus.On("Transfer", mock.Anything, isWrite(0x1d, RegConfigB, GainCode5)).Return(nil, nil).Once()
	bus.On("Transfer", mock.Anything, isWrite(0x1d, RegMode, byte(ModeContinuous))).Return(nil, nil).Once().NotBefore(scale)

	start := time.Now()
	err := s.Configure(context.Background())
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	bus.AssertExpectations(t)
}

func TestHMC5883L_ConfigureCancelled(t *testing.T) {
	bus := new(MockTransactor)
	s := New(bus, WithSettleDelay(time.Hour))
	bus.On("Transfer", mock.Anything, mock.Anything).Return(nil, nil).Twice()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := s.Configure(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHMC5883L_ConfigureStopsOnScaleError(t *testing.T) {
	bus := new(MockTransactor)
	s := New(bus)
	bus.On("Transfer", mock.Anything, isWrite(DefaultAddress, RegConfigB, GainCode5)).
		Return(nil, magnetometer.NewTransferError(nil, syscall.EREMOTEIO)).Once()

	err := s.Configure(context.Background())
	var te *magnetometer.TransferError
	require.True(t, errors.As(err, &te))
	assert.ErrorIs(t, err, syscall.EREMOTEIO)
	bus.AssertNumberOfCalls(t, "Transfer", 1)
}

func TestHMC5883L_SetMode(t *testing.T) {
	for _, mode := range []Mode{ModeContinuous, ModeSingleShot, ModeIdle} {
		t.Run(mode.String(), func(t *testing.T) {
			bus := new(MockTransactor)
			s := New(bus)
			bus.On("Transfer", mock.Anything, isWrite(DefaultAddress, RegMode, byte(mode))).Return(nil, nil).Once()
			assert.NoError(t, s.SetMode(context.Background(), mode))
			bus.AssertExpectations(t)
		})
	}
}

func TestHMC5883L_ReadAxes(t *testing.T) {
	bus := new(MockTransactor)
	s := New(bus)
	bus.On("Transfer", mock.Anything, isRegisterRead(DefaultAddress, RegXMSB, 6)).
		Return([]byte{0x00, 0x0A, 0xFF, 0xF6, 0x00, 0x14}, nil).Once()

	sample, err := s.ReadAxes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, AxisSample{X: 10, Y: 20, Z: -10}, sample)
	// one atomic transfer, never split
	bus.AssertNumberOfCalls(t, "Transfer", 1)

	msgs := bus.Calls[0].Arguments.Get(1).([]magnetometer.Message)
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte{RegXMSB}, msgs[0].Buf)
	assert.False(t, msgs[0].Read)
	assert.True(t, msgs[1].Read)
	assert.Len(t, msgs[1].Buf, 6)
}

func TestHMC5883L_ReadAxesTransferError(t *testing.T) {
	bus := new(MockTransactor)
	s := New(bus)
	// partial data in the buffer must not leak into the result
	bus.On("Transfer", mock.Anything, mock.Anything).
		Return([]byte{0x12, 0x34, 0x56}, magnetometer.NewTransferError(nil, syscall.ETIMEDOUT)).Once()

	sample, err := s.ReadAxes(context.Background())
	assert.Equal(t, AxisSample{}, sample)
	var te *magnetometer.TransferError
	require.True(t, errors.As(err, &te))
	assert.ErrorIs(t, err, syscall.ETIMEDOUT)
}

func TestHMC5883L_ReadID(t *testing.T) {
	bus := new(MockTransactor)
	s := New(bus)
	// identification lives at decimal 10, not 0x10
	bus.On("Transfer", mock.Anything, isRegisterRead(DefaultAddress, 0x0A, 3)).Return([]byte("H43"), nil).Once()

	id, err := s.ReadID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [3]byte{'H', '4', '3'}, id)
	bus.AssertExpectations(t)
}

func TestHMC5883L_VerifyID(t *testing.T) {
	bus := new(MockTransactor)
	s := New(bus)
	bus.On("Transfer", mock.Anything, isRegisterRead(DefaultAddress, RegIdentification, 3)).Return([]byte{0xFF, 0xFF, 0xFF}, nil).Once()

	err := s.VerifyID(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedID)
}

func TestHMC5883L_ReadStatus(t *testing.T) {
	tests := []struct {
		name   string
		given  byte
		ready  bool
		locked bool
	}{
		{"idle", 0x00, false, false},
		{"ready", 0x01, true, false},
		{"locked", 0x02, false, true},
		{"ready and locked", 0x03, true, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			bus := new(MockTransactor)
			s := New(bus)
			bus.On("Transfer", mock.Anything, isRegisterRead(DefaultAddress, RegStatus, 1)).Return([]byte{test.given}, nil).Once()
			st, err := s.ReadStatus(context.Background())
			require.NoError(t, err)
			assert.Equal(t, test.ready, st.Ready())
			assert.Equal(t, test.locked, st.Locked())
		})
	}
}

func TestHMC5883L_WaitReady(t *testing.T) {
	bus := new(MockTransactor)
	s := New(bus)
	bus.On("Transfer", mock.Anything, isRegisterRead(DefaultAddress, RegStatus, 1)).Return([]byte{0x00}, nil).Twice()
	bus.On("Transfer", mock.Anything, isRegisterRead(DefaultAddress, RegStatus, 1)).Return([]byte{0x01}, nil).Once()

	err := s.WaitReady(context.Background(), time.Millisecond)
	assert.NoError(t, err)
	bus.AssertNumberOfCalls(t, "Transfer", 3)
}

func TestHMC5883L_WaitReadyNonPositivePoll(t *testing.T) {
	bus := new(MockTransactor)
	s := New(bus)
	bus.On("Transfer", mock.Anything, isRegisterRead(DefaultAddress, RegStatus, 1)).Return([]byte{0x00}, nil).Once()
	bus.On("Transfer", mock.Anything, isRegisterRead(DefaultAddress, RegStatus, 1)).Return([]byte{0x01}, nil).Once()

	assert.NotPanics(t, func() {
		assert.NoError(t, s.WaitReady(context.Background(), 0))
	})
	bus.On("Transfer", mock.Anything, mock.Anything).Return([]byte{0x01}, nil).Once()
	assert.NotPanics(t, func() {
		assert.NoError(t, s.WaitReady(context.Background(), -time.Second))
	})
}

func TestHMC5883L_WaitReadyTimeout(t *testing.T) {
	bus := new(MockTransactor)
	s := New(bus)
	bus.On("Transfer", mock.Anything, mock.Anything).Return([]byte{0x00}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Millisecond)
	defer cancel()
	err := s.WaitReady(ctx, time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
