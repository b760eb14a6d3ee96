package hmc5883l

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/magnetometer"
)

func staticField(sample AxisSample) SampleBehaviorFunc {
	return func(ctx context.Context) (AxisSample, error) { return sample, nil }
}

func TestSimulator_Configure(t *testing.T) {
	sim := NewSimulator(staticField(AxisSample{}))
	s := New(sim, WithSettleDelay(0))
	require.NoError(t, s.Configure(context.Background()))
	assert.Equal(t, GainCode5, sim.Register(RegConfigB))
	assert.Equal(t, byte(ModeContinuous), sim.Register(RegMode))
	assert.Equal(t, 2, sim.Transactions())
}

func TestSimulator_ReadAxes(t *testing.T) {
	expected := AxisSample{X: -123, Y: 4567, Z: -32768}
	sim := NewSimulator(staticField(expected))
	s := New(sim, WithSettleDelay(0))
	ctx := context.Background()
	require.NoError(t, s.Configure(ctx))

	sample, err := s.ReadAxes(ctx)
	require.NoError(t, err)
	assert.Equal(t, expected, sample)

	// repeated reads while sampling
	sample, err = s.ReadAxes(ctx)
	require.NoError(t, err)
	assert.Equal(t, expected, sample)
}

func TestSimulator_ReadBeforeConfigure(t *testing.T) {
	sim := NewSimulator(staticField(AxisSample{X: 1, Y: 2, Z: 3}))
	s := New(sim)
	sample, err := s.ReadAxes(context.Background())
	require.NoError(t, err)
	// stale registers, not an error
	assert.Equal(t, AxisSample{}, sample)
}

func TestSimulator_StatusAndID(t *testing.T) {
	sim := NewSimulator(staticField(AxisSample{}))
	s := New(sim, WithSettleDelay(0))
	ctx := context.Background()

	require.NoError(t, s.VerifyID(ctx))
	st, err := s.ReadStatus(ctx)
	require.NoError(t, err)
	assert.False(t, st.Ready())

	require.NoError(t, s.Configure(ctx))
	require.NoError(t, s.WaitReady(ctx, time.Millisecond))
}

func TestSimulator_BehaviorError(t *testing.T) {
	failure := errors.New("sensor malfunction")
	sim := NewSimulator(func(ctx context.Context) (AxisSample, error) { return AxisSample{}, failure })
	s := New(sim, WithSettleDelay(0))
	ctx := context.Background()
	require.NoError(t, s.Configure(ctx))

	_, err := s.ReadAxes(ctx)
	var te *magnetometer.TransferError
	require.True(t, errors.As(err, &te))
	assert.ErrorIs(t, err, failure)
}

func TestSimulator_Bind(t *testing.T) {
	sim := NewSimulator(staticField(AxisSample{}))
	var be *magnetometer.BindError
	require.True(t, errors.As(sim.Bind(0x42), &be))
	require.NoError(t, sim.Bind(DefaultAddress))

	s := New(sim, WithAddress(0x42))
	_, err := s.ReadAxes(context.Background())
	assert.ErrorIs(t, err, magnetometer.ErrAddressMismatch)
}

func TestSimulator_Closed(t *testing.T) {
	sim := NewSimulator(staticField(AxisSample{}))
	require.NoError(t, sim.Close())
	err := New(sim).SetContinuousMode(context.Background())
	var te *magnetometer.TransferError
	assert.True(t, errors.As(err, &te))
}

func TestSimulator_IdentificationPointer(t *testing.T) {
	sim := NewSimulator(staticField(AxisSample{}))
	s := New(sim, WithSettleDelay(0))
	ctx := context.Background()

	buf, err := s.readBlock(ctx, 0x0A, 3)
	require.NoError(t, err)
	assert.Equal(t, "H43", string(buf))

	// the pointer wraps after register 12
	buf, err = s.readBlock(ctx, 0x0A, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{'H', '4', '3', 0x10}, buf)

	// nothing lives at the 0x10 map entry on a real part
	assert.Equal(t, byte(0), sim.Register(RegIDA))
	id, err := s.ReadID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "H43", string(id[:]))
}
