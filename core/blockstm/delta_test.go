package blockstm

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestIntDeltaApplyPositive(t *testing.T) {
	d := NewIntDelta(10)

	out, err := d.Apply(uint256.NewInt(5))
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(15), out)
}

func TestIntDeltaApplyNegative(t *testing.T) {
	d := NewIntDelta(-3)

	out, err := d.Apply(uint256.NewInt(10))
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(7), out)
}

func TestIntDeltaApplyToNilBase(t *testing.T) {
	d := NewIntDelta(4)

	out, err := d.Apply(nil)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(4), out)
}

func TestIntDeltaApplyUnderflow(t *testing.T) {
	d := NewIntDelta(-10)

	_, err := d.Apply(uint256.NewInt(3))
	require.ErrorIs(t, err, ErrDeltaApplicationFailure)
}

func TestIntDeltaApplyWrongBaseType(t *testing.T) {
	d := NewIntDelta(1)

	_, err := d.Apply(int64(5))
	require.Error(t, err)
}

func TestIntDeltaCombine(t *testing.T) {
	a := NewIntDelta(5)
	b := NewIntDelta(-2)

	combined, err := a.Combine(b)
	require.NoError(t, err)

	out, err := combined.Apply(uint256.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(103), out)
}

func TestIntDeltaCombineOppositeSignsCancel(t *testing.T) {
	a := NewIntDelta(-5)
	b := NewIntDelta(5)

	combined, err := a.Combine(b)
	require.NoError(t, err)

	out, err := combined.Apply(uint256.NewInt(20))
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(20), out)
}

func TestIntDeltaEqual(t *testing.T) {
	a := NewIntDelta(7)
	b := NewIntDelta(7)
	c := NewIntDelta(-7)

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}

func TestIntDeltaApplyOverflow(t *testing.T) {
	max := new(uint256.Int).Not(uint256.NewInt(0))

	d := IntDelta{Negative: false, Magnitude: *uint256.NewInt(1)}

	_, err := d.Apply(max)
	require.ErrorIs(t, err, ErrDeltaApplicationFailure)
}
