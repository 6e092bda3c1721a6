package blockstm

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Delta is a commutative update to a value that can be folded without
// reading the value it will eventually be applied to. MVDS stores deltas
// directly so that a chain of them can be combined, and only applied to a
// concrete value (a prior write, or the base state) lazily, on read.
type Delta interface {
	// Apply folds the delta onto base, which is either a value read from a
	// preceding write/base state, or nil if none exists yet.
	Apply(base any) (any, error)
	// Combine folds earlier (applied at a lower txn index) together with
	// this delta into one delta equivalent to applying both in sequence.
	Combine(earlier Delta) (Delta, error)
	// Equal reports whether two deltas are identical for validation
	// purposes (§4.4: "r was Unresolved(d') and d == d'").
	Equal(other Delta) bool
}

// IntDelta is an overflow-checked signed add over a 256-bit unsigned magnitude,
// the shape of delta this package's examples and tests use (modeled on
// balance-style counters, the common commutative update in blockchain
// state). It overflows (and so fails, per §4.1) only when the running
// magnitude would leave the uint256 range or an unsigned subtraction would
// go negative.
type IntDelta struct {
	Negative  bool
	Magnitude uint256.Int
}

// NewIntDelta builds an IntDelta from a plain signed integer.
func NewIntDelta(v int64) IntDelta {
	if v < 0 {
		return IntDelta{Negative: true, Magnitude: *uint256.NewInt(uint64(-v))}
	}

	return IntDelta{Negative: false, Magnitude: *uint256.NewInt(uint64(v))}
}

func (d IntDelta) Apply(base any) (any, error) {
	b, ok := asUint256(base)
	if !ok {
		return nil, fmt.Errorf("blockstm: IntDelta.Apply: base value %v (%T) is not a *uint256.Int", base, base)
	}

	result := new(uint256.Int).Set(b)

	if d.Negative {
		if result.Lt(&d.Magnitude) {
			return nil, ErrDeltaApplicationFailure
		}

		result.Sub(result, &d.Magnitude)
	} else if _, overflow := result.AddOverflow(result, &d.Magnitude); overflow {
		return nil, ErrDeltaApplicationFailure
	}

	return result, nil
}

func (d IntDelta) Combine(earlier Delta) (Delta, error) {
	e, ok := earlier.(IntDelta)
	if !ok {
		return nil, fmt.Errorf("blockstm: IntDelta.Combine: incompatible delta type %T", earlier)
	}

	if e.Negative == d.Negative {
		sum := new(uint256.Int)
		if _, overflow := sum.AddOverflow(&e.Magnitude, &d.Magnitude); overflow {
			return nil, ErrDeltaApplicationFailure
		}

		return IntDelta{Negative: d.Negative, Magnitude: *sum}, nil
	}

	if e.Magnitude.Cmp(&d.Magnitude) >= 0 {
		return IntDelta{Negative: e.Negative, Magnitude: *new(uint256.Int).Sub(&e.Magnitude, &d.Magnitude)}, nil
	}

	return IntDelta{Negative: d.Negative, Magnitude: *new(uint256.Int).Sub(&d.Magnitude, &e.Magnitude)}, nil
}

func (d IntDelta) Equal(other Delta) bool {
	o, ok := other.(IntDelta)
	return ok && o.Negative == d.Negative && o.Magnitude.Eq(&d.Magnitude)
}

func asUint256(v any) (*uint256.Int, bool) {
	if v == nil {
		return uint256.NewInt(0), true
	}

	switch t := v.(type) {
	case *uint256.Int:
		return t, true
	case uint256.Int:
		return &t, true
	}

	return nil, false
}
