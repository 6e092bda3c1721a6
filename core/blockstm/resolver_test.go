package blockstm

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestDeltaTouchedKeysDeduplicates(t *testing.T) {
	table := NewTxnTable(3)
	table.Record(0, 0, nil, nil, []Key{Key("a"), Key("b")}, &counterOutput{}, ExecutionStat{})
	table.Record(1, 0, nil, nil, []Key{Key("b"), Key("c")}, &counterOutput{}, ExecutionStat{})

	keys := deltaTouchedKeys(table, 2)
	require.ElementsMatch(t, []Key{Key("a"), Key("b"), Key("c")}, keys)
}

func TestResolveDeltasFoldsAgainstBase(t *testing.T) {
	mv := NewMVStore()
	mv.AddDelta(Key("bal"), 0, NewIntDelta(5))
	mv.AddDelta(Key("bal"), 1, NewIntDelta(3))

	base := mapStateView{Key("bal"): uint256.NewInt(10)}

	out := resolveDeltas([]Key{Key("bal")}, mv, base, 2)
	require.Equal(t, uint256.NewInt(18), out[Key("bal")])
}

func TestResolveDeltasSkipsKeysNotTouched(t *testing.T) {
	mv := NewMVStore()
	base := mapStateView{}

	out := resolveDeltas([]Key{Key("untouched")}, mv, base, 3)
	require.NotContains(t, out, Key("untouched"))
}

func TestResolveDeltasPanicsOnUnresolvableChain(t *testing.T) {
	mv := NewMVStore()
	mv.AddDelta(Key("bal"), 0, NewIntDelta(-100))

	base := mapStateView{Key("bal"): uint256.NewInt(1)}

	require.Panics(t, func() {
		resolveDeltas([]Key{Key("bal")}, mv, base, 1)
	})
}
