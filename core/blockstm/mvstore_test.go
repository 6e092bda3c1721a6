package blockstm

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestMVStoreReadNotFound(t *testing.T) {
	mv := NewMVStore()

	res := mv.Read(Key("a"), 5)
	require.Equal(t, MVReadResultNone, res.Status())
}

func TestMVStoreReadLatestLowerWrite(t *testing.T) {
	mv := NewMVStore()
	mv.Write(Key("a"), Version{TxnIndex: 2, Incarnation: 0}, "v2")
	mv.Write(Key("a"), Version{TxnIndex: 5, Incarnation: 1}, "v5")

	res := mv.Read(Key("a"), 10)
	require.Equal(t, MVReadResultDone, res.Status())
	require.True(t, res.HasVersion())
	require.Equal(t, 5, res.DepIdx())
	require.Equal(t, 1, res.Incarnation())
	require.Equal(t, "v5", res.Value())
}

func TestMVStoreReadIgnoresHigherIndices(t *testing.T) {
	mv := NewMVStore()
	mv.Write(Key("a"), Version{TxnIndex: 2, Incarnation: 0}, "v2")
	mv.Write(Key("a"), Version{TxnIndex: 8, Incarnation: 0}, "v8")

	res := mv.Read(Key("a"), 5)
	require.Equal(t, MVReadResultDone, res.Status())
	require.Equal(t, 2, res.DepIdx())
	require.Equal(t, "v2", res.Value())
}

func TestMVStoreReadEstimateIsDependency(t *testing.T) {
	mv := NewMVStore()
	mv.Write(Key("a"), Version{TxnIndex: 2, Incarnation: 0}, "v2")
	mv.MarkEstimate(Key("a"), 2)

	res := mv.Read(Key("a"), 5)
	require.Equal(t, MVReadResultDependency, res.Status())
	require.Equal(t, 2, res.DepIdx())
}

func TestMVStoreReadFoldsDeltasOntoWrite(t *testing.T) {
	mv := NewMVStore()
	mv.Write(Key("bal"), Version{TxnIndex: 0, Incarnation: 0}, uint256.NewInt(100))
	mv.AddDelta(Key("bal"), 1, NewIntDelta(10))
	mv.AddDelta(Key("bal"), 2, NewIntDelta(-30))

	res := mv.Read(Key("bal"), 5)
	require.Equal(t, MVReadResultDone, res.Status())
	require.False(t, res.HasVersion())
	require.Equal(t, uint256.NewInt(80), res.Value())
}

func TestMVStoreReadUnresolvedWhenOnlyDeltas(t *testing.T) {
	mv := NewMVStore()
	mv.AddDelta(Key("bal"), 1, NewIntDelta(10))
	mv.AddDelta(Key("bal"), 2, NewIntDelta(5))

	res := mv.Read(Key("bal"), 5)
	require.Equal(t, MVReadResultUnresolved, res.Status())
	require.Equal(t, NewIntDelta(15), res.Delta())
}

func TestMVStoreReadDeltaFailureOnUnderflow(t *testing.T) {
	mv := NewMVStore()
	mv.Write(Key("bal"), Version{TxnIndex: 0, Incarnation: 0}, uint256.NewInt(5))
	mv.AddDelta(Key("bal"), 1, NewIntDelta(-100))

	res := mv.Read(Key("bal"), 5)
	require.Equal(t, MVReadResultDeltaFailure, res.Status())
}

func TestMVStoreDeleteRemovesCell(t *testing.T) {
	mv := NewMVStore()
	mv.Write(Key("a"), Version{TxnIndex: 2, Incarnation: 0}, "v2")
	mv.Delete(Key("a"), 2)

	res := mv.Read(Key("a"), 5)
	require.Equal(t, MVReadResultNone, res.Status())
}
