package shard

import (
	"testing"

	"github.com/cuemby/shardbridge/pkg/catalog"
	"github.com/cuemby/shardbridge/pkg/heap"
	"github.com/stretchr/testify/require"
)

func TestSimpleBeaconResolvesFixedShard(t *testing.T) {
	s := &Shard{ID: NewID(), Driver: "griddb", Address: "10.0.0.1:10001"}
	b := NewSimpleBeacon(s)
	require.NoError(t, b.Connect())

	ptr := heap.PackHTP(1, 2, 3)
	got, err := b.ShardForTuple(ptr, false)
	require.NoError(t, err)
	require.Same(t, s, got)

	got, err = b.ShardForTable(catalog.NewTupleDef("accounts", false))
	require.NoError(t, err)
	require.Same(t, s, got)
}

func TestSimpleBeaconShardsForTuplesGroupsUnderOneShard(t *testing.T) {
	s := &Shard{ID: NewID(), Driver: "griddb"}
	b := NewSimpleBeacon(s)

	ptrs := []heap.HTP{heap.PackHTP(1, 0, 0), heap.PackHTP(1, 0, 1)}
	groups, err := b.ShardsForTuples(ptrs, true, nil)
	require.NoError(t, err)
	require.Equal(t, ptrs, groups[s.ID])
}

func TestSimpleBeaconUnconfiguredErrors(t *testing.T) {
	b := NewSimpleBeacon(nil)
	require.ErrorIs(t, b.Connect(), ErrNoShardsConfigured)
	_, err := b.ShardForTuple(heap.PackHTP(0, 0, 0), false)
	require.ErrorIs(t, err, ErrNoShardsConfigured)
}

func TestSimpleBeaconDisconnectBeforeConnectErrors(t *testing.T) {
	b := NewSimpleBeacon(&Shard{ID: NewID()})
	require.ErrorIs(t, b.Disconnect(), ErrConnectOutOfOrder)
}

func TestSimpleBeaconLoadSchemaUnsupported(t *testing.T) {
	b := NewSimpleBeacon(&Shard{ID: NewID()})
	require.ErrorIs(t, b.LoadSchema(catalog.NewRegistry()), ErrSchemaLoadUnsupported)
}

func TestSimpleBeaconFinalizeClearsShard(t *testing.T) {
	b := NewSimpleBeacon(&Shard{ID: NewID()})
	require.NoError(t, b.Connect())
	require.NoError(t, b.Finalize())
	_, err := b.ShardForTuple(heap.PackHTP(0, 0, 0), false)
	require.ErrorIs(t, err, ErrNoShardsConfigured)
}
