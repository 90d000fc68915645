package shard

import (
	"fmt"

	"github.com/cuemby/shardbridge/pkg/catalog"
	"github.com/cuemby/shardbridge/pkg/heap"
	"github.com/cuemby/shardbridge/pkg/metrics"
)

// SimpleBeacon always resolves to the one shard it was built with. It is
// the routing equivalent of cuemby-warren's scheduler handing every
// container in a non-global service to whichever single node it placed
// them on: there is exactly one destination, so the beacon never needs to
// weigh candidates.
type SimpleBeacon struct {
	shard     *Shard
	connected bool
}

// NewSimpleBeacon builds a beacon fixed to shard.
func NewSimpleBeacon(shard *Shard) *SimpleBeacon {
	return &SimpleBeacon{shard: shard}
}

func (b *SimpleBeacon) ShardForTuple(_ heap.HTP, _ bool) (*Shard, error) {
	if b.shard == nil {
		return nil, ErrNoShardsConfigured
	}
	return b.shard, nil
}

func (b *SimpleBeacon) ShardsForTuples(ptrs []heap.HTP, _ bool, _ func(heap.HTP) string) (map[ID][]heap.HTP, error) {
	if b.shard == nil {
		return nil, ErrNoShardsConfigured
	}
	if len(ptrs) == 0 {
		return map[ID][]heap.HTP{}, nil
	}
	return map[ID][]heap.HTP{b.shard.ID: ptrs}, nil
}

func (b *SimpleBeacon) ShardForTable(td *catalog.TupleDef) (*Shard, error) {
	if b.shard == nil {
		metrics.ShardLookups.WithLabelValues(td.Name, "unconfigured").Inc()
		return nil, ErrNoShardsConfigured
	}
	metrics.ShardLookups.WithLabelValues(td.Name, "ok").Inc()
	return b.shard, nil
}

func (b *SimpleBeacon) Connect() error {
	if b.shard == nil {
		return ErrNoShardsConfigured
	}
	b.connected = true
	return nil
}

func (b *SimpleBeacon) Disconnect() error {
	if !b.connected {
		return ErrConnectOutOfOrder
	}
	b.connected = false
	return nil
}

func (b *SimpleBeacon) Finalize() error {
	b.connected = false
	b.shard = nil
	return nil
}

func (b *SimpleBeacon) LoadSchema(_ *catalog.Registry) error {
	return ErrSchemaLoadUnsupported
}

func (b *SimpleBeacon) Shards() []*Shard {
	if b.shard == nil {
		return nil
	}
	return []*Shard{b.shard}
}

// String aids error messages and logging call sites.
func (b *SimpleBeacon) String() string {
	if b.shard == nil {
		return "SimpleBeacon(unconfigured)"
	}
	return fmt.Sprintf("SimpleBeacon(%s)", b.shard.ID)
}
