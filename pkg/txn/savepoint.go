package txn

import (
	"strconv"

	"github.com/cuemby/shardbridge/pkg/shard"
)

// Savepoint is a named checkpoint within a transaction: the plans attached
// under it, the shards any of those plans touch, and its outcome flags.
// Savepoints are indexed globally on the owning top transaction's list and
// named VH_IO_XACT_SP_<index>, stable across process restarts for the same
// index since the name is derived only from the index.
type Savepoint struct {
	Index      int
	Name       string
	Shards     map[shard.ID]*shard.ShardAccess
	Plans      []*pendingPlan
	Flushed    bool
	Committed  bool
	RolledBack bool
}

func newSavepointAt(idx int) *Savepoint {
	return &Savepoint{
		Index:  idx,
		Name:   savepointName(idx),
		Shards: make(map[shard.ID]*shard.ShardAccess),
	}
}

func savepointName(idx int) string {
	return "VH_IO_XACT_SP_" + strconv.Itoa(idx)
}

func (sp *Savepoint) attach(p *pendingPlan) {
	sp.Plans = append(sp.Plans, p)
	for id, access := range p.shards {
		sp.Shards[id] = access
	}
}
