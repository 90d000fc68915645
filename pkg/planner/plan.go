package planner

import (
	"errors"

	"github.com/cuemby/shardbridge/pkg/catalog"
	"github.com/cuemby/shardbridge/pkg/heap"
	"github.com/cuemby/shardbridge/pkg/query"
	"github.com/cuemby/shardbridge/pkg/shard"
)

// ErrCrossBeaconUnsupported is returned when a query's tables resolve to
// more than one beacon, or to shards of more than one backend driver — the
// spec §4.I "hook left for a future join-above-funnel strategy".
var ErrCrossBeaconUnsupported = errors.New("planner: cross-beacon or cross-backend execution is not supported")

// TableResolver looks a table name up to its published TupleDef, the shape
// catalog.TableCatalog already satisfies.
type TableResolver interface {
	Table(name string) (*catalog.TupleDef, bool)
}

// Beacons maps a table name to the Beacon that routes its tuples, spec
// §4.H/§4.I's "map to shards via each table's beacon".
type Beacons map[string]shard.Beacon

// Opts carries per-plan knobs spec §4.I calls PlannerOpts: where result
// tuples materialize, an optional forced shard (bypassing beacon
// resolution, e.g. for a transaction already pinned to one shard), an
// already-open connection to reuse, tuples to refetch instead of
// re-selecting, and the SQL dialect to emit for.
type Opts struct {
	ResultBuffer   heap.HeapBufferNo
	ForcedShard    *shard.Shard
	Connection     any
	Refetch        []heap.HTP
	TargetBackend  string
	PlaceholderFmt query.PlaceholderStyle
}

// Plan is the spec §4.I ExecPlan: a root ExecStep tree plus, for
// transactional statements, on-commit/on-rollback trees the transaction
// manager invokes once the backend confirms the corresponding outcome.
type Plan struct {
	Root       *ExecStep
	OnCommit   *ExecStep
	OnRollback *ExecStep
	Projection *Projection
}

// resolveTable looks up name's TupleDef and Beacon together, the pairing
// every planning algorithm needs before it can pick an execution shape.
func resolveTable(tables TableResolver, beacons Beacons, name string) (*catalog.TupleDef, shard.Beacon, error) {
	td, ok := tables.Table(name)
	if !ok {
		return nil, nil, &UnknownTableError{Table: name}
	}
	b, ok := beacons[name]
	if !ok {
		return nil, nil, &NoBeaconError{Table: name}
	}
	return td, b, nil
}

// UnknownTableError names a table the catalog has no TupleDef for.
type UnknownTableError struct{ Table string }

func (e *UnknownTableError) Error() string {
	return "planner: unknown table " + e.Table
}

// NoBeaconError names a table with no registered Beacon.
type NoBeaconError struct{ Table string }

func (e *NoBeaconError) Error() string {
	return "planner: no beacon registered for table " + e.Table
}
