package backend

import (
	"context"
	"time"

	"github.com/cuemby/shardbridge/pkg/catalog"
	"github.com/cuemby/shardbridge/pkg/credential"
	"github.com/cuemby/shardbridge/pkg/heap"
	"github.com/cuemby/shardbridge/pkg/health"
	"github.com/cuemby/shardbridge/pkg/memscope"
	"github.com/cuemby/shardbridge/pkg/planner"
	"github.com/cuemby/shardbridge/pkg/query"
)

// Collector receives one row batch at a time during Execute. rtups is the
// number of result tables joined per row, so each call carries rtups tuple
// pointers per logical row (spec §4.J's uniform collector contract).
type Collector interface {
	Collect(state any, tuples []*heap.Tuple, ptrs []heap.HTP) error
}

// CollectorFunc adapts a plain function to Collector.
type CollectorFunc func(state any, tuples []*heap.Tuple, ptrs []heap.HTP) error

func (f CollectorFunc) Collect(state any, tuples []*heap.Tuple, ptrs []heap.HTP) error {
	return f(state, tuples, ptrs)
}

// CollectorInfo bundles everything Execute needs to hand rows back to its
// caller: the collector itself, opaque per-call state threaded through
// every Collect call, the buffer new tuples materialize into, and a row
// count estimate the driver may use to size its first allocation block.
type CollectorInfo struct {
	Collector    Collector
	State        any
	Buffers      *heap.BufferTable
	ResultBuffer heap.HeapBufferNo
	RowEstimate  int
}

// ExecResult reports the timing spec §4.J asks execution to surface: time
// spent in the backend round trip, time spent materializing tuples from the
// wire/native representation, and the row count produced.
type ExecResult struct {
	QueryDuration    time.Duration
	FormationDuration time.Duration
	Rows             int
}

// Connection is one live link to a shard, bound to a single backend driver.
// Every method that can block on I/O takes a context so the caller can
// cancel or time it out.
type Connection interface {
	// Connect establishes the link using cred against database, and is
	// always called on a connection CreateConnection just produced.
	Connect(ctx context.Context, cred credential.Value, database string) error
	Disconnect(ctx context.Context) error
	Reset(ctx context.Context) error
	Ping(ctx context.Context) health.Result

	BeginTransaction(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Savepoint(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error

	// Execute runs one planner.Binding's SQL text against its params,
	// allocating result tuples in info.ResultBuffer of info.Buffers, and
	// invoking info.Collector once per row batch.
	Execute(ctx context.Context, binding *planner.Binding, proj *planner.Projection, work, result *memscope.Scope, info CollectorInfo) (ExecResult, error)

	Close() error
}

// TwoPhaseCommitter is implemented by connections whose backend can
// participate in two-phase commit. The transaction manager type-asserts for
// it and falls back to single-phase commit when absent.
type TwoPhaseCommitter interface {
	TwoPhaseCommit(ctx context.Context) error
	TwoPhaseRollback(ctx context.Context) error
}

// SchemaProvider is implemented by connections that can report the tables
// and columns already defined on their backend, letting a beacon populate a
// Registry/TableCatalog from a live shard instead of static configuration.
type SchemaProvider interface {
	SchemaGet(ctx context.Context, registry *catalog.Registry) error
}

// Driver names a backend family and manufactures bare (unconnected)
// connections for it. Registering a Driver with an Engine makes its name
// available to ShardAccess.Shard.Driver.
type Driver interface {
	Name() string
	CreateConnection() (Connection, error)

	// Command renders node into backend-native SQL text. The first
	// paramOffset entries of paramValues are taken as already bound, so
	// node's placeholders are numbered on from there; the values node
	// itself binds are not handed back to the caller. Most callers go through pkg/planner instead, which
	// already drives pkg/query's formatter directly; Command exists for
	// the embedding API's execute_raw path and for backends whose dialect
	// pkg/query's generic formatter cannot express.
	Command(node *query.Node, paramOffset int, paramValues []any) (sqlText string, err error)
}
