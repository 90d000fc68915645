package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/shardbridge/pkg/backend"
	"github.com/cuemby/shardbridge/pkg/catalog"
	"github.com/cuemby/shardbridge/pkg/config"
	"github.com/cuemby/shardbridge/pkg/credential"
	"github.com/cuemby/shardbridge/pkg/errqueue"
	"github.com/cuemby/shardbridge/pkg/executor"
	"github.com/cuemby/shardbridge/pkg/heap"
	"github.com/cuemby/shardbridge/pkg/log"
	"github.com/cuemby/shardbridge/pkg/memscope"
	"github.com/cuemby/shardbridge/pkg/metrics"
	"github.com/cuemby/shardbridge/pkg/planner"
	"github.com/cuemby/shardbridge/pkg/query"
	"github.com/cuemby/shardbridge/pkg/shard"
	"github.com/cuemby/shardbridge/pkg/txn"
)

// Engine is the started embedding API context: every catalog, routing, and
// connection collaborator a host process needs to run statements and
// transactions against the shards it configures.
type Engine struct {
	cfg *config.Config

	Types  *catalog.Registry
	Tables *catalog.TableCatalog
	Conns  *txn.ConnectionCatalog

	buffers *heap.BufferTable
	exec    *executor.Executor
	errs    *errqueue.Queue
	beacons planner.Beacons

	root *memscope.Scope
}

// Start builds and wires an Engine from cfg: the type registry, table
// catalog, connection catalog (sized by cfg.ConnectionSlotsPerShardAccess),
// heap buffer table, executor, and a root memory scope every buffer this
// engine opens outside a transaction is tracked against. This is the
// embedding API's start() (spec §6); current_context() is CurrentContext,
// shutdown() is Shutdown.
func Start(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.Defaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	errs := errqueue.New()
	errs.Subscribe(errqueue.Warning, func(e *errqueue.Error) {
		log.Logger.Warn().Str("component", "engine").Msg(e.String())
	})

	e := &Engine{
		cfg:     cfg,
		Types:   catalog.NewRegistry(),
		Tables:  catalog.NewTableCatalog(),
		Conns:   txn.NewConnectionCatalog(cfg.ConnectionSlotsPerShardAccess),
		buffers: heap.NewBufferTable(),
		errs:    errs,
		beacons: make(planner.Beacons),
		root:    memscope.New("engine"),
	}
	e.exec = executor.New(e.buffers)
	log.Logger.Info().Str("dataDir", cfg.DataDir).Int("slots", cfg.ConnectionSlotsPerShardAccess).Msg("engine started")
	return e, nil
}

// Shutdown tears down every buffer and tracked resource the engine's root
// scope owns. Transactions begun against this engine's ConnectionCatalog
// must be committed or rolled back first; Shutdown does not reach into
// in-flight transactions.
func (e *Engine) Shutdown() error {
	err := e.root.Destroy()
	log.Logger.Info().Msg("engine shut down")
	return err
}

// CurrentContext returns the engine's root memory scope, the context any
// buffer opened outside a transaction (e.g. for a one-shot Select) is
// tracked against.
func (e *Engine) CurrentContext() *memscope.Scope {
	return e.root
}

// Errors exposes the engine's error queue, so a host can subscribe its own
// sink in addition to the log mirror Start installs.
func (e *Engine) Errors() *errqueue.Queue {
	return e.errs
}

// RegisterBackend makes d's connections available to any shard naming its
// driver name. Spec §6's register_backend; must happen before any shard
// using that driver is registered.
func (e *Engine) RegisterBackend(d backend.Driver) {
	e.Conns.RegisterDriver(d)
}

// RegisterType publishes a scalar/composite type to the type registry.
// Spec §6's register_type.
func (e *Engine) RegisterType(t *catalog.Type) (*catalog.Type, error) {
	return e.Types.Register(t)
}

// AddTable publishes td and binds its routing to beacon. Spec §6's
// add_table, extended with the beacon a real add_table call would need to
// have already associated with the table out of band.
func (e *Engine) AddTable(td *catalog.TupleDef, beacon shard.Beacon) error {
	if err := e.Tables.AddTable(td); err != nil {
		return err
	}
	e.beacons[td.Name] = beacon
	return nil
}

// RegisterShard opens a connection slot pool for s under cred/database, the
// prerequisite for any statement or transaction touching it.
func (e *Engine) RegisterShard(s *shard.Shard, cred credential.Value, database string) error {
	return e.Conns.RegisterShard(s, cred, database)
}

// leaseSet acquires and, on release, returns every connection a one-shot
// (non-transactional) plan's steps need. A single statement almost always
// touches one shard, but a Select funnel can span several.
type leaseSet struct {
	catalog *txn.ConnectionCatalog
	leased  map[shard.ID]int
	conns   map[shard.ID]backend.Connection
}

func newLeaseSet(catalog *txn.ConnectionCatalog) *leaseSet {
	return &leaseSet{catalog: catalog, leased: make(map[shard.ID]int), conns: make(map[shard.ID]backend.Connection)}
}

func (l *leaseSet) Acquire(ctx context.Context, access *shard.ShardAccess) (backend.Connection, error) {
	if conn, ok := l.conns[access.Shard.ID]; ok {
		return conn, nil
	}
	conn, idx, err := l.catalog.Acquire(ctx, access)
	if err != nil {
		return nil, err
	}
	l.leased[access.Shard.ID] = idx
	l.conns[access.Shard.ID] = conn
	return conn, nil
}

func (l *leaseSet) release() {
	for id, idx := range l.leased {
		l.catalog.Release(id, idx)
	}
}

func (e *Engine) runOnce(ctx context.Context, plan *planner.Plan) (*executor.Result, error) {
	leases := newLeaseSet(e.Conns)
	defer leases.release()
	return e.exec.Run(ctx, plan, leases, e.root)
}

// Select plans and runs a read-only SELECT node against whichever shard(s)
// its FROM/JOIN tables resolve to. Spec §6's execute(node, opts) for the
// SELECT case.
func (e *Engine) Select(ctx context.Context, root *query.Node, opts planner.Opts) (*executor.Result, error) {
	plan, err := planner.PlanSelect(root, e.Tables, e.beacons, opts)
	if err != nil {
		return nil, err
	}
	return e.runOnce(ctx, plan)
}

// Insert plans and runs an INSERT of tuples into tableName outside any
// transaction. Spec §6's execute(node, opts) for the INSERT case, taking
// already-constructed tuples rather than a generic node tree — see
// pkg/planner's grounding notes on why INSERT/UPDATE/DELETE are tuple-
// driven instead of node-tree-driven in this codebase.
func (e *Engine) Insert(ctx context.Context, tableName string, tuples []*heap.Tuple, opts planner.Opts) (*executor.Result, error) {
	plan, err := planner.PlanInsert(tableName, tuples, e.Tables, e.beacons, opts)
	if err != nil {
		return nil, err
	}
	return e.runOnce(ctx, plan)
}

// Update plans and runs an UPDATE of tuples against tableName outside any
// transaction.
func (e *Engine) Update(ctx context.Context, tableName string, tuples []*heap.Tuple, explicitFields []*query.Node, returning []string, opts planner.Opts) (*executor.Result, error) {
	plan, err := planner.PlanUpdate(tableName, tuples, explicitFields, returning, e.Tables, e.beacons, opts)
	if err != nil {
		return nil, err
	}
	return e.runOnce(ctx, plan)
}

// Delete plans and runs a DELETE against tableName outside any
// transaction, either of specific tuples or by predicate.
func (e *Engine) Delete(ctx context.Context, tableName string, tuples []*heap.Tuple, where *query.Node, returning []string, opts planner.Opts) (*executor.Result, error) {
	plan, err := planner.PlanDelete(tableName, tuples, where, returning, e.Tables, e.beacons, opts)
	if err != nil {
		return nil, err
	}
	return e.runOnce(ctx, plan)
}

// ExecuteRaw runs sqlText with params directly against access, bypassing
// the planner's table/beacon resolution entirely. Spec §6's
// execute_raw(conn, sql, params).
func (e *Engine) ExecuteRaw(ctx context.Context, access *shard.ShardAccess, sqlText string, params []any) (*executor.Result, error) {
	plan := planner.PlanDDL(access, sqlText, params)
	return e.runOnce(ctx, plan)
}

// XactBegin starts a new top-level transaction against this engine's
// connection catalog. Spec §6's xact_begin(mode).
func (e *Engine) XactBegin(mode txn.Mode) *txn.Transaction {
	return txn.Begin(e.Conns, mode)
}

// XactSubmit attaches (or, in Immediate mode, immediately runs) plan under
// t's current savepoint. Spec §6's xact_submit(xact, node); see pkg/txn's
// grounding notes for why this takes an already-built *planner.Plan rather
// than a generic node.
func (e *Engine) XactSubmit(ctx context.Context, t *txn.Transaction, plan *planner.Plan, write bool) (*executor.Result, error) {
	return t.Submit(ctx, plan, write)
}

// XactSelect builds a SELECT plan and submits it as a read against t.
func (e *Engine) XactSelect(ctx context.Context, t *txn.Transaction, root *query.Node, opts planner.Opts) (*executor.Result, error) {
	plan, err := planner.PlanSelect(root, e.Tables, e.beacons, opts)
	if err != nil {
		return nil, err
	}
	return t.Submit(ctx, plan, false)
}

// XactInsert builds an INSERT plan and submits it as a write against t.
func (e *Engine) XactInsert(ctx context.Context, t *txn.Transaction, tableName string, tuples []*heap.Tuple, opts planner.Opts) (*executor.Result, error) {
	plan, err := planner.PlanInsert(tableName, tuples, e.Tables, e.beacons, opts)
	if err != nil {
		return nil, err
	}
	return t.Submit(ctx, plan, true)
}

// XactUpdate builds an UPDATE plan and submits it as a write against t.
func (e *Engine) XactUpdate(ctx context.Context, t *txn.Transaction, tableName string, tuples []*heap.Tuple, explicitFields []*query.Node, returning []string, opts planner.Opts) (*executor.Result, error) {
	plan, err := planner.PlanUpdate(tableName, tuples, explicitFields, returning, e.Tables, e.beacons, opts)
	if err != nil {
		return nil, err
	}
	return t.Submit(ctx, plan, true)
}

// XactDelete builds a DELETE plan and submits it as a write against t.
func (e *Engine) XactDelete(ctx context.Context, t *txn.Transaction, tableName string, tuples []*heap.Tuple, where *query.Node, returning []string, opts planner.Opts) (*executor.Result, error) {
	plan, err := planner.PlanDelete(tableName, tuples, where, returning, e.Tables, e.beacons, opts)
	if err != nil {
		return nil, err
	}
	return t.Submit(ctx, plan, true)
}

// XactCommit flushes any buffered writes and commits every shard t
// touched. Spec §6's xact_commit(xact).
func (e *Engine) XactCommit(ctx context.Context, t *txn.Transaction) (*txn.CommitResult, error) {
	start := time.Now()
	result, err := t.Commit(ctx)
	metrics.CommitDuration.Observe(time.Since(start).Seconds())
	metrics.SavepointsFlushed.Inc()

	outcome := "committed"
	if err != nil {
		outcome = "partial"
	}
	metrics.TransactionsCommitted.WithLabelValues(outcome).Inc()
	return result, err
}

// XactRollback rolls back every shard t touched. Spec §6's
// xact_rollback(xact).
func (e *Engine) XactRollback(ctx context.Context, t *txn.Transaction) error {
	return t.Rollback(ctx)
}

// XactCreateTuple allocates a fresh, all-null tuple of td's shape in a
// buffer scoped to t, for the caller to fill in and then pass to
// XactInsert/XactUpdate. Spec §6's xact_create_tuple(xact, tdv) -> htp;
// this returns the live Tuple rather than a bare HTP since every planner
// entry point in this codebase already takes *heap.Tuple.
func (e *Engine) XactCreateTuple(t *txn.Transaction, td *catalog.TupleDef) (*heap.Tuple, error) {
	bufNo, err := e.buffers.Open(t.Scope(), td, "xact")
	if err != nil {
		return nil, fmt.Errorf("engine: opening tuple buffer: %w", err)
	}
	return e.buffers.Allocate(bufNo, false)
}
