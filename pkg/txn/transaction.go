package txn

import (
	"context"
	"fmt"
	"sort"

	"github.com/cuemby/shardbridge/pkg/backend"
	"github.com/cuemby/shardbridge/pkg/executor"
	"github.com/cuemby/shardbridge/pkg/heap"
	"github.com/cuemby/shardbridge/pkg/log"
	"github.com/cuemby/shardbridge/pkg/memscope"
	"github.com/cuemby/shardbridge/pkg/planner"
	"github.com/cuemby/shardbridge/pkg/shard"
)

// Mode selects when a transaction's writes actually reach the backend.
type Mode int

const (
	// Immediate flushes every write as soon as it is submitted.
	Immediate Mode = iota
	// Deferred buffers writes per savepoint until an explicit flush or commit.
	Deferred
)

// leasedConn is one connection a top transaction currently holds, plus the
// bookkeeping flush needs: whether BeginTransaction has run on it yet, and
// which savepoint indices have already been introduced to it with a
// backend SAVEPOINT call.
type leasedConn struct {
	conn       backend.Connection
	idx        int
	access     *shard.ShardAccess
	savepoints map[int]bool
}

// pendingPlan is one ExecPlan attached to a savepoint.
type pendingPlan struct {
	plan    *planner.Plan
	shards  map[shard.ID]*shard.ShardAccess
	flushed bool
}

// CommitResult reports which shards' connections committed and which did
// not, the structured partial-commit outcome spec §4.K/§7 call for instead
// of an unwind.
type CommitResult struct {
	Committed   []shard.ID
	Uncommitted []shard.ID
}

// Transaction is either a top transaction (owns the connection map, the
// savepoint list, and the shared working scope) or a sub-transaction
// (nests under a parent, owns only the savepoint(s) it created, and
// reaches every connection through its top). Both shapes share this type;
// top is the receiver whose fields below the "top-only" comment are
// actually populated.
type Transaction struct {
	catalog *ConnectionCatalog
	mode    Mode
	parent  *Transaction
	top     *Transaction
	work    *memscope.Scope
	exec    *executor.Executor
	current *Savepoint

	// top-only below: nil/zero on a sub-transaction, which always reaches
	// through t.top instead of its own copy.
	savepoints  []*Savepoint
	connMap     map[shard.ID]*leasedConn
	readMap     map[shard.ID]*leasedConn
	lastFlushed int
	done        bool
}

// Begin opens a new top transaction against catalog, in the given mode.
func Begin(catalog *ConnectionCatalog, mode Mode) *Transaction {
	buffers := heap.NewBufferTable()
	work := memscope.New("txn")
	t := &Transaction{
		catalog:     catalog,
		mode:        mode,
		work:        work,
		exec:        executor.New(buffers),
		connMap:     make(map[shard.ID]*leasedConn),
		readMap:     make(map[shard.ID]*leasedConn),
		lastFlushed: -1,
	}
	t.top = t
	t.current = t.newSavepoint()
	return t
}

// Sub opens a sub-transaction nested under t, with its own fresh savepoint.
// Connections remain owned by t.top; the sub-transaction only references
// them.
func (t *Transaction) Sub() *Transaction {
	sub := &Transaction{
		catalog: t.catalog,
		mode:    t.mode,
		parent:  t,
		top:     t.top,
		work:    t.work.Child("subxact"),
		exec:    t.top.exec,
	}
	sub.current = sub.newSavepoint()
	return sub
}

func (t *Transaction) newSavepoint() *Savepoint {
	top := t.top
	sp := newSavepointAt(len(top.savepoints))
	top.savepoints = append(top.savepoints, sp)
	return sp
}

// Current returns the savepoint this (sub-)transaction is currently
// attaching writes to.
func (t *Transaction) Current() *Savepoint {
	return t.current
}

// Scope returns the top transaction's working memory scope, the one a
// buffer opened to hold a newly-constructed tuple should be tracked
// against so destroying the transaction frees it.
func (t *Transaction) Scope() *memscope.Scope {
	return t.top.work
}

// collectAccesses walks step's leaves, recording the distinct ShardAccess
// values its Bindings name.
func collectAccesses(step *planner.ExecStep, out map[shard.ID]*shard.ShardAccess) {
	if step == nil {
		return
	}
	if step.Binding != nil && step.Binding.Access != nil {
		out[step.Binding.Access.Shard.ID] = step.Binding.Access
	}
	for _, c := range step.Children {
		collectAccesses(c, out)
	}
}

// Submit runs a read plan directly (after flushing this transaction's
// already-attached writes so reads observe them) or attaches a write plan
// to the current savepoint, flushing immediately if the transaction is in
// Immediate mode (spec §4.K submit).
func (t *Transaction) Submit(ctx context.Context, plan *planner.Plan, write bool) (*executor.Result, error) {
	top := t.top
	if write {
		accesses := make(map[shard.ID]*shard.ShardAccess)
		collectAccesses(plan.Root, accesses)
		t.current.attach(&pendingPlan{plan: plan, shards: accesses})
		if top.mode == Immediate {
			return top.FlushThrough(ctx, t.current)
		}
		return nil, nil
	}
	if _, err := top.FlushThrough(ctx, t.current); err != nil {
		return nil, err
	}
	return top.executeDirect(ctx, plan)
}

// executeDirect runs a read-only plan using read-only leases acquired from
// the catalog for any shard not already held by a write lease, releasing
// every lease it acquired before returning.
func (top *Transaction) executeDirect(ctx context.Context, plan *planner.Plan) (*executor.Result, error) {
	accesses := make(map[shard.ID]*shard.ShardAccess)
	collectAccesses(plan.Root, accesses)

	var acquiredHere []shard.ID
	defer func() {
		for _, id := range acquiredHere {
			top.releaseRead(id)
		}
	}()

	for id, access := range accesses {
		if _, ok := top.connMap[id]; ok {
			continue
		}
		if _, ok := top.readMap[id]; ok {
			continue
		}
		conn, idx, err := top.catalog.Acquire(ctx, access)
		if err != nil {
			return nil, err
		}
		top.readMap[id] = &leasedConn{conn: conn, idx: idx, access: access}
		acquiredHere = append(acquiredHere, id)
	}

	provider := &stepConnProvider{t: top}
	return top.exec.Run(ctx, plan, provider, top.work)
}

func (top *Transaction) releaseRead(id shard.ID) {
	lc, ok := top.readMap[id]
	if !ok {
		return
	}
	delete(top.readMap, id)
	top.catalog.Release(id, lc.idx)
}

// FlushThrough runs every attached-but-unflushed plan from the last
// flushed savepoint (exclusive) through target (inclusive), acquiring and
// beginning backend transactions on any shard touched for the first time
// and sending SAVEPOINT for each flushed savepoint to every connection its
// plans touch that has not seen it yet (spec §4.K flush_through). Must be called on (or routed
// through) the top transaction.
func (t *Transaction) FlushThrough(ctx context.Context, target *Savepoint) (*executor.Result, error) {
	top := t.top
	combined := &executor.Result{}
	for i := top.lastFlushed + 1; i <= target.Index; i++ {
		sp := top.savepoints[i]
		for _, p := range sp.Plans {
			if p.flushed {
				continue
			}
			if err := top.leaseForWrite(ctx, p, sp); err != nil {
				return combined, err
			}
			provider := &stepConnProvider{t: top}
			res, err := top.exec.Run(ctx, p.plan, provider, top.work)
			if err != nil {
				return combined, err
			}
			combined.Rows = append(combined.Rows, res.Rows...)
			combined.RowCount += res.RowCount
			combined.QueryTime += res.QueryTime
			combined.FormTime += res.FormTime
			p.flushed = true
		}
		sp.Flushed = true
		top.lastFlushed = i
	}
	return combined, nil
}

func (top *Transaction) leaseForWrite(ctx context.Context, p *pendingPlan, sp *Savepoint) error {
	for id, access := range p.shards {
		lc, ok := top.connMap[id]
		if !ok {
			conn, idx, err := top.catalog.Acquire(ctx, access)
			if err != nil {
				return err
			}
			if err := conn.BeginTransaction(ctx); err != nil {
				top.catalog.Release(id, idx)
				return err
			}
			lc = &leasedConn{conn: conn, idx: idx, access: access, savepoints: make(map[int]bool)}
			top.connMap[id] = lc
		}
		if !lc.savepoints[sp.Index] {
			if err := lc.conn.Savepoint(ctx, sp.Name); err != nil {
				return err
			}
			lc.savepoints[sp.Index] = true
		}
	}
	return nil
}

// RollbackTo undoes every savepoint from target through the most recently
// created one, issuing ROLLBACK TO against the least-indexed savepoint
// each touched connection is still holding open (spec §4.K rollback_to).
func (t *Transaction) RollbackTo(ctx context.Context, target *Savepoint) error {
	top := t.top

	// Only a savepoint actually established on a connection (flushed with
	// a backend SAVEPOINT call) is something that connection can roll back
	// to; a savepoint whose writes are still pending in Deferred mode has
	// no backend state yet and is discarded locally instead, below.
	leastByConn := make(map[shard.ID]*Savepoint)
	for id, lc := range top.connMap {
		for i := target.Index; i < len(top.savepoints); i++ {
			if lc.savepoints[top.savepoints[i].Index] {
				leastByConn[id] = top.savepoints[i]
				break
			}
		}
	}

	var firstErr error
	for id, sp := range leastByConn {
		lc, ok := top.connMap[id]
		if !ok {
			continue
		}
		if err := lc.conn.RollbackTo(ctx, sp.Name); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for i := target.Index; i < len(top.savepoints); i++ {
		sp := top.savepoints[i]
		sp.RolledBack = true
		for _, p := range sp.Plans {
			p.flushed = true
		}
	}
	return firstErr
}

// Commit flushes every remaining savepoint, then issues COMMIT on each
// leased connection in a stable (sorted-by-shard-ID) order, invoking each
// fully-committed savepoint's plans' on-commit steps and marking the rest
// rolled back (spec §4.K commit). Only valid on a top transaction.
func (t *Transaction) Commit(ctx context.Context) (*CommitResult, error) {
	top := t.top
	if top != t {
		return nil, fmt.Errorf("txn: Commit must be called on the top transaction")
	}
	if top.done {
		return nil, fmt.Errorf("txn: transaction already finished")
	}
	if len(top.savepoints) > 0 {
		if _, err := top.FlushThrough(ctx, top.savepoints[len(top.savepoints)-1]); err != nil {
			return nil, err
		}
	}

	result := &CommitResult{}
	ids := make([]shard.ID, 0, len(top.connMap))
	for id := range top.connMap {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	committed := make(map[shard.ID]bool)
	var commitErr error
	for _, id := range ids {
		lc := top.connMap[id]
		if commitErr != nil {
			result.Uncommitted = append(result.Uncommitted, id)
			continue
		}
		if err := lc.conn.Commit(ctx); err != nil {
			commitErr = err
			result.Uncommitted = append(result.Uncommitted, id)
			continue
		}
		committed[id] = true
		result.Committed = append(result.Committed, id)
	}

	provider := &stepConnProvider{t: top}
	for _, sp := range top.savepoints {
		if sp.RolledBack {
			continue
		}
		allCommitted := true
		for id := range sp.Shards {
			if !committed[id] {
				allCommitted = false
				break
			}
		}
		if allCommitted {
			sp.Committed = true
			for _, p := range sp.Plans {
				if p.plan.OnCommit == nil {
					continue
				}
				if _, err := top.exec.Run(ctx, &planner.Plan{Root: p.plan.OnCommit}, provider, top.work); err != nil && commitErr == nil {
					commitErr = err
				}
			}
		} else {
			sp.RolledBack = true
			for _, p := range sp.Plans {
				if p.plan.OnRollback == nil {
					continue
				}
				_, _ = top.exec.Run(ctx, &planner.Plan{Root: p.plan.OnRollback}, provider, top.work)
			}
		}
	}

	top.releaseAll()
	if commitErr != nil {
		log.Logger.Warn().Err(commitErr).Int("committed", len(result.Committed)).Int("uncommitted", len(result.Uncommitted)).Msg("partial commit")
	} else {
		log.Logger.Debug().Int("connections", len(result.Committed)).Msg("transaction committed")
	}
	return result, commitErr
}

// Rollback issues ROLLBACK on every leased connection and runs each
// attached plan's on-rollback step (spec §4.K rollback). Only valid on a
// top transaction.
func (t *Transaction) Rollback(ctx context.Context) error {
	top := t.top
	if top != t {
		return fmt.Errorf("txn: Rollback must be called on the top transaction")
	}
	if top.done {
		return fmt.Errorf("txn: transaction already finished")
	}

	var firstErr error
	for _, lc := range top.connMap {
		if err := lc.conn.Rollback(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	provider := &stepConnProvider{t: top}
	for _, sp := range top.savepoints {
		sp.RolledBack = true
		for _, p := range sp.Plans {
			if p.plan.OnRollback == nil {
				continue
			}
			_, _ = top.exec.Run(ctx, &planner.Plan{Root: p.plan.OnRollback}, provider, top.work)
		}
	}

	top.releaseAll()
	if firstErr != nil {
		log.Logger.Warn().Err(firstErr).Msg("rollback reported an error on at least one connection")
	}
	return firstErr
}

func (top *Transaction) releaseAll() {
	for id, lc := range top.connMap {
		top.catalog.Release(id, lc.idx)
		delete(top.connMap, id)
	}
	for id, lc := range top.readMap {
		top.catalog.Release(id, lc.idx)
		delete(top.readMap, id)
	}
	top.done = true
	_ = top.work.Destroy()
}

// stepConnProvider satisfies executor.ConnProvider by looking a step's
// ShardAccess up in the top transaction's existing leases, rather than
// acquiring a fresh one: every connection a plan's steps need was already
// leased by FlushThrough/executeDirect before the executor ever runs.
type stepConnProvider struct {
	t *Transaction
}

func (p *stepConnProvider) Acquire(ctx context.Context, access *shard.ShardAccess) (backend.Connection, error) {
	top := p.t
	if lc, ok := top.connMap[access.Shard.ID]; ok {
		return lc.conn, nil
	}
	if lc, ok := top.readMap[access.Shard.ID]; ok {
		return lc.conn, nil
	}
	return nil, fmt.Errorf("txn: no connection leased for shard %q", access.Shard.ID)
}
