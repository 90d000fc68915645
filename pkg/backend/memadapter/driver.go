// Package memadapter is a backend.Driver over an in-process map, standing
// in for a real storage engine in tests that exercise the planner,
// executor, and transaction manager without a live database.
package memadapter

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/shardbridge/pkg/backend"
	"github.com/cuemby/shardbridge/pkg/credential"
	"github.com/cuemby/shardbridge/pkg/heap"
	"github.com/cuemby/shardbridge/pkg/health"
	"github.com/cuemby/shardbridge/pkg/memscope"
	"github.com/cuemby/shardbridge/pkg/planner"
	"github.com/cuemby/shardbridge/pkg/query"
)

const Name = "memadapter"

// database is the process-wide table set a Driver's connections share.
type database struct {
	mu     sync.Mutex
	tables map[string]*table
}

// Driver is a backend.Driver backed by an in-process database shared by
// every connection it creates — analogous to an embedded/in-memory mode of
// a real engine, not a pool of independent databases.
type Driver struct {
	db *database
}

// NewDriver builds a Driver with an empty, shared in-memory database.
func NewDriver() *Driver {
	return &Driver{db: &database{tables: make(map[string]*table)}}
}

func (d *Driver) Name() string { return Name }

func (d *Driver) CreateConnection() (backend.Connection, error) {
	return &conn{db: d.db}, nil
}

// Command renders a single query.Node fragment via pkg/query's formatter.
// It does not assemble a full statement skeleton — callers needing that
// (SELECT/INSERT/UPDATE/DELETE) should go through pkg/planner instead.
func (d *Driver) Command(node *query.Node, paramOffset int, paramValues []any) (string, error) {
	ctx := query.NewFormatterContext(Name, query.PlaceholderQuestion)
	ctx.Params = append(ctx.Params, paramValues[:paramOffset]...)
	if err := query.Emit(node, ctx); err != nil {
		return "", err
	}
	return ctx.String(), nil
}

// conn is one connection into the shared database. Outside a transaction,
// every Execute call reads/writes the shared tables directly (auto-commit).
// Inside one, touched tables are copy-on-write into working until Commit
// folds them back or Rollback discards them.
type conn struct {
	db *database

	inTx       bool
	working    map[string]*table
	savepoints map[string]map[string]*table
}

func (c *conn) Connect(ctx context.Context, cred credential.Value, database string) error {
	return nil
}

func (c *conn) Disconnect(ctx context.Context) error { return nil }

func (c *conn) Reset(ctx context.Context) error {
	c.inTx = false
	c.working = nil
	c.savepoints = nil
	return nil
}

func (c *conn) Ping(ctx context.Context) health.Result {
	return health.Result{Healthy: true, Message: "memadapter always reachable", CheckedAt: time.Now()}
}

func (c *conn) Close() error { return nil }

func (c *conn) BeginTransaction(ctx context.Context) error {
	if c.inTx {
		return fmt.Errorf("memadapter: connection already has a transaction open")
	}
	c.inTx = true
	c.working = make(map[string]*table)
	c.savepoints = make(map[string]map[string]*table)
	return nil
}

func (c *conn) Commit(ctx context.Context) error {
	if !c.inTx {
		return fmt.Errorf("memadapter: no transaction open")
	}
	c.db.mu.Lock()
	for name, t := range c.working {
		c.db.tables[name] = t
	}
	c.db.mu.Unlock()
	return c.Reset(ctx)
}

func (c *conn) Rollback(ctx context.Context) error {
	if !c.inTx {
		return fmt.Errorf("memadapter: no transaction open")
	}
	return c.Reset(ctx)
}

func (c *conn) Savepoint(ctx context.Context, name string) error {
	if !c.inTx {
		return fmt.Errorf("memadapter: no transaction open")
	}
	snap := make(map[string]*table, len(c.working))
	for k, v := range c.working {
		snap[k] = v.clone()
	}
	c.savepoints[name] = snap
	return nil
}

func (c *conn) RollbackTo(ctx context.Context, name string) error {
	snap, ok := c.savepoints[name]
	if !ok {
		return fmt.Errorf("memadapter: unknown savepoint %q", name)
	}
	working := make(map[string]*table, len(snap))
	for k, v := range snap {
		working[k] = v.clone()
	}
	c.working = working
	return nil
}

func (c *conn) getTable(name string, forWrite bool) *table {
	if c.inTx {
		if t, ok := c.working[name]; ok {
			return t
		}
		c.db.mu.Lock()
		base, ok := c.db.tables[name]
		c.db.mu.Unlock()
		var t *table
		if ok {
			t = base.clone()
		} else {
			t = &table{}
		}
		if forWrite {
			c.working[name] = t
		}
		return t
	}

	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	t, ok := c.db.tables[name]
	if !ok {
		t = &table{}
		c.db.tables[name] = t
	}
	return t
}

func (c *conn) Execute(ctx context.Context, binding *planner.Binding, proj *planner.Projection, work, result *memscope.Scope, info backend.CollectorInfo) (backend.ExecResult, error) {
	start := time.Now()
	stmt, err := parseSQL(binding.SQL, binding.Params)
	if err != nil {
		return backend.ExecResult{}, err
	}

	formationStart := time.Now()
	rows, err := 0, error(nil)
	switch s := stmt.(type) {
	case *selectStmt:
		rows, err = c.execSelect(s, info)
	case *insertStmt:
		rows, err = c.execInsert(s, info)
	case *updateStmt:
		rows, err = c.execUpdate(s, info)
	case *deleteStmt:
		rows, err = c.execDelete(s, info)
	case nil:
		// DDL or unrecognized statement: nothing to do, succeeds as a no-op.
	}
	if err != nil {
		return backend.ExecResult{}, err
	}

	return backend.ExecResult{
		QueryDuration:     formationStart.Sub(start),
		FormationDuration: time.Since(formationStart),
		Rows:              rows,
	}, nil
}

func (c *conn) execSelect(s *selectStmt, info backend.CollectorInfo) (int, error) {
	t := c.getTable(s.table, false)
	matched := make([]storedRow, 0, len(t.rows))
	for _, r := range t.rows {
		if s.where.eval(r) {
			matched = append(matched, r)
		}
	}
	if s.orderBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			less := compare(matched[i][s.orderBy], "<", matched[j][s.orderBy])
			if s.orderDesc {
				return compare(matched[i][s.orderBy], ">", matched[j][s.orderBy])
			}
			return less
		})
	}
	if s.offset > 0 {
		if s.offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[s.offset:]
		}
	}
	if s.limit > 0 && len(matched) > s.limit {
		matched = matched[:s.limit]
	}

	for _, r := range matched {
		tup, err := info.Buffers.Allocate(info.ResultBuffer, true)
		if err != nil {
			return 0, err
		}
		for _, f := range s.fields {
			v, present := r[f.name]
			if err := tup.SetField(f.name, v, !present || v == nil); err != nil {
				return 0, err
			}
		}
		if err := info.Collector.Collect(info.State, []*heap.Tuple{tup}, []heap.HTP{tup.Pointer}); err != nil {
			return 0, err
		}
	}
	return len(matched), nil
}

func (c *conn) execInsert(s *insertStmt, info backend.CollectorInfo) (int, error) {
	t := c.getTable(s.table, true)
	for _, row := range s.rows {
		r := make(storedRow, len(s.columns))
		for i, col := range s.columns {
			r[col] = row[i]
		}
		t.rows = append(t.rows, r)

		if len(s.returning) > 0 {
			tup, err := info.Buffers.Allocate(info.ResultBuffer, true)
			if err != nil {
				return 0, err
			}
			for _, name := range s.returning {
				if err := tup.SetField(name, nil, true); err != nil {
					return 0, err
				}
			}
			if err := info.Collector.Collect(info.State, []*heap.Tuple{tup}, []heap.HTP{tup.Pointer}); err != nil {
				return 0, err
			}
		}
	}
	return len(s.rows), nil
}

func (c *conn) execUpdate(s *updateStmt, info backend.CollectorInfo) (int, error) {
	t := c.getTable(s.table, true)
	matched := 0
	for _, r := range t.rows {
		if !s.where.eval(r) {
			continue
		}
		matched++
		for i, col := range s.setCols {
			r[col] = s.setVals[i]
		}
		if len(s.returning) > 0 {
			tup, err := info.Buffers.Allocate(info.ResultBuffer, true)
			if err != nil {
				return 0, err
			}
			for _, name := range s.returning {
				v, present := r[name]
				if err := tup.SetField(name, v, !present); err != nil {
					return 0, err
				}
			}
			if err := info.Collector.Collect(info.State, []*heap.Tuple{tup}, []heap.HTP{tup.Pointer}); err != nil {
				return 0, err
			}
		}
	}
	return matched, nil
}

func (c *conn) execDelete(s *deleteStmt, info backend.CollectorInfo) (int, error) {
	t := c.getTable(s.table, true)
	kept := t.rows[:0]
	deleted := 0
	for _, r := range t.rows {
		if s.where.eval(r) {
			deleted++
			if len(s.returning) > 0 {
				tup, err := info.Buffers.Allocate(info.ResultBuffer, true)
				if err != nil {
					return 0, err
				}
				for _, name := range s.returning {
					v, present := r[name]
					if err := tup.SetField(name, v, !present); err != nil {
						return 0, err
					}
				}
				if err := info.Collector.Collect(info.State, []*heap.Tuple{tup}, []heap.HTP{tup.Pointer}); err != nil {
					return 0, err
				}
			}
			continue
		}
		kept = append(kept, r)
	}
	t.rows = kept
	return deleted, nil
}
