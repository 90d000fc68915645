package executor

import (
	"fmt"
	"strings"

	"github.com/cuemby/shardbridge/pkg/heap"
)

// Result accumulates every row a plan's Fetch/Returning steps produce,
// plus the per-step timing the backend reported (spec §4.J).
type Result struct {
	Rows      [][]*heap.Tuple
	QueryTime float64 // seconds, summed across every leaf step executed
	FormTime  float64 // seconds, summed across every leaf step executed
	RowCount  int
}

// Row returns the single tuple of row i in the common unjoined case, where
// every row carries exactly one table's tuple.
func (r *Result) Row(i int) *heap.Tuple {
	row := r.Rows[i]
	if len(row) == 0 {
		return nil
	}
	return row[0]
}

// sListCollector appends every row it receives to the shared Result
// unconditionally — the plain row-list collector spec §4.J describes for a
// Fetch step with no dedup request.
type sListCollector struct {
	result *Result
}

func newSListCollector(result *Result) *sListCollector {
	return &sListCollector{result: result}
}

func (c *sListCollector) Collect(state any, tuples []*heap.Tuple, ptrs []heap.HTP) error {
	row := make([]*heap.Tuple, len(tuples))
	copy(row, tuples)
	c.result.Rows = append(c.result.Rows, row)
	return nil
}

// dedupCollector wraps another collector, suppressing rows whose dedup key
// (the named fields' values off the row's first tuple, joined with a
// separator unlikely to appear in a value's string form) was already seen.
// This is a map-based stand-in for the index structure spec §4.J describes
// for its dedup collector; no example repo in the pack implements a
// radix/ART index, and a Go map already gives O(1) membership checks
// without inventing a data structure nothing here exercises elsewhere.
type dedupCollector struct {
	inner  backendCollector
	fields []string
	seen   map[string]struct{}
}

// backendCollector mirrors backend.Collector's shape so that collector.go
// itself does not import pkg/backend (executor.go in this package does;
// there is no import cycle either way). Every collector here satisfies
// both interfaces.
type backendCollector interface {
	Collect(state any, tuples []*heap.Tuple, ptrs []heap.HTP) error
}

func newDedupCollector(inner backendCollector, fields []string) *dedupCollector {
	return &dedupCollector{inner: inner, fields: fields, seen: make(map[string]struct{})}
}

func (c *dedupCollector) Collect(state any, tuples []*heap.Tuple, ptrs []heap.HTP) error {
	if len(tuples) == 0 {
		return c.inner.Collect(state, tuples, ptrs)
	}
	var key strings.Builder
	for _, name := range c.fields {
		v, present, err := tuples[0].FieldByName(name)
		if err != nil {
			return err
		}
		if present {
			fmt.Fprintf(&key, "%v", v)
		}
		key.WriteByte(0)
	}
	k := key.String()
	if _, dup := c.seen[k]; dup {
		return nil
	}
	c.seen[k] = struct{}{}
	return c.inner.Collect(state, tuples, ptrs)
}

// returningCollector applies a write step's RETURNING row back onto the
// in-memory tuple it corresponds to, matched positionally: row i of the
// backend's response is step.Targets[i]'s defaults. A predicate-based
// Delete/Update carries no Targets (the affected rows weren't resolved
// from in-memory tuples to begin with), in which case returningCollector
// falls back to appending the row to the Result like a plain Fetch would.
type returningCollector struct {
	targets []*heap.Tuple
	result  *Result
	next    int
}

func newReturningCollector(targets []*heap.Tuple, result *Result) *returningCollector {
	return &returningCollector{targets: targets, result: result}
}

func (c *returningCollector) Collect(state any, tuples []*heap.Tuple, ptrs []heap.HTP) error {
	if len(tuples) == 0 {
		return nil
	}
	if c.next >= len(c.targets) {
		row := make([]*heap.Tuple, len(tuples))
		copy(row, tuples)
		c.result.Rows = append(c.result.Rows, row)
		return nil
	}
	target := c.targets[c.next]
	c.next++

	src := tuples[0]
	for _, f := range src.Def.Fields {
		v, present, err := src.FieldByName(f.Name)
		if err != nil {
			return err
		}
		if !present {
			continue
		}
		if err := target.SetField(f.Name, v, false); err != nil {
			return err
		}
	}
	c.result.Rows = append(c.result.Rows, []*heap.Tuple{target})
	return nil
}
