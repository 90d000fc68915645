package planner

import (
	"github.com/cuemby/shardbridge/pkg/catalog"
	"github.com/cuemby/shardbridge/pkg/heap"
	"github.com/cuemby/shardbridge/pkg/shard"
)

// StepKind tags one node of an ExecStep tree with the action the executor
// takes when it reaches it (spec §4.J).
type StepKind int

const (
	// StepFetch runs a prepared statement on one shard and collects rows.
	StepFetch StepKind = iota
	// StepFunnel has no statement of its own and runs each of its child
	// steps: the per-shard Fetch steps of a SELECT fanned out across shards
	// of the same backend driver under one beacon, or the several
	// Insert/Update/Delete steps of one write plan.
	StepFunnel
	// StepDiscard runs a statement (typically DDL) whose results, if any,
	// are read and freed by the driver without forwarding anything.
	StepDiscard
	// StepInsert executes one insert group (tuples sharing a null bitmap)
	// against its target shard.
	StepInsert
	// StepUpdate executes an update against its target shard.
	StepUpdate
	// StepDelete executes a delete against its target shard.
	StepDelete
	// StepCommitHeapTups is reserved: it parses but the planner never
	// emits it (spec §9 Open Question 2 — "treat as reserved").
	StepCommitHeapTups
)

func (k StepKind) String() string {
	switch k {
	case StepFetch:
		return "Fetch"
	case StepFunnel:
		return "Funnel"
	case StepDiscard:
		return "Discard"
	case StepInsert:
		return "Insert"
	case StepUpdate:
		return "Update"
	case StepDelete:
		return "Delete"
	case StepCommitHeapTups:
		return "CommitHeapTups"
	default:
		return "Unknown"
	}
}

// Binding is one shard-specific instantiation of a step's prepared
// statement: the SQL text (already placeholder-annotated by query.Emit)
// and its ordered parameter list.
type Binding struct {
	Access *shard.ShardAccess
	SQL    string
	Params []any
}

// ExecStep is one node of the plan the executor walks depth-first. Fetch
// and Discard steps carry exactly one Binding; a Funnel step carries no
// binding of its own and instead fans out across its Children: for a
// SELECT, Fetch steps bound to different shards of the same backend driver
// sharing one statement template; for an insert, update or delete plan with
// more than one statement, that plan's Insert/Update/Delete steps.
type ExecStep struct {
	Kind     StepKind
	Binding  *Binding
	Children []*ExecStep

	// Returning names the columns a driver must echo back after Insert
	// (defaults flowing onto the in-memory tuple) or after an Update/Delete
	// with an explicit RETURNING list.
	Returning []string

	// Projection is nil except on Fetch steps that read rows back; it
	// is built once at plan time so the executor never re-resolves a
	// field's TAM stack per row.
	Projection *Projection

	// Dedup requests an index collector ahead of the SList collector,
	// deduplicating joined rows by the named fields before they reach the
	// result list (spec §4.J).
	Dedup []string

	// Targets holds the in-memory tuples an Insert/Update/Delete step acts
	// on, in the same order as Binding's row parameters, so the executor's
	// returning collector can apply backend-echoed defaults back onto the
	// caller's own tuples instead of only the freshly-allocated result rows.
	Targets []*heap.Tuple

	// ResultDef is the table definition the executor opens a result buffer
	// against for this step — the joined result tables' first table for a
	// Fetch, or the acted-on table for an Insert/Update/Delete that carries
	// a RETURNING list. Nil when the step produces no rows (Discard, or a
	// write with nothing to return).
	ResultDef *catalog.TupleDef
}

// AddChild appends a child step, used to build Funnel fan-out trees.
func (s *ExecStep) AddChild(c *ExecStep) {
	s.Children = append(s.Children, c)
}
