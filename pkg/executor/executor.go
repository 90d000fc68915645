package executor

import (
	"context"

	"github.com/cuemby/shardbridge/pkg/backend"
	"github.com/cuemby/shardbridge/pkg/heap"
	"github.com/cuemby/shardbridge/pkg/memscope"
	"github.com/cuemby/shardbridge/pkg/metrics"
	"github.com/cuemby/shardbridge/pkg/planner"
	"github.com/cuemby/shardbridge/pkg/shard"
)

// ConnProvider resolves the live backend.Connection a step's Binding.Access
// names. The transaction manager's Connection Catalog is the production
// implementation; a test or the embedding API's single-shot path can
// supply a simpler fixed-connection provider instead.
type ConnProvider interface {
	Acquire(ctx context.Context, access *shard.ShardAccess) (backend.Connection, error)
}

// Executor walks one planner.Plan's ExecStep tree to completion, opening a
// result buffer per leaf step that produces rows and driving each step's
// connection with the collector its shape calls for.
type Executor struct {
	Buffers *heap.BufferTable
}

// New builds an Executor allocating result tuples out of buffers.
func New(buffers *heap.BufferTable) *Executor {
	return &Executor{Buffers: buffers}
}

// Run executes plan's root step, descending into every child of a Funnel,
// and returns every row collected along the way. work scopes any result
// buffer the run opens; closing it frees the rows once the caller is done
// with them.
func (e *Executor) Run(ctx context.Context, plan *planner.Plan, conns ConnProvider, work *memscope.Scope) (*Result, error) {
	result := &Result{}
	if err := e.runStep(ctx, plan.Root, conns, work, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Executor) runStep(ctx context.Context, step *planner.ExecStep, conns ConnProvider, work *memscope.Scope, result *Result) error {
	if step.Kind == planner.StepFunnel {
		for _, child := range step.Children {
			if err := e.runStep(ctx, child, conns, work, result); err != nil {
				return err
			}
		}
		return nil
	}
	return e.runLeaf(ctx, step, conns, work, result)
}

func (e *Executor) runLeaf(ctx context.Context, step *planner.ExecStep, conns ConnProvider, work *memscope.Scope, result *Result) error {
	conn, err := conns.Acquire(ctx, step.Binding.Access)
	if err != nil {
		return err
	}

	var collector backendCollector
	switch {
	case step.Kind == planner.StepDiscard:
		collector = discardCollector{}
	case len(step.Targets) > 0 && len(step.Returning) > 0:
		collector = newReturningCollector(step.Targets, result)
	case len(step.Dedup) > 0:
		collector = newDedupCollector(newSListCollector(result), step.Dedup)
	default:
		collector = newSListCollector(result)
	}

	info := backend.CollectorInfo{Collector: collector}
	if step.ResultDef != nil {
		bufNo, err := e.Buffers.Open(work, step.ResultDef, "executor")
		if err != nil {
			return err
		}
		info.Buffers = e.Buffers
		info.ResultBuffer = bufNo
	}

	execRes, err := conn.Execute(ctx, step.Binding, step.Projection, work, work, info)
	if err != nil {
		return err
	}
	result.QueryTime += execRes.QueryDuration.Seconds()
	result.FormTime += execRes.FormationDuration.Seconds()
	result.RowCount += execRes.Rows

	driver := step.Binding.Access.Shard.Driver
	metrics.QueryDuration.WithLabelValues(driver).Observe(execRes.QueryDuration.Seconds())
	metrics.FormationDuration.WithLabelValues(driver).Observe(execRes.FormationDuration.Seconds())
	metrics.RowsCollected.WithLabelValues(step.Kind.String()).Add(float64(execRes.Rows))
	return nil
}

type discardCollector struct{}

func (discardCollector) Collect(state any, tuples []*heap.Tuple, ptrs []heap.HTP) error { return nil }
