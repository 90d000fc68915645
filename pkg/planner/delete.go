package planner

import (
	"fmt"

	"github.com/cuemby/shardbridge/pkg/catalog"
	"github.com/cuemby/shardbridge/pkg/heap"
	"github.com/cuemby/shardbridge/pkg/query"
	"github.com/cuemby/shardbridge/pkg/shard"
)

// PlanDelete builds one Delete ExecStep per tuple, each keyed by the
// table's primary key, when tuples is non-empty, or a single Delete
// ExecStep carrying where when deleting by predicate instead of by
// specific tuple pointers.
func PlanDelete(tableName string, tuples []*heap.Tuple, where *query.Node, returning []string, tables TableResolver, beacons Beacons, opts Opts) (*Plan, error) {
	td, beacon, err := resolveTable(tables, beacons, tableName)
	if err != nil {
		return nil, err
	}

	target := opts.ForcedShard
	if target == nil {
		target, err = beacon.ShardForTable(td)
		if err != nil {
			return nil, err
		}
	}
	access := &shard.ShardAccess{Shard: target, Beacon: beacon}

	if len(tuples) == 0 {
		if where == nil {
			return nil, fmt.Errorf("planner: PlanDelete requires either tuples or a predicate")
		}
		step, err := buildDeleteStep(tableName, td, where, returning, nil, access, opts)
		if err != nil {
			return nil, err
		}
		return &Plan{Root: step}, nil
	}

	var steps []*ExecStep
	for _, t := range tuples {
		predicate, err := primaryKeyQual(td, t)
		if err != nil {
			return nil, err
		}
		step, err := buildDeleteStep(tableName, td, predicate, returning, t, access, opts)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	root := steps[0]
	if len(steps) > 1 {
		root = &ExecStep{Kind: StepFunnel, Children: steps}
	}
	return &Plan{Root: root}, nil
}

func buildDeleteStep(table string, td *catalog.TupleDef, where *query.Node, returning []string, target *heap.Tuple, access *shard.ShardAccess, opts Opts) (*ExecStep, error) {
	ctx := query.NewFormatterContext(opts.TargetBackend, opts.PlaceholderFmt)
	ctx.WriteSQL("DELETE FROM " + table + " WHERE ")
	if err := query.Emit(where, ctx); err != nil {
		return nil, err
	}
	if len(returning) > 0 {
		ctx.WriteSQL(" RETURNING " + joinNames(returning))
	}

	step := &ExecStep{
		Kind:      StepDelete,
		Returning: returning,
		Binding: &Binding{
			Access: access,
			SQL:    ctx.String(),
			Params: ctx.Params,
		},
	}
	if target != nil {
		step.Targets = []*heap.Tuple{target}
	}
	if len(returning) > 0 {
		step.ResultDef = td
	}
	return step, nil
}
