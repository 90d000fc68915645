package planner

import (
	"fmt"

	"github.com/cuemby/shardbridge/pkg/catalog"
	"github.com/cuemby/shardbridge/pkg/heap"
	"github.com/cuemby/shardbridge/pkg/query"
	"github.com/cuemby/shardbridge/pkg/shard"
)

// PlanUpdate builds one Update ExecStep per tuple, each a SET list against
// a WHERE clause equating the tuple's primary key. When explicitFields is
// non-nil, every tuple gets that same SET list (spec §4.I: "if the caller
// provided an explicit set of field nodes, use them"); otherwise each
// tuple's SET list is derived by diffing it against its immutable copy via
// Tuple.Changed, so only fields the caller actually touched are sent.
func PlanUpdate(tableName string, tuples []*heap.Tuple, explicitFields []*query.Node, returning []string, tables TableResolver, beacons Beacons, opts Opts) (*Plan, error) {
	if len(tuples) == 0 {
		return nil, fmt.Errorf("planner: PlanUpdate requires at least one tuple")
	}

	td, beacon, err := resolveTable(tables, beacons, tableName)
	if err != nil {
		return nil, err
	}
	if len(td.PrimaryKey) == 0 {
		return nil, fmt.Errorf("planner: table %q has no primary key to target an update by", tableName)
	}

	target := opts.ForcedShard
	if target == nil {
		target, err = beacon.ShardForTable(td)
		if err != nil {
			return nil, err
		}
	}
	access := &shard.ShardAccess{Shard: target, Beacon: beacon}

	var steps []*ExecStep
	for _, t := range tuples {
		setNodes := explicitFields
		if setNodes == nil {
			setNodes, err = diffUpdateFields(t)
			if err != nil {
				return nil, err
			}
		}
		if len(setNodes) == 0 {
			continue
		}

		step, err := buildUpdateStep(tableName, td, t, setNodes, returning, access, opts)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	if len(steps) == 0 {
		return nil, fmt.Errorf("planner: no tuple in the update batch has any changed field")
	}

	root := steps[0]
	if len(steps) > 1 {
		root = &ExecStep{Kind: StepFunnel, Children: steps}
	}
	return &Plan{Root: root}, nil
}

func diffUpdateFields(t *heap.Tuple) ([]*query.Node, error) {
	changed, err := t.Changed()
	if err != nil {
		return nil, err
	}
	nodes := make([]*query.Node, 0, len(changed))
	for _, f := range changed {
		v, _, err := t.FieldByName(f.Name)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, query.NewUpdateFieldNode(f.Name, v))
	}
	return nodes, nil
}

func primaryKeyQual(td *catalog.TupleDef, t *heap.Tuple) (*query.Node, error) {
	var qual *query.Node
	for _, pk := range td.PrimaryKey {
		v, _, err := t.FieldByName(pk)
		if err != nil {
			return nil, err
		}
		cmp := query.NewQualCompareNode(query.QualEq, query.NewFieldNode("", pk, ""), query.NewLiteralNode(v))
		if qual == nil {
			qual = cmp
		} else {
			qual = query.NewQualBoolNode(query.QualAnd, qual, cmp)
		}
	}
	return qual, nil
}

func buildUpdateStep(table string, td *catalog.TupleDef, t *heap.Tuple, setNodes []*query.Node, returning []string, access *shard.ShardAccess, opts Opts) (*ExecStep, error) {
	where, err := primaryKeyQual(td, t)
	if err != nil {
		return nil, err
	}

	ctx := query.NewFormatterContext(opts.TargetBackend, opts.PlaceholderFmt)
	ctx.WriteSQL("UPDATE " + table + " SET ")
	for i, n := range setNodes {
		if i > 0 {
			ctx.WriteSQL(", ")
		}
		if err := query.Emit(n, ctx); err != nil {
			return nil, err
		}
	}
	ctx.WriteSQL(" WHERE ")
	if err := query.Emit(where, ctx); err != nil {
		return nil, err
	}
	if len(returning) > 0 {
		ctx.WriteSQL(" RETURNING " + joinNames(returning))
	}

	step := &ExecStep{
		Kind:      StepUpdate,
		Returning: returning,
		Targets:   []*heap.Tuple{t},
		Binding: &Binding{
			Access: access,
			SQL:    ctx.String(),
			Params: ctx.Params,
		},
	}
	if len(returning) > 0 {
		step.ResultDef = td
	}
	return step, nil
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}
