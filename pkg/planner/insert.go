package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cuemby/shardbridge/pkg/catalog"
	"github.com/cuemby/shardbridge/pkg/heap"
	"github.com/cuemby/shardbridge/pkg/query"
	"github.com/cuemby/shardbridge/pkg/shard"
)

// BulkInsertThreshold is the group size spec §4.I promotes to a single
// multi-row bulk insert statement instead of one statement per tuple.
const BulkInsertThreshold = 4

// nullBitmapKey derives the grouping key spec §4.I computes per tuple: a
// bit per field, in TDV field order, set when that field is null.
func nullBitmapKey(td *catalog.TupleDef, t *heap.Tuple) (string, error) {
	var b strings.Builder
	for _, f := range td.Fields {
		isNull, err := t.IsNull(f.Name)
		if err != nil {
			return "", err
		}
		if isNull {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String(), nil
}

// insertGroup is one null-bitmap-identical batch of tuples awaiting a
// single Insert ExecStep.
type insertGroup struct {
	key      string
	nonNull  []string
	null     []string
	tuples   []*heap.Tuple
}

func groupByNullBitmap(td *catalog.TupleDef, tuples []*heap.Tuple) ([]*insertGroup, error) {
	order := make([]string, 0)
	byKey := make(map[string]*insertGroup)

	for _, t := range tuples {
		key, err := nullBitmapKey(td, t)
		if err != nil {
			return nil, err
		}
		g, ok := byKey[key]
		if !ok {
			g = &insertGroup{key: key}
			for i, f := range td.Fields {
				if key[i] == '1' {
					g.null = append(g.null, f.Name)
				} else {
					g.nonNull = append(g.nonNull, f.Name)
				}
			}
			byKey[key] = g
			order = append(order, key)
		}
		g.tuples = append(g.tuples, t)
	}

	groups := make([]*insertGroup, 0, len(order))
	for _, k := range order {
		groups = append(groups, byKey[k])
	}
	return groups, nil
}

// PlanInsert groups tuples by identical null bitmap and builds one Insert
// ExecStep per group, restricting its column list to that group's non-null
// fields and its RETURNING list to the null fields so backend-generated
// defaults flow back onto the tuples. Groups larger than
// BulkInsertThreshold collapse into a single multi-row statement; smaller
// groups get one single-row statement per tuple.
func PlanInsert(tableName string, tuples []*heap.Tuple, tables TableResolver, beacons Beacons, opts Opts) (*Plan, error) {
	if len(tuples) == 0 {
		return nil, fmt.Errorf("planner: PlanInsert requires at least one tuple")
	}

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

	groups, err := groupByNullBitmap(td, tuples)
	if err != nil {
		return nil, err
	}

	var steps []*ExecStep
	for _, g := range groups {
		if len(g.tuples) > BulkInsertThreshold {
			step, err := buildInsertStep(tableName, td, g.nonNull, g.null, g.tuples, access, opts)
			if err != nil {
				return nil, err
			}
			steps = append(steps, step)
			continue
		}
		for _, t := range g.tuples {
			step, err := buildInsertStep(tableName, td, g.nonNull, g.null, []*heap.Tuple{t}, access, opts)
			if err != nil {
				return nil, err
			}
			steps = append(steps, step)
		}
	}

	root := steps[0]
	if len(steps) > 1 {
		root = &ExecStep{Kind: StepFunnel, Children: steps}
	}
	return &Plan{Root: root}, nil
}

func buildInsertStep(table string, td *catalog.TupleDef, columns, returning []string, tuples []*heap.Tuple, access *shard.ShardAccess, opts Opts) (*ExecStep, error) {
	rows := make([][]any, 0, len(tuples))
	for _, t := range tuples {
		row := make([]any, len(columns))
		for i, col := range columns {
			v, _, err := t.FieldByName(col)
			if err != nil {
				return nil, err
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	sort.Strings(returning)

	node := query.NewInsertIntoNode(table, columns, rows)
	if err := node.VT.Check(node); err != nil {
		return nil, err
	}

	ctx := query.NewFormatterContext(opts.TargetBackend, opts.PlaceholderFmt)
	ctx.WriteSQL("INSERT INTO ")
	if err := query.Emit(node, ctx); err != nil {
		return nil, err
	}
	if len(returning) > 0 {
		ctx.WriteSQL(" RETURNING " + joinNames(returning))
	}

	step := &ExecStep{
		Kind:      StepInsert,
		Returning: returning,
		Targets:   tuples,
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
