package planner

import (
	"fmt"

	"github.com/cuemby/shardbridge/pkg/catalog"
	"github.com/cuemby/shardbridge/pkg/query"
	"github.com/cuemby/shardbridge/pkg/shard"
)

// PlanSelect walks root's FROM/JOIN children to collect the query's tables,
// resolves each to a shard via its beacon, and chooses one of the three
// shapes spec §4.I documents: a single Fetch, a Funnel fanning one
// statement template across every shard of a single multi-shard beacon, or
// an error when the tables span more than one beacon or backend driver.
func PlanSelect(root *query.Node, tables TableResolver, beacons Beacons, opts Opts) (*Plan, error) {
	sel, ok := root.Payload.(query.SelectPayload)
	if !ok {
		return nil, fmt.Errorf("planner: PlanSelect requires a SELECT root, got %v", root.Tag)
	}

	tableNames, fieldNodes, fromJoinOrder, err := collectSelectTables(root)
	if err != nil {
		return nil, err
	}

	tdvs := make([]*catalog.TupleDef, 0, len(tableNames))
	var beacon shard.Beacon
	crossBeacon := false
	for _, name := range tableNames {
		td, b, err := resolveTable(tables, beacons, name)
		if err != nil {
			return nil, err
		}
		tdvs = append(tdvs, td)
		if beacon == nil {
			beacon = b
		} else if b != beacon {
			crossBeacon = true
		}
	}

	proj, err := BuildProjection(tdvs, fieldNodes)
	if err != nil {
		return nil, err
	}

	ctx := query.NewFormatterContext(opts.TargetBackend, opts.PlaceholderFmt)
	if err := emitSelectSQL(root, sel, fromJoinOrder, fieldNodes, ctx); err != nil {
		return nil, err
	}

	if crossBeacon {
		return nil, ErrCrossBeaconUnsupported
	}

	shards := beacon.Shards()
	if opts.ForcedShard != nil {
		shards = []*shard.Shard{opts.ForcedShard}
	}
	if len(shards) == 0 {
		return nil, shard.ErrNoShardsConfigured
	}

	driver := shards[0].Driver
	for _, s := range shards[1:] {
		if s.Driver != driver {
			return nil, ErrCrossBeaconUnsupported
		}
	}

	if len(shards) == 1 {
		step := &ExecStep{
			Kind:       StepFetch,
			Projection: proj,
			ResultDef:  tdvs[0],
			Binding: &Binding{
				Access: &shard.ShardAccess{Shard: shards[0], Beacon: beacon},
				SQL:    ctx.String(),
				Params: ctx.Params,
			},
		}
		return &Plan{Root: step, Projection: proj}, nil
	}

	funnel := &ExecStep{Kind: StepFunnel, Projection: proj}
	for _, s := range shards {
		funnel.AddChild(&ExecStep{
			Kind:       StepFetch,
			Projection: proj,
			ResultDef:  tdvs[0],
			Binding: &Binding{
				Access: &shard.ShardAccess{Shard: s, Beacon: beacon},
				SQL:    ctx.String(),
				Params: ctx.Params,
			},
		})
	}
	return &Plan{Root: funnel, Projection: proj}, nil
}

// collectSelectTables walks root's direct children, separating the FROM
// table, each JOIN's table, and the projected Field nodes, in the order
// they were attached so emitSelectSQL can reproduce it.
func collectSelectTables(root *query.Node) (tableNames []string, fields []*query.Node, order []*query.Node, err error) {
	for _, c := range root.Children() {
		switch c.Tag {
		case query.TagFrom:
			fp := c.Payload.(query.FromPayload)
			tableNames = append(tableNames, fp.Table)
			order = append(order, c)
		case query.TagJoin:
			jp := c.Payload.(query.JoinPayload)
			tableNames = append(tableNames, jp.Table)
			order = append(order, c)
		case query.TagField:
			fields = append(fields, c)
		}
	}
	if len(tableNames) == 0 {
		return nil, nil, nil, fmt.Errorf("planner: SELECT has no FROM table")
	}
	return tableNames, fields, order, nil
}

// emitSelectSQL composes the statement text around query.Emit's per-node
// fragments: the planner supplies the SELECT/FROM/WHERE/ORDER BY keywords
// and separators, each node supplies its own rendering.
func emitSelectSQL(root *query.Node, sel query.SelectPayload, fromJoin, fields []*query.Node, ctx *query.FormatterContext) error {
	ctx.WriteSQL("SELECT ")
	if sel.Distinct {
		ctx.WriteSQL("DISTINCT ")
	}
	for i, f := range fields {
		if i > 0 {
			ctx.WriteSQL(", ")
		}
		if err := query.Emit(f, ctx); err != nil {
			return err
		}
	}

	ctx.WriteSQL(" FROM ")
	for i, n := range fromJoin {
		if i > 0 {
			ctx.WriteSQL(" ")
		}
		if err := query.Emit(n, ctx); err != nil {
			return err
		}
	}

	var qual, orderBy *query.Node
	for _, c := range root.Children() {
		switch c.Tag {
		case query.TagQual:
			qual = c
		case query.TagOrderBy:
			orderBy = c
		}
	}
	if qual != nil {
		ctx.WriteSQL(" WHERE ")
		if err := query.Emit(qual, ctx); err != nil {
			return err
		}
	}
	if orderBy != nil {
		ctx.WriteSQL(" ORDER BY ")
		if err := query.Emit(orderBy, ctx); err != nil {
			return err
		}
	}
	if sel.Limit > 0 {
		ctx.WriteSQL(fmt.Sprintf(" LIMIT %d", sel.Limit))
	}
	if sel.Offset > 0 {
		ctx.WriteSQL(fmt.Sprintf(" OFFSET %d", sel.Offset))
	}
	return nil
}
