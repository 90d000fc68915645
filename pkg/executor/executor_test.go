package executor

import (
	"context"
	"testing"

	"github.com/cuemby/shardbridge/pkg/backend"
	"github.com/cuemby/shardbridge/pkg/backend/memadapter"
	"github.com/cuemby/shardbridge/pkg/catalog"
	"github.com/cuemby/shardbridge/pkg/heap"
	"github.com/cuemby/shardbridge/pkg/memscope"
	"github.com/cuemby/shardbridge/pkg/planner"
	"github.com/cuemby/shardbridge/pkg/query"
	"github.com/cuemby/shardbridge/pkg/shard"
	"github.com/stretchr/testify/require"
)

func accountsDef(t *testing.T) *catalog.TupleDef {
	t.Helper()
	r := catalog.NewRegistry()
	require.NoError(t, catalog.RegisterBuiltins(r))
	i64, _ := r.ByName("int64")
	str, _ := r.ByName("string")

	td := catalog.NewTupleDef("accounts", false)
	_, err := td.AddField("id", catalog.Stack{i64})
	require.NoError(t, err)
	_, err = td.AddField("name", catalog.Stack{str})
	require.NoError(t, err)
	_, err = td.AddField("balance", catalog.Stack{i64})
	require.NoError(t, err)
	require.NoError(t, td.SetPrimaryKey("id"))
	td.Publish()
	return td
}

// singleConn is a ConnProvider that always returns the same connection,
// ignoring which shard a step's Binding.Access names — enough for tests
// that only ever plan against one shard.
type singleConn struct {
	conn backend.Connection
}

func (s singleConn) Acquire(ctx context.Context, access *shard.ShardAccess) (backend.Connection, error) {
	return s.conn, nil
}

func newFixture(t *testing.T) (*Executor, *singleConn, planner.TableResolver, planner.Beacons) {
	t.Helper()
	def := accountsDef(t)
	catTable := catalog.NewTableCatalog()
	require.NoError(t, catTable.AddTable(def))

	beacon := shard.NewSimpleBeacon(&shard.Shard{ID: shard.NewID(), Driver: memadapter.Name, Address: "mem:0"})
	require.NoError(t, beacon.Connect())

	driver := memadapter.NewDriver()
	conn, err := driver.CreateConnection()
	require.NoError(t, err)

	ex := New(heap.NewBufferTable())
	return ex, &singleConn{conn: conn}, catTable, planner.Beacons{"accounts": beacon}
}

func TestExecutorRunsInsertThenSelect(t *testing.T) {
	ex, conns, tables, beacons := newFixture(t)
	def := accountsDef(t)
	ctx := context.Background()
	work := memscope.New("test")

	tup, err := heap.NewTuple(heap.PackHTP(1, 0, 0), def, false)
	require.NoError(t, err)
	require.NoError(t, tup.SetField("id", int64(1), false))
	require.NoError(t, tup.SetField("name", "alice", false))
	require.NoError(t, tup.SetField("balance", int64(100), false))

	insertPlan, err := planner.PlanInsert("accounts", []*heap.Tuple{tup}, tables, beacons, planner.Opts{PlaceholderFmt: query.PlaceholderQuestion})
	require.NoError(t, err)
	_, err = ex.Run(ctx, insertPlan, conns, work)
	require.NoError(t, err)

	sel := query.NewSelectNode(false, 0, 0)
	sel.AppendRightChild(query.NewFromNode("accounts", ""))
	sel.AppendRightChild(query.NewFieldNode("", "id", ""))
	sel.AppendRightChild(query.NewFieldNode("", "name", ""))
	sel.AppendRightChild(query.NewFieldNode("", "balance", ""))

	selPlan, err := planner.PlanSelect(sel, tables, beacons, planner.Opts{PlaceholderFmt: query.PlaceholderQuestion})
	require.NoError(t, err)

	result, err := ex.Run(ctx, selPlan, conns, work)
	require.NoError(t, err)
	require.Equal(t, 1, result.RowCount)
	require.Len(t, result.Rows, 1)

	nameVal, present, err := result.Row(0).FieldByName("name")
	require.NoError(t, err)
	require.True(t, present)
	require.Equal(t, "alice", nameVal)
}

func TestExecutorUpdateReturningAppliesOntoOriginalTuple(t *testing.T) {
	ex, conns, tables, beacons := newFixture(t)
	def := accountsDef(t)
	ctx := context.Background()
	work := memscope.New("test")

	tup, err := heap.NewTuple(heap.PackHTP(1, 0, 0), def, false)
	require.NoError(t, err)
	require.NoError(t, tup.SetField("id", int64(1), false))
	require.NoError(t, tup.SetField("name", "alice", false))
	require.NoError(t, tup.SetField("balance", int64(100), false))

	insertPlan, err := planner.PlanInsert("accounts", []*heap.Tuple{tup}, tables, beacons, planner.Opts{PlaceholderFmt: query.PlaceholderQuestion})
	require.NoError(t, err)
	_, err = ex.Run(ctx, insertPlan, conns, work)
	require.NoError(t, err)

	updated, err := heap.NewTuple(heap.PackHTP(1, 0, 0), def, true)
	require.NoError(t, err)
	require.NoError(t, updated.SetField("id", int64(1), false))
	require.NoError(t, updated.SetField("name", "alice", false))
	require.NoError(t, updated.SetField("balance", int64(250), false))

	updatePlan, err := planner.PlanUpdate("accounts", []*heap.Tuple{updated},
		[]*query.Node{query.NewUpdateFieldNode("balance", int64(250))},
		[]string{"balance"}, tables, beacons, planner.Opts{PlaceholderFmt: query.PlaceholderQuestion})
	require.NoError(t, err)

	result, err := ex.Run(ctx, updatePlan, conns, work)
	require.NoError(t, err)
	require.Equal(t, 1, result.RowCount)

	balance, present, err := updated.FieldByName("balance")
	require.NoError(t, err)
	require.True(t, present)
	require.EqualValues(t, 250, balance)
}
