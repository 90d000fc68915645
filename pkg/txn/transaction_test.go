package txn

import (
	"context"
	"testing"

	"github.com/cuemby/shardbridge/pkg/backend/memadapter"
	"github.com/cuemby/shardbridge/pkg/catalog"
	"github.com/cuemby/shardbridge/pkg/credential"
	"github.com/cuemby/shardbridge/pkg/heap"
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

// fixture wires a ConnectionCatalog against one memadapter shard and
// registers a single-shard beacon over it, enough for planner.Plan*
// functions to resolve "accounts" the same way the executor fixtures do.
type fixture struct {
	catalog *ConnectionCatalog
	tables  planner.TableResolver
	beacons planner.Beacons
	def     *catalog.TupleDef
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	def := accountsDef(t)
	catTable := catalog.NewTableCatalog()
	require.NoError(t, catTable.AddTable(def))

	s := &shard.Shard{ID: shard.NewID(), Driver: memadapter.Name, Address: "mem:0"}
	beacon := shard.NewSimpleBeacon(s)
	require.NoError(t, beacon.Connect())

	cc := NewConnectionCatalog(2)
	cc.RegisterDriver(memadapter.NewDriver())
	require.NoError(t, cc.RegisterShard(s, credential.Value{}, "mem"))

	return &fixture{
		catalog: cc,
		tables:  catTable,
		beacons: planner.Beacons{"accounts": beacon},
		def:     def,
	}
}

func newAccountTuple(t *testing.T, def *catalog.TupleDef, id int64, name string, balance int64) *heap.Tuple {
	t.Helper()
	tup, err := heap.NewTuple(heap.PackHTP(id, 0, 0), def, false)
	require.NoError(t, err)
	require.NoError(t, tup.SetField("id", id, false))
	require.NoError(t, tup.SetField("name", name, false))
	require.NoError(t, tup.SetField("balance", balance, false))
	return tup
}

func selectAllPlan(t *testing.T, f *fixture) *planner.Plan {
	t.Helper()
	sel := query.NewSelectNode(false, 0, 0)
	sel.AppendRightChild(query.NewFromNode("accounts", ""))
	sel.AppendRightChild(query.NewFieldNode("", "id", ""))
	sel.AppendRightChild(query.NewFieldNode("", "name", ""))
	sel.AppendRightChild(query.NewFieldNode("", "balance", ""))
	plan, err := planner.PlanSelect(sel, f.tables, f.beacons, planner.Opts{PlaceholderFmt: query.PlaceholderQuestion})
	require.NoError(t, err)
	return plan
}

func TestImmediateModeFlushesWriteOnSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txn := Begin(f.catalog, Immediate)

	tup := newAccountTuple(t, f.def, 1, "alice", 100)
	insertPlan, err := planner.PlanInsert("accounts", []*heap.Tuple{tup}, f.tables, f.beacons, planner.Opts{PlaceholderFmt: query.PlaceholderQuestion})
	require.NoError(t, err)

	_, err = txn.Submit(ctx, insertPlan, true)
	require.NoError(t, err)

	result, err := txn.Submit(ctx, selectAllPlan(t, f), false)
	require.NoError(t, err)
	require.Equal(t, 1, result.RowCount)

	commitResult, err := txn.Commit(ctx)
	require.NoError(t, err)
	require.Len(t, commitResult.Committed, 1)
	require.Empty(t, commitResult.Uncommitted)
}

func TestDeferredModeBuffersUntilCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txn := Begin(f.catalog, Deferred)

	tup := newAccountTuple(t, f.def, 1, "alice", 100)
	insertPlan, err := planner.PlanInsert("accounts", []*heap.Tuple{tup}, f.tables, f.beacons, planner.Opts{PlaceholderFmt: query.PlaceholderQuestion})
	require.NoError(t, err)

	result, err := txn.Submit(ctx, insertPlan, true)
	require.NoError(t, err)
	require.Nil(t, result)

	// Submitting the read flushes the attached write through first.
	readResult, err := txn.Submit(ctx, selectAllPlan(t, f), false)
	require.NoError(t, err)
	require.Equal(t, 1, readResult.RowCount)

	_, err = txn.Commit(ctx)
	require.NoError(t, err)
}

func TestRollbackDiscardsFlushedWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txn := Begin(f.catalog, Immediate)

	tup := newAccountTuple(t, f.def, 1, "alice", 100)
	insertPlan, err := planner.PlanInsert("accounts", []*heap.Tuple{tup}, f.tables, f.beacons, planner.Opts{PlaceholderFmt: query.PlaceholderQuestion})
	require.NoError(t, err)

	_, err = txn.Submit(ctx, insertPlan, true)
	require.NoError(t, err)

	require.NoError(t, txn.Rollback(ctx))

	// A fresh transaction against the same shard should see nothing
	// committed, proving Rollback actually issued ROLLBACK on the
	// connection the insert ran on.
	txn2 := Begin(f.catalog, Immediate)
	result, err := txn2.Submit(ctx, selectAllPlan(t, f), false)
	require.NoError(t, err)
	require.Equal(t, 0, result.RowCount)
	_, err = txn2.Commit(ctx)
	require.NoError(t, err)
}

func TestSavepointRollbackToDiscardsLaterWritesOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txn := Begin(f.catalog, Deferred)

	first := newAccountTuple(t, f.def, 1, "alice", 100)
	firstPlan, err := planner.PlanInsert("accounts", []*heap.Tuple{first}, f.tables, f.beacons, planner.Opts{PlaceholderFmt: query.PlaceholderQuestion})
	require.NoError(t, err)
	_, err = txn.Submit(ctx, firstPlan, true)
	require.NoError(t, err)

	firstSavepoint := txn.Current()
	_, err = txn.FlushThrough(ctx, firstSavepoint)
	require.NoError(t, err)

	sub := txn.Sub()
	second := newAccountTuple(t, f.def, 2, "bob", 50)
	secondPlan, err := planner.PlanInsert("accounts", []*heap.Tuple{second}, f.tables, f.beacons, planner.Opts{PlaceholderFmt: query.PlaceholderQuestion})
	require.NoError(t, err)
	_, err = sub.Submit(ctx, secondPlan, true)
	require.NoError(t, err)

	require.NoError(t, txn.RollbackTo(ctx, sub.Current()))

	result, err := txn.Submit(ctx, selectAllPlan(t, f), false)
	require.NoError(t, err)
	require.Equal(t, 1, result.RowCount)

	_, err = txn.Commit(ctx)
	require.NoError(t, err)
}

func TestCommitOnTopRequiredOnSubTransaction(t *testing.T) {
	f := newFixture(t)
	txn := Begin(f.catalog, Immediate)
	sub := txn.Sub()

	_, err := sub.Commit(context.Background())
	require.Error(t, err)

	err = sub.Rollback(context.Background())
	require.Error(t, err)
}

func TestConnectionCatalogRegisterShardRequiresDriver(t *testing.T) {
	cc := NewConnectionCatalog(1)
	s := &shard.Shard{ID: shard.NewID(), Driver: "unknown", Address: "mem:0"}
	err := cc.RegisterShard(s, credential.Value{}, "mem")
	require.Error(t, err)
}
