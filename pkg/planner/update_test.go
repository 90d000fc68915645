package planner

import (
	"testing"

	"github.com/cuemby/shardbridge/pkg/heap"
	"github.com/cuemby/shardbridge/pkg/query"
	"github.com/stretchr/testify/require"
)

func TestPlanUpdateExplicitFieldsAppliesToEveryTuple(t *testing.T) {
	td := accountsTable(t)
	tables := tableCatalogWith(td)
	beacons := Beacons{"accounts": fixedBeacon("griddb")}

	tup := newTuple(t, td, heap.PackHTP(1, 0, 1), 1, "alice", 100)
	setNodes := []*query.Node{query.NewUpdateFieldNode("balance", int64(500))}

	plan, err := PlanUpdate("accounts", []*heap.Tuple{tup}, setNodes, nil, tables, beacons,
		Opts{PlaceholderFmt: query.PlaceholderQuestion})
	require.NoError(t, err)
	require.Equal(t, StepUpdate, plan.Root.Kind)
	require.Equal(t, "UPDATE accounts SET balance = ? WHERE id = ?", plan.Root.Binding.SQL)
	require.Equal(t, []any{int64(500), int64(1)}, plan.Root.Binding.Params)
}

func TestPlanUpdateDiffsChangedFieldsWhenNoExplicitList(t *testing.T) {
	td := accountsTable(t)
	tables := tableCatalogWith(td)
	beacons := Beacons{"accounts": fixedBeacon("griddb")}

	tup := newTuple(t, td, heap.PackHTP(1, 0, 1), 1, "alice", 100)
	require.NoError(t, tup.ImmutableCopy())
	require.NoError(t, tup.SetField("name", "alice2", false))

	plan, err := PlanUpdate("accounts", []*heap.Tuple{tup}, nil, []string{"name"}, tables, beacons,
		Opts{PlaceholderFmt: query.PlaceholderQuestion})
	require.NoError(t, err)
	require.Equal(t, "UPDATE accounts SET name = ? WHERE id = ? RETURNING name", plan.Root.Binding.SQL)
	require.Equal(t, []any{"alice2", int64(1)}, plan.Root.Binding.Params)
}

func TestPlanUpdateFailsWhenNothingChanged(t *testing.T) {
	td := accountsTable(t)
	tables := tableCatalogWith(td)
	beacons := Beacons{"accounts": fixedBeacon("griddb")}

	tup := newTuple(t, td, heap.PackHTP(1, 0, 1), 1, "alice", 100)
	require.NoError(t, tup.ImmutableCopy())

	_, err := PlanUpdate("accounts", []*heap.Tuple{tup}, nil, nil, tables, beacons, Opts{})
	require.Error(t, err)
}
