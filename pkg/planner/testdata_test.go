package planner

import (
	"testing"

	"github.com/cuemby/shardbridge/pkg/catalog"
	"github.com/cuemby/shardbridge/pkg/heap"
	"github.com/cuemby/shardbridge/pkg/shard"
	"github.com/stretchr/testify/require"
)

func accountsTable(t *testing.T) *catalog.TupleDef {
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

func tableCatalogWith(tds ...*catalog.TupleDef) TableResolver {
	c := catalog.NewTableCatalog()
	for _, td := range tds {
		if err := c.AddTable(td); err != nil {
			panic(err)
		}
	}
	return c
}

func newTuple(t *testing.T, td *catalog.TupleDef, ptr heap.HTP, id int64, name string, balance int64) *heap.Tuple {
	t.Helper()
	tup, err := heap.NewTuple(ptr, td, false)
	require.NoError(t, err)
	require.NoError(t, tup.SetField("id", id, false))
	require.NoError(t, tup.SetField("name", name, false))
	require.NoError(t, tup.SetField("balance", balance, false))
	return tup
}

func fixedBeacon(driver string) shard.Beacon {
	b := shard.NewSimpleBeacon(&shard.Shard{ID: shard.NewID(), Driver: driver, Address: "10.0.0.1:1"})
	_ = b.Connect()
	return b
}
