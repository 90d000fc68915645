package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableCatalogAddAndResolve(t *testing.T) {
	r := testRegistry(t)
	i64, _ := r.ByName("int64")

	td := NewTupleDef("accounts", false)
	_, err := td.AddField("id", Stack{i64})
	require.NoError(t, err)

	tc := NewTableCatalog()
	require.NoError(t, tc.AddTable(td))
	require.True(t, td.Published())

	got, ok := tc.Table("accounts")
	require.True(t, ok)
	require.Same(t, td, got)

	_, ok = tc.Table("missing")
	require.False(t, ok)
}

func TestTableCatalogRejectsDuplicateName(t *testing.T) {
	tc := NewTableCatalog()
	require.NoError(t, tc.AddTable(NewTupleDef("t", false)))
	err := tc.AddTable(NewTupleDef("t", false))
	require.Error(t, err)
}

func TestTableCatalogTablesListsAll(t *testing.T) {
	tc := NewTableCatalog()
	require.NoError(t, tc.AddTable(NewTupleDef("a", false)))
	require.NoError(t, tc.AddTable(NewTupleDef("b", false)))
	require.Len(t, tc.Tables(), 2)
}
