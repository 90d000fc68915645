package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBoltCatalogStoreSaveAndLoadTable(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenBoltCatalogStore(dir)
	require.NoError(t, err)
	defer store.Close()

	r := testRegistry(t)
	i64, _ := r.ByName("int64")
	str, _ := r.ByName("string")

	td := NewTupleDef("widgets", false)
	_, err = td.AddField("id", Stack{i64})
	require.NoError(t, err)
	_, err = td.AddField("name", Stack{str})
	require.NoError(t, err)
	require.NoError(t, td.SetPrimaryKey("id"))
	td.Publish()

	require.NoError(t, store.SaveTable(td))

	loaded, err := store.LoadTable("widgets", r)
	require.NoError(t, err)
	require.Equal(t, td.Name, loaded.Name)
	require.Len(t, loaded.Fields, 2)
	require.Equal(t, []string{"id"}, loaded.PrimaryKey)
	require.True(t, loaded.Published())
}

func TestBoltCatalogStoreLoadMissingTable(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenBoltCatalogStore(dir)
	require.NoError(t, err)
	defer store.Close()

	r := testRegistry(t)
	_, err = store.LoadTable("nope", r)
	require.Error(t, err)
}

func TestBoltCatalogStoreSaveTypeAndList(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenBoltCatalogStore(dir)
	require.NoError(t, err)
	defer store.Close()

	r := testRegistry(t)
	i64, _ := r.ByName("int64")
	require.NoError(t, store.SaveType(i64))

	names, err := store.ListTypeNames()
	require.NoError(t, err)
	require.Contains(t, names, "int64")
}
