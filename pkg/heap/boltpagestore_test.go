package heap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBoltPageStoreSaveLoadRoundTrip(t *testing.T) {
	_, td := testDef(t)
	store, err := OpenBoltPageStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	tup, err := NewTuple(PackHTP(1, 0, 0), td, false)
	require.NoError(t, err)
	require.NoError(t, tup.SetField("id", int64(9), false))
	require.NoError(t, tup.SetField("name", "widget", false))

	require.NoError(t, store.SaveTuple(tup))

	loaded, err := store.LoadTuple(tup.Pointer, td)
	require.NoError(t, err)
	require.Equal(t, tup.FromBackend, loaded.FromBackend)

	v, notNull, err := loaded.FieldByName("id")
	require.NoError(t, err)
	require.True(t, notNull)
	require.Equal(t, float64(9), v) // round-tripped through JSON, numbers decode as float64.

	v, notNull, err = loaded.FieldByName("name")
	require.NoError(t, err)
	require.True(t, notNull)
	require.Equal(t, "widget", v)
}

func TestBoltPageStoreLoadMissingTupleFails(t *testing.T) {
	_, td := testDef(t)
	store, err := OpenBoltPageStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.LoadTuple(PackHTP(5, 0, 0), td)
	require.Error(t, err)
}

func TestBoltPageStoreDeleteTuple(t *testing.T) {
	_, td := testDef(t)
	store, err := OpenBoltPageStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	tup, err := NewTuple(PackHTP(2, 0, 0), td, false)
	require.NoError(t, err)
	require.NoError(t, store.SaveTuple(tup))
	require.NoError(t, store.DeleteTuple(tup.Pointer))

	_, err = store.LoadTuple(tup.Pointer, td)
	require.Error(t, err)
}
