package heap

import (
	"testing"

	"github.com/cuemby/shardbridge/pkg/catalog"
	"github.com/stretchr/testify/require"
)

func testDef(t *testing.T) (*catalog.Registry, *catalog.TupleDef) {
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
	td.Publish()
	return r, td
}

func TestNewTupleConstructsStringField(t *testing.T) {
	_, td := testDef(t)
	tup, err := NewTuple(PackHTP(1, 0, 0), td, false)
	require.NoError(t, err)

	v, notNull, err := tup.FieldByName("name")
	require.NoError(t, err)
	require.True(t, notNull)
	require.Equal(t, "", v)
}

func TestTupleSetAndGetField(t *testing.T) {
	_, td := testDef(t)
	tup, err := NewTuple(PackHTP(1, 0, 0), td, false)
	require.NoError(t, err)

	require.NoError(t, tup.SetField("id", int64(42), false))
	v, notNull, err := tup.FieldByName("id")
	require.NoError(t, err)
	require.True(t, notNull)
	require.Equal(t, int64(42), v)
}

func TestTupleSetFieldNull(t *testing.T) {
	_, td := testDef(t)
	tup, err := NewTuple(PackHTP(1, 0, 0), td, false)
	require.NoError(t, err)

	require.NoError(t, tup.SetField("id", nil, true))
	isNull, err := tup.IsNull("id")
	require.NoError(t, err)
	require.True(t, isNull)

	v, notNull, err := tup.FieldByName("id")
	require.NoError(t, err)
	require.False(t, notNull)
	require.Nil(t, v)
}

func TestTupleFieldByOrdinalAndHeapField(t *testing.T) {
	_, td := testDef(t)
	tup, err := NewTuple(PackHTP(1, 0, 0), td, false)
	require.NoError(t, err)
	require.NoError(t, tup.SetField("id", int64(7), false))

	f, ok := td.Field("id")
	require.True(t, ok)

	v, notNull, err := tup.FieldByHeapField(f)
	require.NoError(t, err)
	require.True(t, notNull)
	require.Equal(t, int64(7), v)

	v, notNull, err = tup.FieldByOrdinal(f.NullOrd)
	require.NoError(t, err)
	require.True(t, notNull)
	require.Equal(t, int64(7), v)
}

func TestTupleImmutableCopyAndChanged(t *testing.T) {
	_, td := testDef(t)
	tup, err := NewTuple(PackHTP(1, 0, 0), td, false)
	require.NoError(t, err)
	require.NoError(t, tup.SetField("id", int64(1), false))
	require.NoError(t, tup.SetField("name", "alice", false))

	require.NoError(t, tup.ImmutableCopy())

	changed, err := tup.Changed()
	require.NoError(t, err)
	require.Empty(t, changed)

	require.NoError(t, tup.SetField("name", "bob", false))
	changed, err = tup.Changed()
	require.NoError(t, err)
	require.Len(t, changed, 1)
	require.Equal(t, "name", changed[0].Name)
}

func TestTupleChangedWithoutSnapshotReturnsAllFields(t *testing.T) {
	_, td := testDef(t)
	tup, err := NewTuple(PackHTP(1, 0, 0), td, false)
	require.NoError(t, err)

	changed, err := tup.Changed()
	require.NoError(t, err)
	require.Len(t, changed, len(td.Fields))
}

func TestTupleReleaseInvokesDestruct(t *testing.T) {
	destructed := []string{}
	strType := &catalog.Type{
		Name: "tracked-string",
		AM:   catalog.AccessMethods{MemCopy: func(v any, _ bool) (any, error) { return v, nil }},
		OM: catalog.OperatorMethods{
			Construct: func() (any, error) { return "", nil },
			Destruct: func(v any) error {
				destructed = append(destructed, v.(string))
				return nil
			},
		},
	}
	td := catalog.NewTupleDef("t", false)
	_, err := td.AddField("name", catalog.Stack{strType})
	require.NoError(t, err)
	td.Publish()

	tup, err := NewTuple(PackHTP(1, 0, 0), td, false)
	require.NoError(t, err)
	require.NoError(t, tup.SetField("name", "payload", false))

	require.NoError(t, tup.Release())
	require.Equal(t, []string{"payload"}, destructed)
}
