package value

import (
	"testing"

	"github.com/cuemby/shardbridge/pkg/catalog"
	"github.com/stretchr/testify/require"
)

func TestVarHeaderEncodesTerminator(t *testing.T) {
	r := testRegistry(t)
	i64, _ := r.ByName("int64")
	v := NewVar(catalog.Stack{i64}, int64(7))
	header := v.Header()
	require.Len(t, header, 1)
	require.Equal(t, i64.ID|catalog.TypeID(0x8000), header[0])
}

func TestVarArrayAppendAndGet(t *testing.T) {
	r := testRegistry(t)
	i32, _ := r.ByName("int32")
	arr := NewVarArray(catalog.Stack{i32}, 4)

	arr.Append(int32(1))
	arr.Append(int32(2))
	arr.AppendNull()
	require.Equal(t, 3, arr.Count())

	v, null, err := arr.Get(0)
	require.NoError(t, err)
	require.False(t, null)
	require.Equal(t, int32(1), v)

	_, null, err = arr.Get(2)
	require.NoError(t, err)
	require.True(t, null)
}

func TestVarArrayGetOutOfRange(t *testing.T) {
	r := testRegistry(t)
	i32, _ := r.ByName("int32")
	arr := NewVarArray(catalog.Stack{i32}, 1)
	_, _, err := arr.Get(0)
	require.ErrorIs(t, err, ErrVarArrayIndexRange)
}

func TestVarArraySetOverwrites(t *testing.T) {
	r := testRegistry(t)
	i32, _ := r.ByName("int32")
	arr := NewVarArray(catalog.Stack{i32}, 1)
	arr.Append(int32(1))
	require.NoError(t, arr.Set(0, int32(99)))
	v, null, err := arr.Get(0)
	require.NoError(t, err)
	require.False(t, null)
	require.Equal(t, int32(99), v)
}

func TestVarArrayToSliceIsDefensiveCopy(t *testing.T) {
	r := testRegistry(t)
	i32, _ := r.ByName("int32")
	arr := NewVarArray(catalog.Stack{i32}, 1)
	arr.Append(int32(5))

	out := arr.ToSlice()
	out[0] = int32(100)

	v, _, err := arr.Get(0)
	require.NoError(t, err)
	require.Equal(t, int32(5), v)
}
