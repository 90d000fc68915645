package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterBuiltinsPublishesAllScalars(t *testing.T) {
	r := testRegistry(t)
	for _, name := range []string{"bool", "int32", "int64", "float64", "string"} {
		typ, ok := r.ByName(name)
		require.True(t, ok, "expected %s registered", name)
		require.NotZero(t, typ.ID)
	}
}

func TestRegisterBuiltinsRejectsDuplicateRegistry(t *testing.T) {
	r := testRegistry(t)
	err := RegisterBuiltins(r)
	require.Error(t, err)
}

func TestInt64BinaryRoundTrip(t *testing.T) {
	r := testRegistry(t)
	i64, _ := r.ByName("int64")

	target := make([]byte, 8)
	encoded, err := i64.AM.BinaryGet(nil, BinaryOptions{}, int64(-42), target, nil, nil)
	require.NoError(t, err)

	decoded, n, err := i64.AM.BinarySet(nil, BinaryOptions{}, encoded)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, int64(-42), decoded)
}

func TestFloat64BinaryRoundTrip(t *testing.T) {
	r := testRegistry(t)
	f64, _ := r.ByName("float64")

	encoded, err := f64.AM.BinaryGet(nil, BinaryOptions{}, 3.14159, nil, nil, nil)
	require.NoError(t, err)

	decoded, n, err := f64.AM.BinarySet(nil, BinaryOptions{}, encoded)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.InDelta(t, 3.14159, decoded.(float64), 1e-9)
}

func TestBoolTextRoundTrip(t *testing.T) {
	r := testRegistry(t)
	b, _ := r.ByName("bool")

	text, err := b.AM.TextGet(true, nil)
	require.NoError(t, err)
	require.Equal(t, "true", text)

	value, err := b.AM.TextSet(text, nil)
	require.NoError(t, err)
	require.Equal(t, true, value)
}

func TestStringBinaryGetUsesDecisionMatrix(t *testing.T) {
	r := testRegistry(t)
	s, _ := r.ByName("string")

	length, cursor := 3, 0
	got, err := s.AM.BinaryGet(nil, BinaryOptions{}, "hello world", nil, &length, &cursor)
	require.NoError(t, err)
	require.Equal(t, "hel", string(got))
	require.Equal(t, 3, cursor)
}

func TestStringTextSetWithFormatter(t *testing.T) {
	r := testRegistry(t)
	s, _ := r.ByName("string")

	value, err := s.AM.TextSet(`"quoted"`, LiteralFormatter)
	require.NoError(t, err)
	require.Equal(t, "quoted", value)
}

func TestInt32Compare(t *testing.T) {
	r := testRegistry(t)
	i32, _ := r.ByName("int32")

	n, err := i32.OM.Compare(int32(1), int32(2))
	require.NoError(t, err)
	require.Negative(t, n)
}
