package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOperatorRegistryExactMatch(t *testing.T) {
	r := NewOperatorRegistry()
	i32 := &Type{Name: "int32", ID: 1}
	fn := func(lhs, rhs any) (any, error) { return lhs.(int32) + rhs.(int32), nil }
	r.Register(i32, "+", i32, fn)

	got, ok := r.Lookup(i32, "+", i32)
	require.True(t, ok)
	result, err := got(int32(2), int32(3))
	require.NoError(t, err)
	require.Equal(t, int32(5), result)
}

func TestOperatorRegistryCommutativeFallback(t *testing.T) {
	r := NewOperatorRegistry()
	str := &Type{Name: "string", ID: 1}
	i32 := &Type{Name: "int32", ID: 2}
	r.Register(str, "=", i32, func(lhs, rhs any) (any, error) { return false, nil })

	_, ok := r.Lookup(i32, "=", str)
	require.True(t, ok)
}

func TestOperatorRegistryNonCommutativeNoFallback(t *testing.T) {
	r := NewOperatorRegistry()
	a := &Type{Name: "a", ID: 1}
	b := &Type{Name: "b", ID: 2}
	r.Register(a, "<", b, func(lhs, rhs any) (any, error) { return true, nil })

	_, ok := r.Lookup(b, "<", a)
	require.False(t, ok)
}

func TestNormalizeCompareOp(t *testing.T) {
	cases := map[string]CompareOp{
		"<":  CompareLT,
		"<=": CompareLE,
		"=":  CompareEQ,
		"==": CompareEQ,
		"!=": CompareNE,
		"<>": CompareNE,
		">":  CompareGT,
		">=": CompareGE,
		"??": CompareUnknown,
	}
	for op, want := range cases {
		require.Equal(t, want, NormalizeCompareOp(op), "op=%s", op)
	}
}

func TestApplyCompare(t *testing.T) {
	cmp := func(lhs, rhs any) (int, error) {
		a, b := lhs.(int), rhs.(int)
		switch {
		case a < b:
			return -1, nil
		case a > b:
			return 1, nil
		default:
			return 0, nil
		}
	}

	ok, err := ApplyCompare(cmp, 1, 2, "<")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ApplyCompare(cmp, 2, 2, "=")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ApplyCompare(cmp, 3, 2, ">=")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = ApplyCompare(cmp, 1, 2, "~")
	require.Error(t, err)
}

func TestErrOperatorNotFoundMessage(t *testing.T) {
	e := &ErrOperatorNotFound{LHS: &Type{Name: "a", ID: 1}, RHS: &Type{Name: "b", ID: 2}, Op: "+"}
	require.Contains(t, e.Error(), "+")
	require.Contains(t, e.Error(), "a(#1)")
}
