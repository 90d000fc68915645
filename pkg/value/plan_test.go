package value

import (
	"testing"

	"github.com/cuemby/shardbridge/pkg/catalog"
	"github.com/stretchr/testify/require"
)

type fakeTuple struct {
	byName map[string]any
	nulls  map[string]bool
}

func (f *fakeTuple) FieldByName(name string) (any, bool, error) {
	if f.nulls[name] {
		return nil, false, nil
	}
	v, ok := f.byName[name]
	return v, ok, nil
}

func (f *fakeTuple) FieldByOrdinal(i int) (any, bool, error) {
	return nil, false, nil
}

func (f *fakeTuple) FieldByHeapField(hf *catalog.HeapField) (any, bool, error) {
	return f.FieldByName(hf.Name)
}

func TestBuildPlanComparison(t *testing.T) {
	r := testRegistry(t)
	i64, _ := r.ByName("int64")

	lhs := OperandSpec{Source: SourceValue, Literal: int64(5), Stack: catalog.Stack{i64}}
	rhs := OperandSpec{Source: SourceValue, Literal: int64(10), Stack: catalog.Stack{i64}}

	plan, err := BuildPlan(r, "<", lhs, rhs)
	require.NoError(t, err)

	result, isNull, err := plan.Execute(&ExecContext{})
	require.NoError(t, err)
	require.False(t, isNull)
	require.Equal(t, true, result)
}

func TestBuildPlanComparisonFromTupleField(t *testing.T) {
	r := testRegistry(t)
	i64, _ := r.ByName("int64")

	lhs := OperandSpec{Source: SourceTuplePointer, FieldIdent: FieldByName, FieldName: "balance", Stack: catalog.Stack{i64}}
	rhs := OperandSpec{Source: SourceValue, Literal: int64(100), Stack: catalog.Stack{i64}}

	plan, err := BuildPlan(r, ">=", lhs, rhs)
	require.NoError(t, err)

	tuple := &fakeTuple{byName: map[string]any{"balance": int64(150)}}
	result, isNull, err := plan.Execute(&ExecContext{Tuple: tuple})
	require.NoError(t, err)
	require.False(t, isNull)
	require.Equal(t, true, result)
}

func TestBuildPlanNullOperandShortCircuits(t *testing.T) {
	r := testRegistry(t)
	i64, _ := r.ByName("int64")

	lhs := OperandSpec{Source: SourceTuplePointer, FieldIdent: FieldByName, FieldName: "balance", Stack: catalog.Stack{i64}}
	rhs := OperandSpec{Source: SourceValue, Literal: int64(100), Stack: catalog.Stack{i64}}

	plan, err := BuildPlan(r, "=", lhs, rhs)
	require.NoError(t, err)

	tuple := &fakeTuple{nulls: map[string]bool{"balance": true}}
	result, isNull, err := plan.Execute(&ExecContext{Tuple: tuple})
	require.NoError(t, err)
	require.True(t, isNull)
	require.Nil(t, result)
}

func TestBuildPlanAssignmentFastPathsMemCopy(t *testing.T) {
	r := testRegistry(t)
	str, _ := r.ByName("string")

	lhs := OperandSpec{Source: SourceValue, Literal: "", Stack: catalog.Stack{str}}
	rhs := OperandSpec{Source: SourceValue, Literal: "copied", Stack: catalog.Stack{str}}

	plan, err := BuildPlan(r, "=", lhs, rhs)
	require.NoError(t, err)
	require.True(t, plan.IsAssign())

	result, isNull, err := plan.Execute(&ExecContext{})
	require.NoError(t, err)
	require.False(t, isNull)
	require.Equal(t, "copied", result)
}

func TestBuildPlanArithmeticWithoutRegisteredOperatorFails(t *testing.T) {
	r := testRegistry(t)
	i64, _ := r.ByName("int64")

	lhs := OperandSpec{Source: SourceValue, Literal: int64(0), Stack: catalog.Stack{i64}}
	rhs := OperandSpec{Source: SourceTextLiteral, Literal: "42", Stack: catalog.Stack{i64}}

	plan, err := BuildPlan(r, "+", lhs, rhs)
	require.Error(t, err) // no "+" registered for int64 x int64 in a bare registry.
	require.Nil(t, plan)
}

func TestBuildPlanArithmeticViaOperatorRegistry(t *testing.T) {
	r := testRegistry(t)
	i64, _ := r.ByName("int64")
	r.Operators().Register(i64, "+", i64, func(lhs, rhs any) (any, error) {
		return lhs.(int64) + rhs.(int64), nil
	})

	lhs := OperandSpec{Source: SourceValue, Literal: int64(2), Stack: catalog.Stack{i64}}
	rhs := OperandSpec{Source: SourceTextLiteral, Literal: "40", Stack: catalog.Stack{i64}}

	plan, err := BuildPlan(r, "+", lhs, rhs)
	require.NoError(t, err)

	result, isNull, err := plan.Execute(&ExecContext{})
	require.NoError(t, err)
	require.False(t, isNull)
	require.Equal(t, int64(42), result)
}

func TestBuildPlanMissingOperatorFails(t *testing.T) {
	r := testRegistry(t)
	i64, _ := r.ByName("int64")
	str, _ := r.ByName("string")

	lhs := OperandSpec{Source: SourceValue, Literal: int64(1), Stack: catalog.Stack{i64}}
	rhs := OperandSpec{Source: SourceValue, Literal: "x", Stack: catalog.Stack{str}}

	_, err := BuildPlan(r, "&", lhs, rhs)
	var notFound *catalog.ErrOperatorNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestBuildPlanFromSlotSource(t *testing.T) {
	r := testRegistry(t)
	i64, _ := r.ByName("int64")

	lhs := OperandSpec{Source: SourceSlot, Stack: catalog.Stack{i64}}
	rhs := OperandSpec{Source: SourceValue, Literal: int64(5), Stack: catalog.Stack{i64}}

	plan, err := BuildPlan(r, "==", lhs, rhs)
	require.NoError(t, err)

	slot := NewSlot(catalog.Stack{i64}, int64(5), false)
	result, isNull, err := plan.Execute(&ExecContext{Slot: &slot})
	require.NoError(t, err)
	require.False(t, isNull)
	require.Equal(t, true, result)
}

func TestBuildPlanSlotSourceMissingContextErrors(t *testing.T) {
	r := testRegistry(t)
	i64, _ := r.ByName("int64")

	lhs := OperandSpec{Source: SourceSlot, Stack: catalog.Stack{i64}}
	rhs := OperandSpec{Source: SourceValue, Literal: int64(5), Stack: catalog.Stack{i64}}

	plan, err := BuildPlan(r, "=", lhs, rhs)
	require.NoError(t, err)

	_, _, err = plan.Execute(&ExecContext{})
	require.Error(t, err)
}
