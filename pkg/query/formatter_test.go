package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatterContextBindParamQuestionStyle(t *testing.T) {
	ctx := NewFormatterContext("griddb", PlaceholderQuestion)
	ctx.BindParam(int64(1))
	ctx.WriteSQL(", ")
	ctx.BindParam("two")
	require.Equal(t, "?, ?", ctx.String())
	require.Equal(t, []any{int64(1), "two"}, ctx.Params)
}

func TestFormatterContextBindParamDollarStyle(t *testing.T) {
	ctx := NewFormatterContext("postgres", PlaceholderDollar)
	ctx.BindParam("a")
	ctx.WriteSQL(", ")
	ctx.BindParam("b")
	require.Equal(t, "$1, $2", ctx.String())
}

func TestFormatterContextBindParamNamedStyle(t *testing.T) {
	ctx := NewFormatterContext("oracle", PlaceholderNamed)
	ctx.BindParam("a")
	require.Equal(t, ":p1", ctx.String())
}

func TestEmitFieldNode(t *testing.T) {
	ctx := NewFormatterContext("griddb", PlaceholderQuestion)
	require.NoError(t, Emit(NewFieldNode("accounts", "id", ""), ctx))
	require.Equal(t, "accounts.id", ctx.String())
}

func TestEmitQualComparison(t *testing.T) {
	ctx := NewFormatterContext("griddb", PlaceholderQuestion)
	qual := NewQualCompareNode(QualGe, NewFieldNode("", "balance", ""), NewLiteralNode(int64(100)))
	require.NoError(t, Emit(qual, ctx))
	require.Equal(t, "balance >= ?", ctx.String())
	require.Equal(t, []any{int64(100)}, ctx.Params)
}

func TestEmitQualBoolAnd(t *testing.T) {
	ctx := NewFormatterContext("griddb", PlaceholderQuestion)
	qual := NewQualBoolNode(QualAnd,
		NewQualCompareNode(QualGt, NewFieldNode("", "balance", ""), NewLiteralNode(int64(0))),
		NewQualCompareNode(QualEq, NewFieldNode("", "active", ""), NewLiteralNode(true)),
	)
	require.NoError(t, Emit(qual, ctx))
	require.Equal(t, "(balance > ? AND active = ?)", ctx.String())
}

func TestEmitInsertInto(t *testing.T) {
	ctx := NewFormatterContext("griddb", PlaceholderQuestion)
	n := NewInsertIntoNode("accounts", []string{"id", "name"}, [][]any{{int64(1), "alice"}, {int64(2), "bob"}})
	require.NoError(t, n.VT.Check(n))
	require.NoError(t, Emit(n, ctx))
	require.Equal(t, "accounts (id, name) VALUES (?, ?), (?, ?)", ctx.String())
	require.Equal(t, []any{int64(1), "alice", int64(2), "bob"}, ctx.Params)
}

func TestEmitInsertIntoColumnMismatchFailsCheck(t *testing.T) {
	n := NewInsertIntoNode("accounts", []string{"id"}, [][]any{{int64(1), "extra"}})
	require.Error(t, n.VT.Check(n))
}

func TestEmitOverrideTakesPrecedence(t *testing.T) {
	ctx := NewFormatterContext("oracle", PlaceholderQuestion)
	ctx.Overrides[TagField] = func(n *Node, ctx *FormatterContext) error {
		ctx.WriteSQL("OVERRIDDEN")
		return nil
	}
	require.NoError(t, Emit(NewFieldNode("t", "c", ""), ctx))
	require.Equal(t, "OVERRIDDEN", ctx.String())
}

func TestEmitJoinWithCondition(t *testing.T) {
	ctx := NewFormatterContext("griddb", PlaceholderQuestion)
	on := NewQualCompareNode(QualEq, NewFieldNode("a", "id", ""), NewFieldNode("b", "a_id", ""))
	join := NewJoinNode(JoinLeft, "b", "", on)
	require.NoError(t, Emit(join, ctx))
	require.Equal(t, "LEFT JOIN b ON a.id = b.a_id", ctx.String())
}
