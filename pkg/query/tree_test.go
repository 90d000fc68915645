package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildSelectTree() (*Node, *Node) {
	root := NewSelectNode(false, 10, 0)
	from := NewFromNode("accounts", "")
	field := NewFieldNode("accounts", "id", "")
	qual := NewQualCompareNode(QualGt, NewFieldNode("accounts", "balance", ""), NewLiteralNode(int64(100)))
	root.AppendRightChild(from)
	root.AppendRightChild(field)
	root.AppendRightChild(qual)
	return root, field
}

func TestCopySubtreeStructuralIndependence(t *testing.T) {
	root, field := buildSelectTree()
	cp, copyOf, err := CopySubtree(root, 0)
	require.NoError(t, err)
	require.NotSame(t, root, cp)

	cpField, ok := copyOf[field]
	require.True(t, ok)
	require.NotSame(t, field, cpField)
	require.Equal(t, field.Payload, cpField.Payload)

	// Mutating the copy's tree must not affect the original.
	cp.AppendRightChild(NewFieldNode("", "extra", ""))
	require.Len(t, root.Children(), 3)
	require.Len(t, cp.Children(), 4)
}

func TestCopySubtreeDeepCopiesPayloadWhenRequested(t *testing.T) {
	root, field := buildSelectTree()
	_, copyOf, err := CopySubtree(root, CopyDeep)
	require.NoError(t, err)

	cpField := copyOf[field]
	require.Equal(t, field.Payload, cpField.Payload)
}

type linkedOrderBy struct {
	Field *Node
	Desc  bool
}

func (l linkedOrderBy) Links() []*Node { return []*Node{l.Field} }
func (l linkedOrderBy) WithLinks(rewired []*Node) any {
	return linkedOrderBy{Field: rewired[0], Desc: l.Desc}
}

func TestCopySubtreeRewiresCrossLinks(t *testing.T) {
	root := NewSelectNode(false, 0, 0)
	field := NewFieldNode("t", "name", "")
	root.AppendRightChild(field)

	orderBy := NewNode(TagOrderBy, linkedOrderBy{Field: field})
	root.AppendRightChild(orderBy)

	cp, copyOf, err := CopySubtree(root, 0)
	require.NoError(t, err)

	cpOrderBy := copyOf[orderBy]
	payload := cp.LastChild.Payload.(linkedOrderBy)
	require.Same(t, payload.Field, copyOf[field])
	require.Same(t, cpOrderBy, cp.LastChild)
}

func TestCopySubtreeValidateRunsCheck(t *testing.T) {
	root := NewFromNode("", "") // missing table name fails Check.
	_, _, err := CopySubtree(root, CopyValidate)
	require.Error(t, err)
}

func TestCopySubtreeNilReturnsNil(t *testing.T) {
	cp, copyOf, err := CopySubtree(nil, 0)
	require.NoError(t, err)
	require.Nil(t, cp)
	require.Nil(t, copyOf)
}
