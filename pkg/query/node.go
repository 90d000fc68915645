package query

// VTable bundles a node's per-tag function pointers: copy, check, and
// emit-sql-fragment (spec §4.G: "Each node has a tag, virtual function
// table (copy, check, emit-sql-fragment)..."). Go has no vtables, so this
// is the direct idiomatic analogue — a struct of function values attached
// per Node, resolved by tag at construction time via NewNode.
type VTable struct {
	// Copy produces an independent copy of n's own Payload (not its
	// children — CopySubtree walks children separately).
	Copy func(n *Node) any
	// Check validates n's payload and immediate structural expectations
	// (e.g. a Qual comparison node must have exactly two children).
	Check func(n *Node) error
	// EmitSQL renders n (not its children, unless EmitSQL chooses to
	// recurse itself) as a SQL fragment into ctx.
	EmitSQL func(n *Node, ctx *FormatterContext) error
}

// Node is one node of a Query Node Tree: a tag, a tag-specific Payload, and
// parent/first-child/next-sibling/last-child links (spec §4.G). Trees are
// always owned by a single memscope.Scope by convention — the scope holds
// the tree's root and any auxiliary allocations an EmitSQL implementation
// makes, the same ownership rule pkg/heap's buffers follow.
type Node struct {
	Tag     Tag
	Payload any
	VT      VTable

	Parent      *Node
	FirstChild  *Node
	LastChild   *Node
	NextSibling *Node
	PrevSibling *Node
}

// NewNode constructs a Node of the given tag and payload, with an empty
// VTable — callers populate VT.EmitSQL/Check/Copy themselves, or use the
// New*Node constructors in defaults.go, which set VT for their tag.
func NewNode(tag Tag, payload any) *Node {
	return &Node{Tag: tag, Payload: payload}
}

// AppendRightChild appends child as the new last child of n.
func (n *Node) AppendRightChild(child *Node) {
	child.Parent = n
	child.NextSibling = nil
	child.PrevSibling = n.LastChild
	if n.LastChild != nil {
		n.LastChild.NextSibling = child
	} else {
		n.FirstChild = child
	}
	n.LastChild = child
}

// AppendLeftChild inserts child as the new first child of n.
func (n *Node) AppendLeftChild(child *Node) {
	child.Parent = n
	child.PrevSibling = nil
	child.NextSibling = n.FirstChild
	if n.FirstChild != nil {
		n.FirstChild.PrevSibling = child
	} else {
		n.LastChild = child
	}
	n.FirstChild = child
}

// Children returns n's children left to right, as a slice for callers that
// prefer range over manual sibling-link walking.
func (n *Node) Children() []*Node {
	var out []*Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// VisitDepthFirst walks the subtree rooted at n, calling pre before
// descending into a node's children and post after, matching spec §4.G's
// "visit_depth_first(pre, post)". Either hook may be nil. A non-nil error
// from either hook aborts the walk immediately.
func (n *Node) VisitDepthFirst(pre, post func(*Node) error) error {
	if n == nil {
		return nil
	}
	if pre != nil {
		if err := pre(n); err != nil {
			return err
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := c.VisitDepthFirst(pre, post); err != nil {
			return err
		}
	}
	if post != nil {
		if err := post(n); err != nil {
			return err
		}
	}
	return nil
}
