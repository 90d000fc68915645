package query

import "fmt"

// CopyFlags controls CopySubtree's behavior.
type CopyFlags int

const (
	// CopyDeep calls each node's VT.Copy to duplicate its Payload rather
	// than sharing the original Payload value. Omit for a structural-only
	// copy (new Node objects, same Payload values) when callers know the
	// payloads are immutable for their purposes.
	CopyDeep CopyFlags = 1 << iota
	// CopyValidate runs VT.Check on every copied node once the whole
	// subtree (and its rewired cross-links) is in place.
	CopyValidate
)

// LinkedPayload is implemented by a tag payload that holds pointers to
// other Node values within the same tree (a cross-link, as opposed to a
// parent/child/sibling structural link) — for example an OrderBy whose
// sort key is the same *Node as a Select's projected Field. CopySubtree
// rewires these through the source→copy map it builds so a copied subtree
// never points back into the original tree (spec §4.G: "with a source→copy
// map so cross-links within the subtree are re-wired").
type LinkedPayload interface {
	Links() []*Node
	WithLinks(rewired []*Node) any
}

// CopySubtree duplicates the subtree rooted at n, returning the new root
// and the source→copy map used to rewire any LinkedPayload cross-links.
// Structural links (parent/children/siblings) are always rewired to point
// within the copy; the map lets a caller holding an external reference to
// a node in the original subtree look up its counterpart in the copy.
func CopySubtree(n *Node, flags CopyFlags) (*Node, map[*Node]*Node, error) {
	if n == nil {
		return nil, nil, nil
	}
	copyOf := make(map[*Node]*Node)
	root := copyStructure(n, nil, copyOf, flags)

	for orig, cp := range copyOf {
		linked, ok := orig.Payload.(LinkedPayload)
		if !ok {
			continue
		}
		rewired := make([]*Node, 0, len(linked.Links()))
		for _, l := range linked.Links() {
			if l == nil {
				rewired = append(rewired, nil)
				continue
			}
			target, ok := copyOf[l]
			if !ok {
				return nil, nil, fmt.Errorf("query: cross-link target is outside the copied subtree")
			}
			rewired = append(rewired, target)
		}
		cp.Payload = linked.WithLinks(rewired)
	}

	if flags&CopyValidate != 0 {
		err := root.VisitDepthFirst(func(node *Node) error {
			if node.VT.Check == nil {
				return nil
			}
			return node.VT.Check(node)
		}, nil)
		if err != nil {
			return nil, nil, err
		}
	}

	return root, copyOf, nil
}

func copyStructure(n *Node, parent *Node, copyOf map[*Node]*Node, flags CopyFlags) *Node {
	payload := n.Payload
	if flags&CopyDeep != 0 && n.VT.Copy != nil {
		payload = n.VT.Copy(n)
	}
	cp := &Node{Tag: n.Tag, Payload: payload, VT: n.VT, Parent: parent}
	copyOf[n] = cp

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		cp.AppendRightChild(copyStructure(c, cp, copyOf, flags))
	}
	return cp
}
