package htsvoice

import "github.com/example/jbonsai/internal/label"

// NodeRef points either to another internal node (by index into the same
// Tree's Nodes slice) or to a leaf PDF (by 0-based index into that tree's
// row of the Model's PDF table).
type NodeRef struct {
	IsLeaf bool
	Index  int
}

// Node is one decision-tree branch: test Question against a label, follow
// Yes or No accordingly. This is the flat-array arena spec.md §9 mandates
// in place of the reference's pointer-linked + id-patched representation:
// Go's tagged NodeRef plays the role the original's "leaf nodes appended
// after internal nodes, id table resolved" two-pass scheme played in C/Rust,
// without needing a shared index space for internal vs. leaf references.
type Node struct {
	Question *label.Question
	Yes      NodeRef
	No       NodeRef
}

// Tree is one decision tree for one HMM state, either of a DurationModel
// (scalar) or a StreamModel (vector PDF per leaf).
type Tree struct {
	State int
	Nodes []Node
}

// Search descends the tree for l, returning the selected leaf's PDF index.
// A tree with a single pre-resolved leaf (the "{*}[n] \"leaf\"" shorthand)
// has Nodes[0].Yes == Nodes[0].No pointing at that leaf.
func (t Tree) Search(l label.Label) (int, error) {
	if len(t.Nodes) == 0 {
		return 0, ErrUnresolvedNode
	}

	ref := NodeRef{Index: 0}

	for !ref.IsLeaf {
		node := t.Nodes[ref.Index]
		if node.Question == nil {
			// Shorthand single-leaf tree: Yes and No agree.
			ref = node.Yes
			continue
		}

		if node.Question.Match(l) {
			ref = node.Yes
		} else {
			ref = node.No
		}
	}

	return ref.Index, nil
}
