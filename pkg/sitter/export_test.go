package sitter

// SubtreeOf exposes the subtree behind a node to external tests.
func SubtreeOf(n Node) *Subtree { return n.subtree }
