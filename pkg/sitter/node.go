package sitter

import (
	"strconv"
	"strings"
)

// Node is a view of a subtree at a position in a tree. Hidden nodes never
// appear as Nodes; their children are presented as children of the nearest
// visible ancestor.
type Node struct {
	tree    *Tree
	subtree *Subtree
	pos     Length // absolute start, padding included
	parent  *Node
	field   FieldID
}

// IsNull reports whether n is the zero Node.
func (n Node) IsNull() bool { return n.subtree == nil }

func (n Node) lang() *Language { return n.tree.lang }

// Symbol returns the node's grammar symbol.
func (n Node) Symbol() Symbol { return n.subtree.symbol }

// Type returns the node's type name.
func (n Node) Type() string { return n.lang().SymbolName(n.subtree.symbol) }

// IsNamed reports whether the node is named (as opposed to an anonymous
// literal token).
func (n Node) IsNamed() bool { return n.subtree.isNamed(n.lang()) }

// IsMissing reports whether the node was inserted by error recovery.
func (n Node) IsMissing() bool { return n.subtree.missing }

// IsExtra reports whether the node is an extra such as a comment.
func (n Node) IsExtra() bool { return n.subtree.extra }

// IsError reports whether the node is an ERROR node.
func (n Node) IsError() bool { return n.subtree.symbol == SymbolError }

// HasError reports whether the node is or contains an ERROR or MISSING node.
func (n Node) HasError() bool { return n.subtree.hasError || n.subtree.missing }

// HasChanges reports whether the node was touched by Tree.Edit.
func (n Node) HasChanges() bool { return n.subtree.changed }

func (n Node) start() Length { return lengthAdd(n.pos, n.subtree.padding) }

func (n Node) end() Length { return lengthAdd(n.start(), n.subtree.size) }

// StartByte returns the byte offset where the node starts.
func (n Node) StartByte() uint32 { return n.start().Bytes }

// EndByte returns the byte offset where the node ends.
func (n Node) EndByte() uint32 { return n.end().Bytes }

// StartPoint returns the row/column where the node starts.
func (n Node) StartPoint() Point { return n.start().Extent }

// EndPoint returns the row/column where the node ends.
func (n Node) EndPoint() Point { return n.end().Extent }

// Range returns the node's span.
func (n Node) Range() Range {
	s, e := n.start(), n.end()
	return Range{StartPoint: s.Extent, EndPoint: e.Extent, StartByte: s.Bytes, EndByte: e.Bytes}
}

// Content returns the source text the node spans.
func (n Node) Content(src []byte) string {
	s, e := int(n.StartByte()), int(n.EndByte())
	if e > len(src) || s > e {
		return ""
	}
	return string(src[s:e])
}

// Parent returns the node's parent, or a null node for the root.
func (n Node) Parent() Node {
	if n.parent == nil {
		return Node{}
	}
	return *n.parent
}

// eachChild visits the visible children of n, flattening hidden nodes.
// Fields of hidden nodes are inherited by their visible children.
func (n Node) eachChild(fn func(c Node) bool) {
	self := n
	var walk func(t *Subtree, pos Length, inherited FieldID) bool
	walk = func(t *Subtree, pos Length, inherited FieldID) bool {
		var fields []FieldMapEntry
		if t.symbol != SymbolError && len(t.children) > 0 {
			fields = n.lang().productions[t.production].Fields
		}
		structural := 0
		for _, c := range t.children {
			field := inherited
			if !c.extra {
				for _, f := range fields {
					if int(f.ChildIndex) == structural {
						field = f.Field
						break
					}
				}
				structural++
			}
			switch {
			case c.isVisible(n.lang()):
				if !fn(Node{tree: n.tree, subtree: c, pos: pos, parent: &self, field: field}) {
					return false
				}
			case !c.terminal:
				if !walk(c, pos, field) {
					return false
				}
			}
			pos = lengthAdd(pos, c.total())
		}
		return true
	}
	walk(n.subtree, n.pos, 0)
}

// ChildCount returns the number of visible children.
func (n Node) ChildCount() uint32 { return uint32(n.subtree.visibleChildCount) }

// NamedChildCount returns the number of named visible children.
func (n Node) NamedChildCount() uint32 { return uint32(n.subtree.namedChildCount) }

// Child returns the i-th visible child, or a null node.
func (n Node) Child(i int) Node {
	var out Node
	k := 0
	n.eachChild(func(c Node) bool {
		if k == i {
			out = c
			return false
		}
		k++
		return true
	})
	return out
}

// NamedChild returns the i-th named child, or a null node.
func (n Node) NamedChild(i int) Node {
	var out Node
	k := 0
	n.eachChild(func(c Node) bool {
		if !c.IsNamed() {
			return true
		}
		if k == i {
			out = c
			return false
		}
		k++
		return true
	})
	return out
}

// Children returns all visible children.
func (n Node) Children() []Node {
	out := make([]Node, 0, n.ChildCount())
	n.eachChild(func(c Node) bool {
		out = append(out, c)
		return true
	})
	return out
}

// NamedChildren returns the named visible children.
func (n Node) NamedChildren() []Node {
	out := make([]Node, 0, n.NamedChildCount())
	n.eachChild(func(c Node) bool {
		if c.IsNamed() {
			out = append(out, c)
		}
		return true
	})
	return out
}

// ChildByFieldName returns the first child with the given field, or a null
// node.
func (n Node) ChildByFieldName(name string) Node {
	id := n.lang().FieldIDForName(name)
	if id == 0 {
		return Node{}
	}
	var out Node
	n.eachChild(func(c Node) bool {
		if c.field == id {
			out = c
			return false
		}
		return true
	})
	return out
}

// FieldName returns the field under which n appears in its parent.
func (n Node) FieldName() string { return n.lang().FieldNameForID(n.field) }

// FieldNameForChild returns the field name of the i-th visible child.
func (n Node) FieldNameForChild(i int) string {
	c := n.Child(i)
	if c.IsNull() {
		return ""
	}
	return c.FieldName()
}

// sameAs reports whether n and o view the same subtree at the same position.
func (n Node) sameAs(o Node) bool {
	return n.subtree == o.subtree && n.pos.Bytes == o.pos.Bytes
}

// NextSibling returns the next visible sibling, or a null node.
func (n Node) NextSibling() Node {
	if n.parent == nil {
		return Node{}
	}
	var out Node
	found := false
	n.parent.eachChild(func(c Node) bool {
		if found {
			out = c
			return false
		}
		found = c.sameAs(n)
		return true
	})
	return out
}

// PrevSibling returns the previous visible sibling, or a null node.
func (n Node) PrevSibling() Node {
	if n.parent == nil {
		return Node{}
	}
	var prev Node
	var out Node
	n.parent.eachChild(func(c Node) bool {
		if c.sameAs(n) {
			out = prev
			return false
		}
		prev = c
		return true
	})
	return out
}

// DescendantForByteRange returns the smallest node spanning [start, end].
func (n Node) DescendantForByteRange(start, end uint32) Node {
	return n.descendantFor(func(c Node) bool {
		return c.StartByte() <= start && end <= c.EndByte()
	}, false)
}

// NamedDescendantForByteRange returns the smallest named node spanning
// [start, end].
func (n Node) NamedDescendantForByteRange(start, end uint32) Node {
	return n.descendantFor(func(c Node) bool {
		return c.StartByte() <= start && end <= c.EndByte()
	}, true)
}

// DescendantForPointRange returns the smallest node spanning [start, end].
func (n Node) DescendantForPointRange(start, end Point) Node {
	return n.descendantFor(func(c Node) bool {
		return !start.Less(c.StartPoint()) && !c.EndPoint().Less(end)
	}, false)
}

func (n Node) descendantFor(contains func(Node) bool, named bool) Node {
	best := n
	cur := n
	for {
		// Prefer a non-empty child; zero-width MISSING nodes only as fallback.
		var next Node
		cur.eachChild(func(c Node) bool {
			if !contains(c) {
				return true
			}
			if c.EndByte() > c.StartByte() {
				next = c
				return false
			}
			if next.IsNull() {
				next = c
			}
			return true
		})
		if next.IsNull() {
			return best
		}
		cur = next
		if !named || cur.IsNamed() {
			best = cur
		}
	}
}

// String renders the node as an S-expression of its named descendants.
func (n Node) String() string {
	if n.IsNull() {
		return ""
	}
	var b strings.Builder
	n.writeSexp(&b)
	return b.String()
}

func (n Node) writeSexp(b *strings.Builder) {
	if n.IsMissing() {
		b.WriteString("(MISSING ")
		if n.IsNamed() {
			b.WriteString(n.Type())
		} else {
			b.WriteString(strconv.Quote(n.Type()))
		}
		b.WriteByte(')')
		return
	}
	b.WriteByte('(')
	b.WriteString(n.Type())
	n.eachChild(func(c Node) bool {
		if !c.IsNamed() && !c.IsMissing() {
			return true
		}
		b.WriteByte(' ')
		if f := c.FieldName(); f != "" {
			b.WriteString(f)
			b.WriteString(": ")
		}
		c.writeSexp(b)
		return true
	})
	b.WriteByte(')')
}

// Walk returns a cursor positioned at n.
func (n Node) Walk() *TreeCursor {
	return &TreeCursor{root: n, stack: []Node{n}}
}
