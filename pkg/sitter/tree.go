package sitter

import (
	"github.com/segmentio/fasthash/fnv1a"
)

// Tree is an immutable syntax tree. It is safe for concurrent use.
type Tree struct {
	root *Subtree
	lang *Language
}

// RootNode returns the root of the tree.
func (t *Tree) RootNode() Node {
	return Node{tree: t, subtree: t.root}
}

// Language returns the language the tree was parsed with.
func (t *Tree) Language() *Language { return t.lang }

// Walk returns a cursor positioned at the root.
func (t *Tree) Walk() *TreeCursor {
	return t.RootNode().Walk()
}

// Edit returns a copy of the tree adjusted for an edit of the source text.
// Subtrees that the edit touches are copied and marked as changed; all
// other subtrees are shared with the receiver, which is left unmodified.
// Pass the result to Parser.Parse to re-parse incrementally.
func (t *Tree) Edit(edit InputEdit) *Tree {
	e := editSpan{
		start:  Length{Bytes: edit.StartByte, Extent: edit.StartPoint},
		oldEnd: Length{Bytes: edit.OldEndByte, Extent: edit.OldEndPoint},
		newEnd: Length{Bytes: edit.NewEndByte, Extent: edit.NewEndPoint},
	}
	return &Tree{root: editSubtree(t.root, e), lang: t.lang}
}

// editSpan is an edit relative to the start of a subtree's padding.
type editSpan struct {
	start, oldEnd, newEnd Length
}

func (e editSpan) pureInsertion() bool { return e.start.Bytes == e.oldEnd.Bytes }

func editSubtree(t *Subtree, e editSpan) *Subtree {
	total := t.total()
	isNoop := e.pureInsertion() && e.newEnd.Bytes == e.start.Bytes
	if e.start.Bytes > total.Bytes+t.lookahead || (isNoop && e.start.Bytes == total.Bytes+t.lookahead) {
		return t
	}

	padding, size := t.padding, t.size
	switch {
	case e.oldEnd.Bytes <= padding.Bytes:
		// Entirely within the whitespace before the subtree.
		padding = lengthAdd(e.newEnd, lengthSub(padding, e.oldEnd))
	case e.start.Bytes < padding.Bytes:
		// Starts in the whitespace and extends into the subtree.
		size = lengthSaturatingSub(size, lengthSub(e.oldEnd, padding))
		padding = e.newEnd
	case e.start.Bytes < total.Bytes || (e.start.Bytes == total.Bytes && e.pureInsertion()):
		size = lengthAdd(lengthSub(e.newEnd, padding), lengthSaturatingSub(total, e.oldEnd))
	}

	n := t.clone()
	n.padding = padding
	n.size = size
	n.changed = true
	if len(t.children) == 0 {
		return n
	}

	n.children = append([]*Subtree(nil), t.children...)
	pure := e.pureInsertion()
	var left, right Length
	for i, child := range t.children {
		childSize := child.total()
		left = right
		right = lengthAdd(left, childSize)

		if right.Bytes+child.lookahead < e.start.Bytes {
			continue
		}
		if left.Bytes > e.oldEnd.Bytes || (left.Bytes == e.oldEnd.Bytes && childSize.Bytes > 0 && i > 0) {
			break
		}

		childEdit := editSpan{
			start:  lengthSaturatingSub(e.start, left),
			oldEnd: lengthSaturatingSub(e.oldEnd, left),
			newEnd: lengthSaturatingSub(e.newEnd, left),
		}

		// Inserted text belongs to the first child touching the edit; later
		// children only shrink.
		if right.Bytes > e.start.Bytes || (right.Bytes == e.start.Bytes && pure) {
			e.newEnd = e.start
			pure = false
		}

		n.children[i] = editSubtree(child, childEdit)
	}
	return n
}

// ChangedRanges compares an edited old tree with the tree produced by
// re-parsing it and returns the ranges whose syntactic structure differs.
func (t *Tree) ChangedRanges(other *Tree) []Range {
	a := t.leafSignatures()
	b := other.leafSignatures()

	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix].equal(b[prefix]) {
		prefix++
	}
	if prefix == len(a) && prefix == len(b) {
		return nil
	}
	suffix := 0
	for suffix < len(a)-prefix && suffix < len(b)-prefix && a[len(a)-1-suffix].equal(b[len(b)-1-suffix]) {
		suffix++
	}

	var r Range
	first := true
	extend := func(sigs []leafSignature) {
		for _, s := range sigs {
			if first || s.start < r.StartByte {
				r.StartByte, r.StartPoint = s.start, s.startPoint
			}
			if first || s.end > r.EndByte {
				r.EndByte, r.EndPoint = s.end, s.endPoint
			}
			first = false
		}
	}
	extend(a[prefix : len(a)-suffix])
	extend(b[prefix : len(b)-suffix])
	if first {
		return nil
	}
	return []Range{r}
}

// leafSignature identifies a token together with the chain of visible
// nodes above it.
type leafSignature struct {
	symbol     Symbol
	ancestors  uint64
	start, end uint32
	startPoint Point
	endPoint   Point
}

func (s leafSignature) equal(o leafSignature) bool {
	return s.symbol == o.symbol && s.ancestors == o.ancestors && s.start == o.start && s.end == o.end
}

func (t *Tree) leafSignatures() []leafSignature {
	var out []leafSignature
	var walk func(st *Subtree, pos Length, h uint64)
	walk = func(st *Subtree, pos Length, h uint64) {
		if st.isVisible(t.lang) {
			h = fnv1a.AddUint64(h, uint64(st.symbol))
		}
		if st.terminal {
			start := lengthAdd(pos, st.padding)
			end := lengthAdd(start, st.size)
			out = append(out, leafSignature{
				symbol:     st.symbol,
				ancestors:  h,
				start:      start.Bytes,
				end:        end.Bytes,
				startPoint: start.Extent,
				endPoint:   end.Extent,
			})
			return
		}
		for _, c := range st.children {
			walk(c, pos, h)
			pos = lengthAdd(pos, c.total())
		}
	}
	walk(t.root, Length{}, fnv1a.Init64)
	return out
}
