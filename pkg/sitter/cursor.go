package sitter

// TreeCursor walks the visible nodes of a tree. It cannot move above the node
// it was created from.
type TreeCursor struct {
	root  Node
	stack []Node
}

// CurrentNode returns the node the cursor is on.
func (c *TreeCursor) CurrentNode() Node { return c.stack[len(c.stack)-1] }

// CurrentFieldName returns the field of the current node in its parent.
func (c *TreeCursor) CurrentFieldName() string {
	if len(c.stack) == 1 {
		return ""
	}
	return c.CurrentNode().FieldName()
}

// Depth returns how far the cursor is below the node it started on.
func (c *TreeCursor) Depth() int { return len(c.stack) - 1 }

// GotoFirstChild moves to the first visible child.
func (c *TreeCursor) GotoFirstChild() bool {
	child := c.CurrentNode().Child(0)
	if child.IsNull() {
		return false
	}
	c.stack = append(c.stack, child)
	return true
}

// GotoNextSibling moves to the next visible sibling.
func (c *TreeCursor) GotoNextSibling() bool {
	if len(c.stack) == 1 {
		return false
	}
	next := c.CurrentNode().NextSibling()
	if next.IsNull() {
		return false
	}
	c.stack[len(c.stack)-1] = next
	return true
}

// GotoParent moves to the parent node.
func (c *TreeCursor) GotoParent() bool {
	if len(c.stack) == 1 {
		return false
	}
	c.stack = c.stack[:len(c.stack)-1]
	return true
}

// Reset moves the cursor to n and makes it the new root.
func (c *TreeCursor) Reset(n Node) {
	c.root = n
	c.stack = append(c.stack[:0], n)
}

// Visit calls fn for every node under the cursor in document order. Returning
// false from fn skips the node's children.
func (c *TreeCursor) Visit(fn func(n Node, depth int) bool) {
	start := len(c.stack)
	for {
		descend := fn(c.CurrentNode(), len(c.stack)-1)
		if descend && c.GotoFirstChild() {
			continue
		}
		for {
			if len(c.stack) <= start {
				return
			}
			if c.GotoNextSibling() {
				break
			}
			c.GotoParent()
		}
	}
}
