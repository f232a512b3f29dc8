package sitter

// reuseCursor walks an old tree in document order, offering subtrees that
// start at the parser's current position.
type reuseCursor struct {
	stack []reuseEntry // top is the next subtree in document order
}

type reuseEntry struct {
	tree  *Subtree
	start uint32 // absolute start, padding included
}

func newReuseCursor(root *Subtree) *reuseCursor {
	c := &reuseCursor{}
	// The root is never reused as a whole: it owns the end-of-input leaf.
	c.pushChildren(root, 0)
	return c
}

func (c *reuseCursor) pushChildren(t *Subtree, start uint32) {
	starts := make([]uint32, len(t.children))
	for i, child := range t.children {
		starts[i] = start
		start += child.total().Bytes
	}
	for i := len(t.children) - 1; i >= 0; i-- {
		c.stack = append(c.stack, reuseEntry{tree: t.children[i], start: starts[i]})
	}
}

// candidate returns the largest remaining subtree starting exactly at pos.
func (c *reuseCursor) candidate(pos uint32) *Subtree {
	for len(c.stack) > 0 {
		top := c.stack[len(c.stack)-1]
		end := top.start + top.tree.total().Bytes
		switch {
		case end <= pos:
			c.pop()
		case top.start > pos:
			return nil
		case top.start == pos:
			return top.tree
		case top.tree.symbol == SymbolError:
			c.pop()
		default:
			c.descend()
		}
	}
	return nil
}

func (c *reuseCursor) pop() {
	c.stack = c.stack[:len(c.stack)-1]
}

// beforeError reports whether the subtree after the top one in document
// order contains an error. The reductions that closed the top subtree were
// made with an erroneous lookahead then.
func (c *reuseCursor) beforeError() bool {
	if len(c.stack) < 2 {
		return false
	}
	next := c.stack[len(c.stack)-2].tree
	return next.hasError || next.symbol == SymbolError
}

// descend replaces the top subtree by its children.
func (c *reuseCursor) descend() {
	top := c.stack[len(c.stack)-1]
	c.pop()
	c.pushChildren(top.tree, top.start)
}

func reusable(t *Subtree) bool {
	return !t.changed && !t.hasError && !t.missing && t.symbol != SymbolEnd && t.symbol != SymbolError && t.total().Bytes > 0
}

// tryReuse offers the parser a subtree from the old tree at the current
// position. It reports whether the parse advanced; otherwise the caller lexes
// a fresh token. mode is the lexer mode at the current token boundary.
func (r *parseRun) tryReuse(mode int) bool {
	for {
		cand := r.reuse.candidate(r.pos.Bytes)
		if cand == nil {
			return false
		}
		if cand.symbol == SymbolError {
			// Tokens inside an ERROR node were lexed and grouped by error
			// recovery; re-lex them.
			r.reuse.pop()
			continue
		}
		if !reusable(cand) || r.reuse.beforeError() || int(r.pos.Bytes+cand.total().Bytes) > len(r.src) {
			if cand.terminal {
				return false
			}
			r.reuse.descend()
			continue
		}

		leaf := cand.firstLeaf()
		if int(leaf.lexMode) != mode {
			if cand.terminal {
				return false
			}
			r.reuse.descend()
			continue
		}

		if cand.terminal {
			// A reused leaf is exactly the token the lexer would produce.
			la := cand
			if la.extra {
				la = la.clone()
				la.extra = false
			}
			r.la = la
			r.reuse.pop()
			r.noteReuse(cand)
			return true
		}

		// Run the reductions the subtree's first token triggers, then check
		// that the parser is where it was when the subtree was built.
		if !r.reduceBefore(leaf) || r.top() != cand.preState || cand.extra {
			r.reuse.descend()
			continue
		}
		next, ok := r.lang.goTo(cand.preState, cand.symbol)
		if !ok {
			r.reuse.descend()
			continue
		}
		r.push(next, cand)
		r.nextMode = r.modeAfter(cand)
		r.reuse.pop()
		r.noteReuse(cand)
		return true
	}
}

// modeAfter returns the lex mode of the token following t: the mode of the
// state its last leaf was shifted into, as a fresh parse would use.
func (r *parseRun) modeAfter(t *Subtree) int {
	leaf := t.lastLeaf()
	if leaf.extra {
		return r.lang.lexMode(leaf.preState)
	}
	if act := r.lang.action(leaf.preState, leaf.symbol); act.Type == ActionShift {
		return r.lang.lexMode(act.State)
	}
	return -1
}

// reduceBefore performs the reductions leaf triggers as a lookahead and
// reports whether leaf would then be shifted.
func (r *parseRun) reduceBefore(leaf *Subtree) bool {
	for step := 0; step < maxSimulatedSteps; step++ {
		act := r.lang.action(r.top(), leaf.symbol)
		switch act.Type {
		case ActionShift:
			return true
		case ActionReduce:
			r.reduce(act.Production, r.lookaheadEnd(leaf))
		default:
			return false
		}
	}
	return false
}

func (r *parseRun) noteReuse(t *Subtree) {
	r.p.stats.ReusedNodes++
	r.p.stats.ReusedBytes += t.total().Bytes
	if log := r.p.logger; log.IsTrace() {
		log.Trace("reuse", "symbol", r.lang.SymbolName(t.symbol), "start", r.pos.Bytes, "bytes", t.total().Bytes)
	}
}
