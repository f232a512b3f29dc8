package sitter

// maxSimulatedSteps bounds the reductions simulated for a recovery.
const maxSimulatedSteps = 1000

// recover handles a lookahead with no action in the current state. It
// returns the finished root when the input cannot be recovered any further.
//
// Strategies, cheapest first:
//  1. insert a zero-width MISSING token that lets the lookahead be consumed;
//  2. unwind the stack to a state that can consume the lookahead, wrapping
//     what was popped in an ERROR node;
//  3. skip the lookahead into an ERROR node.
func (r *parseRun) recover() *Subtree {
	la := r.la
	log := r.p.logger

	if la.symbol != SymbolError {
		if r.insertMissing() {
			return nil
		}
		if r.unwind() {
			return nil
		}
	}

	if la.symbol == SymbolEnd {
		return r.finishWithError()
	}

	if log.IsTrace() {
		log.Trace("recover", "strategy", "skip", "symbol", r.lang.SymbolName(la.symbol), "start", r.pos.Bytes+la.padding.Bytes)
	}
	r.skip(la)
	r.la = nil
	return nil
}

// states returns the parse states of the non-extra stack entries up to n.
func (r *parseRun) states(n int) []StateID {
	out := make([]StateID, 0, n)
	for i, e := range r.stack[:n] {
		if i == 0 || !e.tree.extra {
			out = append(out, e.state)
		}
	}
	return out
}

// canConsume simulates the reductions sym triggers on top of states and
// reports whether sym is eventually shifted or accepted.
func (r *parseRun) canConsume(states []StateID, sym Symbol) bool {
	states = append([]StateID(nil), states...)
	for step := 0; step < maxSimulatedSteps; step++ {
		act := r.lang.action(states[len(states)-1], sym)
		switch act.Type {
		case ActionShift, ActionAccept:
			return true
		case ActionReduce:
			prod := r.lang.productions[act.Production]
			if int(prod.Length) >= len(states) {
				return false
			}
			states = states[:len(states)-int(prod.Length)]
			next, ok := r.lang.goTo(states[len(states)-1], prod.LHS)
			if !ok {
				return false
			}
			states = append(states, next)
		default:
			return false
		}
	}
	return false
}

// insertMissing shifts a zero-width token when exactly that one token
// makes the lookahead acceptable. At most one insertion happens per position.
func (r *parseRun) insertMissing() bool {
	if r.missingAt == int64(r.pos.Bytes) {
		return false
	}
	state := r.top()
	base := r.states(len(r.stack))
	for sym := Symbol(1); int(sym) < r.lang.tokenCount; sym++ {
		act := r.lang.action(state, sym)
		if act.Type != ActionShift || r.lang.IsExtra(sym) {
			continue
		}
		if !r.canConsume(append(base, act.State), r.la.symbol) {
			continue
		}
		leaf := newMissingLeaf(sym, r.lang.lexMode(state))
		leaf.preState = state
		r.push(act.State, leaf)
		r.missingAt = int64(r.pos.Bytes)
		if log := r.p.logger; log.IsDebug() {
			log.Debug("recover", "strategy", "missing", "symbol", r.lang.SymbolName(sym), "at", r.pos.Bytes)
		}
		return true
	}
	return false
}

// unwind pops entries until a state that can consume the lookahead and
// wraps the popped subtrees in an ERROR node.
func (r *parseRun) unwind() bool {
	for j := len(r.stack) - 2; j >= 0; j-- {
		if j > 0 && r.stack[j].tree.extra {
			continue
		}
		if !r.canConsume(r.states(j+1), r.la.symbol) {
			continue
		}
		var popped []*Subtree
		for _, e := range r.stack[j+1:] {
			popped = appendErrorChildren(popped, e.tree)
		}
		state := r.stack[j].state
		r.truncate(j + 1)
		r.push(state, newErrorNode(r.lang, popped))
		if log := r.p.logger; log.IsDebug() {
			log.Debug("recover", "strategy", "unwind", "popped", len(popped), "state", state)
		}
		return true
	}
	return false
}

// skip moves la into an ERROR node, merging with an ERROR node directly
// below it.
func (r *parseRun) skip(la *Subtree) {
	last := r.stack[len(r.stack)-1]
	if len(r.stack) > 1 && last.tree.symbol == SymbolError && !last.tree.terminal {
		children := append(append([]*Subtree(nil), last.tree.children...), la)
		r.truncate(len(r.stack) - 1)
		r.push(last.state, newErrorNode(r.lang, children))
		return
	}
	r.push(last.state, newErrorNode(r.lang, []*Subtree{la}))
}

// finishWithError wraps the whole stack in a root ERROR node.
func (r *parseRun) finishWithError() *Subtree {
	var children []*Subtree
	for _, e := range r.stack[1:] {
		children = appendErrorChildren(children, e.tree)
	}
	eof := r.la.clone()
	eof.extra = true
	children = append(children, eof)

	root := newNode(r.lang, SymbolError, children, 0)
	root.preState = r.lang.start
	r.p.logger.Debug("accept", "bytes", root.total().Bytes, "has_error", true)
	return root
}

// appendErrorChildren flattens nested ERROR nodes.
func appendErrorChildren(dst []*Subtree, t *Subtree) []*Subtree {
	if t.symbol == SymbolError && !t.terminal {
		return append(dst, t.children...)
	}
	return append(dst, t)
}
