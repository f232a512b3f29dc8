package sitter

// Subtree is an immutable syntax tree fragment. Positions are relative:
// a subtree stores only the whitespace before it (padding) and its own size,
// so the same subtree can be shared by trees in which it sits at different
// absolute offsets.
type Subtree struct {
	symbol     Symbol
	padding    Length
	size       Length
	children   []*Subtree
	production uint16

	// preState is the parse state beneath the subtree when it was pushed.
	preState StateID
	// lexMode is the lexer mode its first token was lexed in.
	lexMode int32
	// lookahead counts bytes past the end that influenced this subtree.
	lookahead uint32

	terminal bool
	extra    bool
	missing  bool
	changed  bool
	hasError bool

	visibleChildCount int
	namedChildCount   int
	descendantCount   int
}

func newLeaf(sym Symbol, padding, size Length, lookahead uint32, mode int) *Subtree {
	return &Subtree{
		symbol:          sym,
		padding:         padding,
		size:            size,
		lexMode:         int32(mode),
		lookahead:       lookahead,
		terminal:        true,
		hasError:        sym == SymbolError,
		descendantCount: 1,
	}
}

func newMissingLeaf(sym Symbol, mode int) *Subtree {
	t := newLeaf(sym, Length{}, Length{}, 0, mode)
	t.missing = true
	t.hasError = true
	return t
}

func newNode(lang *Language, sym Symbol, children []*Subtree, production uint16) *Subtree {
	t := &Subtree{
		symbol:          sym,
		children:        children,
		production:      production,
		lexMode:         -1,
		hasError:        sym == SymbolError,
		descendantCount: 1,
	}
	t.summarize(lang)
	return t
}

func newErrorNode(lang *Language, children []*Subtree) *Subtree {
	t := newNode(lang, SymbolError, children, 0)
	t.extra = true
	return t
}

// summarize recomputes the cached aggregates from the children.
func (t *Subtree) summarize(lang *Language) {
	t.visibleChildCount = 0
	t.namedChildCount = 0
	t.descendantCount = 1
	t.padding = Length{}
	t.size = Length{}
	t.lookahead = 0
	if len(t.children) == 0 {
		return
	}

	var total Length
	var lookaheadEnd uint32
	for i, c := range t.children {
		if i == 0 {
			t.padding = c.padding
			t.lexMode = c.lexMode
			total = lengthAdd(c.padding, c.size)
		} else {
			total = lengthAdd(total, c.total())
		}
		if end := total.Bytes + c.lookahead; end > lookaheadEnd {
			lookaheadEnd = end
		}
		if c.hasError || c.missing || c.symbol == SymbolError {
			t.hasError = true
		}
		t.descendantCount += c.descendantCount

		switch {
		case c.isVisible(lang):
			t.visibleChildCount++
			if c.isNamed(lang) {
				t.namedChildCount++
			}
		case !c.terminal:
			t.visibleChildCount += c.visibleChildCount
			t.namedChildCount += c.namedChildCount
		}
	}
	t.size = lengthSub(total, t.padding)
	if lookaheadEnd > total.Bytes {
		t.lookahead = lookaheadEnd - total.Bytes
	}
}

func (t *Subtree) total() Length { return lengthAdd(t.padding, t.size) }

// Symbol returns the grammar symbol of the subtree.
func (t *Subtree) Symbol() Symbol { return t.symbol }

func (t *Subtree) isVisible(lang *Language) bool {
	if t.symbol == SymbolError {
		// Unrecognized characters live in invisible error leaves.
		return !t.terminal
	}
	return lang.IsVisible(t.symbol)
}

func (t *Subtree) isNamed(lang *Language) bool {
	return lang.IsNamed(t.symbol)
}

func (t *Subtree) firstLeaf() *Subtree {
	for !t.terminal && len(t.children) > 0 {
		t = t.children[0]
	}
	return t
}

func (t *Subtree) lastLeaf() *Subtree {
	for !t.terminal && len(t.children) > 0 {
		t = t.children[len(t.children)-1]
	}
	return t
}

// clone returns a shallow copy that may be modified before it is shared.
func (t *Subtree) clone() *Subtree {
	c := *t
	return &c
}

// structuralIndex maps the i-th child to its production index, or -1 for
// extras.
func (t *Subtree) structuralIndex(i int) int {
	if t.children[i].extra {
		return -1
	}
	n := 0
	for j := 0; j < i; j++ {
		if !t.children[j].extra {
			n++
		}
	}
	return n
}
