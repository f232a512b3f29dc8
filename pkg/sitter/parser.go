package sitter

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/tevino/abool/v2"

	"github.com/jcs090218/tree-sitter-actionscript/pkg/types"
)

// checkInterval is how many parser operations run between cancellation
// checks. The first operation is always checked.
const checkInterval = 100

// ParseStats describes the most recent parse.
type ParseStats struct {
	Tokens      int    // tokens lexed
	ReusedNodes int    // subtrees taken from the old tree
	ReusedBytes uint32 // bytes covered by reused subtrees
	Recoveries  int    // error recovery steps
}

// Parser turns source text into syntax trees. A Parser is not safe for
// concurrent use; the trees it returns are.
type Parser struct {
	lang          *Language
	logger        hclog.Logger
	timeoutMicros uint64
	cancel        *abool.AtomicBool
	stats         ParseStats
}

// NewParser creates a parser with no language.
func NewParser() *Parser {
	return &Parser{logger: hclog.NewNullLogger()}
}

// SetLanguage sets the grammar used for subsequent parses.
func (p *Parser) SetLanguage(lang *Language) error {
	if lang == nil {
		return types.ErrNoLanguage
	}
	if lang.version < MinCompatibleLanguageVersion || lang.version > LanguageVersion {
		return fmt.Errorf("%w: %d (supported %d..%d)", types.ErrIncompatibleLanguage,
			lang.version, MinCompatibleLanguageVersion, LanguageVersion)
	}
	p.lang = lang
	return nil
}

// Language returns the current language, or nil.
func (p *Parser) Language() *Language { return p.lang }

// SetLogger routes lex/parse events to logger. A nil logger disables logging.
func (p *Parser) SetLogger(logger hclog.Logger) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	p.logger = logger
}

// Logger returns the parse event logger.
func (p *Parser) Logger() hclog.Logger { return p.logger }

// SetTimeoutMicros bounds the duration of a parse. Zero means no limit.
func (p *Parser) SetTimeoutMicros(timeout uint64) { p.timeoutMicros = timeout }

// TimeoutMicros returns the parse time limit.
func (p *Parser) TimeoutMicros() uint64 { return p.timeoutMicros }

// SetCancellationFlag installs a flag that aborts parsing once set.
func (p *Parser) SetCancellationFlag(flag *abool.AtomicBool) { p.cancel = flag }

// CancellationFlag returns the installed cancellation flag.
func (p *Parser) CancellationFlag() *abool.AtomicBool { return p.cancel }

// Stats returns statistics about the last parse.
func (p *Parser) Stats() ParseStats { return p.stats }

// Reset clears the statistics of the last parse.
func (p *Parser) Reset() { p.stats = ParseStats{} }

// Parse parses src. When old is an edited tree of a previous version of
// the same document, unchanged subtrees are reused.
func (p *Parser) Parse(src []byte, old *Tree) (*Tree, error) {
	return p.ParseCtx(context.Background(), src, old)
}

// ParseString is Parse for string input.
func (p *Parser) ParseString(ctx context.Context, src string, old *Tree) (*Tree, error) {
	return p.ParseCtx(ctx, []byte(src), old)
}

// ParseCtx is Parse with cancellation. Malformed input is not an error:
// it produces a tree containing ERROR and MISSING nodes.
func (p *Parser) ParseCtx(ctx context.Context, src []byte, old *Tree) (*Tree, error) {
	if p.lang == nil {
		return nil, types.ErrNoLanguage
	}
	p.stats = ParseStats{}

	run := &parseRun{
		p:         p,
		lang:      p.lang,
		lx:        newLexer(p.lang, src),
		src:       src,
		ctx:       ctx,
		started:   time.Now(),
		missingAt: -1,
		nextMode:  -1,
	}
	// A root ERROR node means nothing of the old parse was accepted.
	if old != nil && old.lang == p.lang && old.root != nil && old.root.symbol != SymbolError {
		run.reuse = newReuseCursor(old.root)
	}
	root, err := run.parse()
	if err != nil {
		return nil, err
	}
	return &Tree{root: root, lang: p.lang}, nil
}

type stackEntry struct {
	state StateID
	tree  *Subtree
	end   Length // absolute end of tree
}

// parseRun holds the state of a single parse.
type parseRun struct {
	p    *Parser
	lang *Language
	lx   *lexer
	src  []byte
	ctx  context.Context

	stack []stackEntry
	pos   Length // end of the last consumed subtree
	la    *Subtree

	reuse     *reuseCursor
	nextMode  int // lex mode until the next shift after a reused node, -1 = mode of the top state
	missingAt int64
	started   time.Time
	ops       int
}

func (r *parseRun) top() StateID { return r.stack[len(r.stack)-1].state }

func (r *parseRun) push(state StateID, t *Subtree) {
	r.pos = lengthAdd(r.pos, t.total())
	r.stack = append(r.stack, stackEntry{state: state, tree: t, end: r.pos})
}

// truncate pops the stack down to n entries.
func (r *parseRun) truncate(n int) {
	r.stack = r.stack[:n]
	r.pos = r.stack[n-1].end
}

func (r *parseRun) checkAbort() error {
	r.ops++
	if r.ops%checkInterval != 1 {
		return nil
	}
	if r.p.cancel != nil && r.p.cancel.IsSet() {
		return types.ErrCancelled
	}
	if err := r.ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", types.ErrCancelled, err)
	}
	if r.p.timeoutMicros > 0 && time.Since(r.started) > time.Duration(r.p.timeoutMicros)*time.Microsecond {
		return types.ErrTimeout
	}
	return nil
}

func (r *parseRun) parse() (*Subtree, error) {
	r.stack = []stackEntry{{state: r.lang.start}}
	log := r.p.logger

	for {
		if err := r.checkAbort(); err != nil {
			return nil, err
		}
		state := r.top()

		if r.la == nil {
			// Tokens are lexed in the mode of the state reached by the last
			// shift, before any reductions the token triggers.
			mode := r.lang.lexMode(state)
			if r.nextMode >= 0 {
				mode = r.nextMode
			}
			if r.reuse != nil && r.tryReuse(mode) {
				continue
			}
			tok := r.lx.lex(r.pos, mode)
			r.la = newLeaf(tok.symbol, tok.padding, tok.size, tok.lookahead, tok.mode)
			r.p.stats.Tokens++
			if log.IsTrace() {
				log.Trace("lex", "symbol", r.lang.SymbolName(tok.symbol), "start", r.pos.Bytes+tok.padding.Bytes, "size", tok.size.Bytes)
			}
		}

		state = r.top()
		la := r.la
		act := Action{}
		if la.symbol != SymbolError {
			act = r.lang.action(state, la.symbol)
		}
		if act.Type == ActionError && la.symbol != SymbolError && la.symbol != SymbolEnd && r.lang.IsExtra(la.symbol) {
			t := la.clone()
			t.extra = true
			t.preState = state
			r.push(state, t)
			r.la = nil
			continue
		}

		switch act.Type {
		case ActionShift:
			t := la
			if t.preState != state {
				t = t.clone()
				t.preState = state
			}
			if log.IsTrace() {
				log.Trace("shift", "state", act.State, "symbol", r.lang.SymbolName(la.symbol))
			}
			r.push(act.State, t)
			r.la = nil
			r.nextMode = -1

		case ActionReduce:
			r.reduce(act.Production, r.lookaheadEnd(la))

		case ActionAccept:
			return r.accept(), nil

		default:
			r.p.stats.Recoveries++
			r.nextMode = -1
			if done := r.recover(); done != nil {
				return done, nil
			}
		}
	}
}

// lookaheadEnd is the absolute end of everything the lexer examined to
// produce la.
func (r *parseRun) lookaheadEnd(la *Subtree) uint32 {
	return r.pos.Bytes + la.total().Bytes + la.lookahead
}

// reduce pops the children of production and pushes the new node. Extras
// on top of the stack stay outside the new node.
func (r *parseRun) reduce(production uint16, lookaheadEnd uint32) {
	prod := r.lang.productions[production]

	i := len(r.stack)
	var trailing []*Subtree
	if prod.Length > 0 {
		for i > 1 && r.stack[i-1].tree.extra {
			i--
		}
		for _, e := range r.stack[i:] {
			trailing = append(trailing, e.tree)
		}
	}
	end := i
	for n := 0; n < int(prod.Length) && i > 1; {
		i--
		if !r.stack[i].tree.extra {
			n++
		}
	}
	children := make([]*Subtree, 0, end-i)
	for _, e := range r.stack[i:end] {
		children = append(children, e.tree)
	}

	r.truncate(i)

	preState := r.top()
	node := newNode(r.lang, prod.LHS, children, production)
	node.preState = preState
	if nodeEnd := lengthAdd(r.pos, node.total()).Bytes; lookaheadEnd > nodeEnd+node.lookahead {
		node.lookahead = lookaheadEnd - nodeEnd
	}

	next, ok := r.lang.goTo(preState, prod.LHS)
	if !ok {
		// The table guarantees a goto after a valid reduce; keep going with
		// the node as an error so the parse still terminates.
		node.extra = true
		next = preState
	}
	if log := r.p.logger; log.IsTrace() {
		log.Trace("reduce", "symbol", r.lang.SymbolName(prod.LHS), "children", len(children), "state", next)
	}
	r.push(next, node)
	for _, t := range trailing {
		r.push(next, t)
	}
}

// accept builds the root from the start symbol node, any extras around it
// and the end-of-input leaf, so the root spans the whole input.
func (r *parseRun) accept() *Subtree {
	var startNode *Subtree
	var leading, trailing []*Subtree
	for _, e := range r.stack[1:] {
		switch {
		case e.tree.extra && startNode == nil:
			leading = append(leading, e.tree)
		case e.tree.extra:
			trailing = append(trailing, e.tree)
		default:
			startNode = e.tree
		}
	}
	eof := r.la.clone()
	eof.extra = true

	children := make([]*Subtree, 0, len(leading)+len(startNode.children)+len(trailing)+1)
	children = append(children, leading...)
	children = append(children, startNode.children...)
	children = append(children, trailing...)
	children = append(children, eof)

	root := newNode(r.lang, startNode.symbol, children, startNode.production)
	root.preState = r.lang.start
	r.p.logger.Debug("accept", "bytes", root.total().Bytes, "has_error", root.hasError)
	return root
}
