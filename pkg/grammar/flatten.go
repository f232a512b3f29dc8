package grammar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jcs090218/tree-sitter-actionscript/pkg/types"
)

// maxAlternatives bounds the productions a single rule may expand into.
const maxAlternatives = 4096

type terminal struct {
	name    string
	literal string
	pattern string
	visible bool
	named   bool
	skip    bool
	extra   bool
}

type nonterminal struct {
	name    string
	visible bool
	named   bool
}

// item is one right-hand-side symbol of a production.
type item struct {
	sym   int
	field string
}

type alternative struct {
	items   []item
	prec    int
	assoc   Assoc
	hasPrec bool
}

type production struct {
	lhs   int
	items []item
	prec  int
	assoc Assoc
}

type compiler struct {
	g *Grammar

	terms     []terminal     // symbol i+1
	termByKey map[string]int // key -> symbol
	lexical   map[string]bool

	nonterms []nonterminal
	ruleSym  map[string]int
	prods    []production // prods[0] is the augmented start production
	byLHS    map[int][]int
	repeats  map[string]int

	nullable []bool
	first    []bitset
}

func newCompiler(g *Grammar) *compiler {
	return &compiler{
		g:         g,
		termByKey: make(map[string]int),
		lexical:   make(map[string]bool),
		ruleSym:   make(map[string]int),
		byLHS:     make(map[int][]int),
		repeats:   make(map[string]int),
	}
}

func (c *compiler) tokenCount() int { return len(c.terms) + 1 }

func (c *compiler) addTerminal(key string, t terminal) int {
	if sym, ok := c.termByKey[key]; ok {
		return sym
	}
	c.terms = append(c.terms, t)
	sym := len(c.terms)
	c.termByKey[key] = sym
	return sym
}

// lexicalTerminal describes the terminal a lexical rule produces.
func lexicalTerminal(r Rule) (key string, t terminal, err error) {
	inner := r
	for inner.kind == kindToken || inner.kind == kindPrec {
		inner = inner.members[0]
	}
	if inner.kind == kindString {
		if inner.value == "" {
			return "", t, fmt.Errorf("%w: empty string literal", types.ErrInvalidGrammar)
		}
		return "s:" + inner.value, terminal{name: inner.value, literal: inner.value, visible: true}, nil
	}

	src := inner.value
	if inner.kind != kindPattern {
		if src, err = inner.regexpSource(); err != nil {
			return "", t, fmt.Errorf("%w: token contains a non-lexical rule", types.ErrInvalidGrammar)
		}
	}
	re, err := regexp.Compile(`^(?:` + src + `)$`)
	if err != nil {
		return "", t, fmt.Errorf("%w: pattern %q: %v", types.ErrInvalidGrammar, src, err)
	}
	if re.MatchString("") {
		return "", t, fmt.Errorf("%w: pattern %q matches the empty string", types.ErrInvalidGrammar, src)
	}
	return "p:" + src, terminal{name: src, pattern: src}, nil
}

// collectTerminals assigns symbols to every terminal in the grammar: lexical
// rules, inline strings and patterns, and extras.
func (c *compiler) collectTerminals() error {
	for i, r := range c.g.rules {
		if i > 0 && r.body.isLexical() {
			c.lexical[r.name] = true
		}
	}

	for _, r := range c.g.rules {
		if c.lexical[r.name] {
			_, t, err := lexicalTerminal(r.body)
			if err != nil {
				return fmt.Errorf("rule %s: %w", r.name, err)
			}
			t.name = r.name
			t.named = true
			t.visible = !strings.HasPrefix(r.name, "_")
			c.addTerminal("n:"+r.name, t)
			continue
		}
		if err := c.collectInline(r.name, r.body); err != nil {
			return err
		}
	}

	for _, x := range c.g.extras {
		switch {
		case x.kind == kindSymbol:
			if !c.lexical[x.value] {
				if !c.hasRule(x.value) {
					return fmt.Errorf("%w: extra %q", types.ErrUndefinedSymbol, x.value)
				}
				return fmt.Errorf("%w: extra %q is not a lexical rule", types.ErrInvalidGrammar, x.value)
			}
			c.terms[c.termByKey["n:"+x.value]-1].extra = true
		case x.isLexical():
			key, t, err := lexicalTerminal(x)
			if err != nil {
				return fmt.Errorf("extras: %w", err)
			}
			t.visible = false
			t.skip = true
			t.extra = true
			c.addTerminal("x:"+key, t)
		default:
			return fmt.Errorf("%w: extras must be strings, patterns, tokens or lexical rules", types.ErrInvalidGrammar)
		}
	}
	return nil
}

func (c *compiler) hasRule(name string) bool {
	for _, r := range c.g.rules {
		if r.name == name {
			return true
		}
	}
	return false
}

func (c *compiler) collectInline(owner string, r Rule) error {
	switch r.kind {
	case kindString, kindPattern, kindToken:
		key, t, err := lexicalTerminal(r)
		if err != nil {
			return fmt.Errorf("rule %s: %w", owner, err)
		}
		c.addTerminal(key, t)
	default:
		for _, m := range r.members {
			if err := c.collectInline(owner, m); err != nil {
				return err
			}
		}
	}
	return nil
}

// numberSymbols gives every non-lexical rule a nonterminal symbol after
// the terminals.
func (c *compiler) numberSymbols() {
	for _, r := range c.g.rules {
		if c.lexical[r.name] {
			c.ruleSym[r.name] = c.termByKey["n:"+r.name]
			continue
		}
		c.ruleSym[r.name] = c.addNonterminal(nonterminal{
			name:    r.name,
			visible: !strings.HasPrefix(r.name, "_"),
			named:   true,
		})
	}
}

func (c *compiler) addNonterminal(n nonterminal) int {
	c.nonterms = append(c.nonterms, n)
	return c.tokenCount() + len(c.nonterms) - 1
}

func (c *compiler) addProduction(p production) {
	c.byLHS[p.lhs] = append(c.byLHS[p.lhs], len(c.prods))
	c.prods = append(c.prods, p)
}

// flattenRules expands each rule body into plain productions.
func (c *compiler) flattenRules() error {
	start := c.ruleSym[c.g.rules[0].name]
	c.addProduction(production{lhs: -1, items: []item{{sym: start}}})

	for _, r := range c.g.rules {
		if c.lexical[r.name] {
			continue
		}
		alts, err := c.flatten(r.name, r.body)
		if err != nil {
			return err
		}
		c.addAlternatives(c.ruleSym[r.name], alts)
	}
	return nil
}

func (c *compiler) addAlternatives(lhs int, alts []alternative) {
	seen := make(map[string]bool, len(alts))
	for _, a := range alts {
		var key strings.Builder
		for _, it := range a.items {
			key.WriteString(strconv.Itoa(it.sym))
			key.WriteByte(':')
			key.WriteString(it.field)
			key.WriteByte(' ')
		}
		if seen[key.String()] {
			continue
		}
		seen[key.String()] = true
		c.addProduction(production{lhs: lhs, items: a.items, prec: a.prec, assoc: a.assoc})
	}
}

func (c *compiler) flatten(owner string, r Rule) ([]alternative, error) {
	switch r.kind {
	case kindBlank:
		return []alternative{{}}, nil

	case kindString, kindPattern, kindToken:
		key, _, err := lexicalTerminal(r)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", owner, err)
		}
		return []alternative{{items: []item{{sym: c.termByKey[key]}}}}, nil

	case kindSymbol:
		sym, ok := c.ruleSym[r.value]
		if !ok {
			return nil, fmt.Errorf("%w: %q referenced from %s", types.ErrUndefinedSymbol, r.value, owner)
		}
		return []alternative{{items: []item{{sym: sym}}}}, nil

	case kindSeq:
		out := []alternative{{}}
		for _, m := range r.members {
			alts, err := c.flatten(owner, m)
			if err != nil {
				return nil, err
			}
			if len(out)*len(alts) > maxAlternatives {
				return nil, fmt.Errorf("%w: rule %s expands to too many alternatives", types.ErrInvalidGrammar, owner)
			}
			next := make([]alternative, 0, len(out)*len(alts))
			for _, a := range out {
				for _, b := range alts {
					next = append(next, concat(a, b))
				}
			}
			out = next
		}
		return out, nil

	case kindChoice:
		if len(r.members) == 0 {
			return nil, fmt.Errorf("%w: empty choice in %s", types.ErrInvalidGrammar, owner)
		}
		var out []alternative
		for _, m := range r.members {
			alts, err := c.flatten(owner, m)
			if err != nil {
				return nil, err
			}
			out = append(out, alts...)
		}
		if len(out) > maxAlternatives {
			return nil, fmt.Errorf("%w: rule %s expands to too many alternatives", types.ErrInvalidGrammar, owner)
		}
		return out, nil

	case kindRepeat, kindRepeat1:
		aux, err := c.repeatSymbol(owner, r.members[0])
		if err != nil {
			return nil, err
		}
		out := []alternative{{items: []item{{sym: aux}}}}
		if r.kind == kindRepeat {
			out = append(out, alternative{})
		}
		return out, nil

	case kindField:
		alts, err := c.flatten(owner, r.members[0])
		if err != nil {
			return nil, err
		}
		for i := range alts {
			items := make([]item, len(alts[i].items))
			for j, it := range alts[i].items {
				if it.field == "" {
					it.field = r.value
				}
				items[j] = it
			}
			alts[i].items = items
		}
		return alts, nil

	case kindPrec:
		alts, err := c.flatten(owner, r.members[0])
		if err != nil {
			return nil, err
		}
		for i := range alts {
			if !alts[i].hasPrec {
				alts[i].prec, alts[i].assoc, alts[i].hasPrec = r.prec, r.assoc, true
			}
		}
		return alts, nil
	}
	return nil, fmt.Errorf("%w: unknown rule kind %d in %s", types.ErrInvalidGrammar, r.kind, owner)
}

func concat(a, b alternative) alternative {
	out := alternative{
		items: make([]item, 0, len(a.items)+len(b.items)),
		prec:  a.prec, assoc: a.assoc, hasPrec: a.hasPrec,
	}
	out.items = append(append(out.items, a.items...), b.items...)
	if !out.hasPrec && b.hasPrec {
		out.prec, out.assoc, out.hasPrec = b.prec, b.assoc, true
	}
	return out
}

// repeatSymbol creates a hidden left-recursive rule matching body one or
// more times.
func (c *compiler) repeatSymbol(owner string, body Rule) (int, error) {
	c.repeats[owner]++
	name := fmt.Sprintf("%s_repeat%d", owner, c.repeats[owner])
	aux := c.addNonterminal(nonterminal{name: name})

	alts, err := c.flatten(owner, body)
	if err != nil {
		return 0, err
	}
	var once []alternative
	for _, a := range alts {
		if len(a.items) > 0 {
			once = append(once, a)
		}
	}
	if len(once) == 0 {
		return 0, fmt.Errorf("%w: repeat in %s matches only the empty string", types.ErrInvalidGrammar, owner)
	}

	recursive := make([]alternative, 0, len(once))
	for _, a := range once {
		recursive = append(recursive, concat(alternative{items: []item{{sym: aux}}}, a))
	}
	c.addAlternatives(aux, append(recursive, once...))
	return aux, nil
}
