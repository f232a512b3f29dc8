// Package grammar is a small grammar DSL and LALR(1) table generator.
//
// A Grammar is declared in Go with rule constructors (Str, Pat, Seq, Choice,
// Repeat, Field, Prec, ...). Compile turns it into a sitter.Table; Build goes
// one step further and returns a ready-to-use *sitter.Language.
//
//	g := grammar.New("actionscript").
//		Rule("source_file", grammar.Str("hello"))
//	lang, err := g.Build()
//
// The first rule is the start rule. Rules whose names begin with an
// underscore are hidden: their children appear directly under the parent.
// A non-start rule whose body is a single Str, Pat or Token is a lexical
// rule and becomes a named terminal.
package grammar

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jcs090218/tree-sitter-actionscript/pkg/sitter"
	"github.com/jcs090218/tree-sitter-actionscript/pkg/types"
)

var errNotLexical = errors.New("rule is not lexical")

type namedRule struct {
	name string
	body Rule
}

// Grammar is a grammar definition under construction.
type Grammar struct {
	name   string
	rules  []namedRule
	extras []Rule
}

// New starts a grammar. Whitespace is an extra by default.
func New(name string) *Grammar {
	return &Grammar{name: name, extras: []Rule{Pat(`\s`)}}
}

// Rule appends a rule. The first rule added is the start rule.
func (g *Grammar) Rule(name string, body Rule) *Grammar {
	g.rules = append(g.rules, namedRule{name: name, body: body})
	return g
}

// Extras replaces the tokens that may appear anywhere in the input. Str and
// Pat extras are skipped silently; Sym extras naming a lexical rule (such as
// a comment) appear in the tree.
func (g *Grammar) Extras(rules ...Rule) *Grammar {
	g.extras = rules
	return g
}

// Name returns the grammar name.
func (g *Grammar) Name() string { return g.name }

// RuleNames returns the rule names in declaration order.
func (g *Grammar) RuleNames() []string {
	out := make([]string, len(g.rules))
	for i, r := range g.rules {
		out[i] = r.name
	}
	return out
}

// Build compiles the grammar and loads the result as a language.
func (g *Grammar) Build() (*sitter.Language, error) {
	table, err := g.Compile()
	if err != nil {
		return nil, err
	}
	return sitter.NewLanguage(table)
}

// Compile generates the parse table.
func (g *Grammar) Compile() (*sitter.Table, error) {
	if err := g.check(); err != nil {
		return nil, err
	}
	c := newCompiler(g)
	if err := c.collectTerminals(); err != nil {
		return nil, err
	}
	c.numberSymbols()
	if err := c.flattenRules(); err != nil {
		return nil, err
	}
	c.computeFirst()
	states := c.buildStates()
	return c.emit(states)
}

func (g *Grammar) check() error {
	if g.name == "" {
		return fmt.Errorf("%w: missing name", types.ErrInvalidGrammar)
	}
	if len(g.rules) == 0 {
		return fmt.Errorf("%w: %s has no rules", types.ErrInvalidGrammar, g.name)
	}
	seen := make(map[string]bool, len(g.rules))
	for _, r := range g.rules {
		switch {
		case r.name == "":
			return fmt.Errorf("%w: rule with empty name", types.ErrInvalidGrammar)
		case r.name == "ERROR" || r.name == "end":
			return fmt.Errorf("%w: rule name %q is reserved", types.ErrInvalidGrammar, r.name)
		case seen[r.name]:
			return fmt.Errorf("%w: duplicate rule %q", types.ErrInvalidGrammar, r.name)
		}
		seen[r.name] = true
	}
	return nil
}

// emit converts the LR automaton into a table, resolving conflicts by
// precedence and associativity.
func (c *compiler) emit(states []*lrState) (*sitter.Table, error) {
	tokenCount := c.tokenCount()
	symbols := make([]sitter.SymbolMetadata, 0, tokenCount+len(c.nonterms))
	symbols = append(symbols, sitter.SymbolMetadata{Name: "end"})
	for _, t := range c.terms {
		symbols = append(symbols, sitter.SymbolMetadata{Name: t.name, Visible: t.visible, Named: t.named})
	}
	for _, n := range c.nonterms {
		symbols = append(symbols, sitter.SymbolMetadata{Name: n.name, Visible: n.visible, Named: n.named})
	}

	table := &sitter.Table{
		Name:       c.g.name,
		Version:    sitter.LanguageVersion,
		Symbols:    symbols,
		TokenCount: uint16(tokenCount),
		StartState: 0,
	}

	for i, t := range c.terms {
		sym := sitter.Symbol(i + 1)
		table.Terminals = append(table.Terminals, sitter.Terminal{
			Symbol:  sym,
			Literal: t.literal,
			Pattern: t.pattern,
			Skip:    t.skip,
		})
		if t.extra {
			table.Extras = append(table.Extras, sym)
		}
	}

	fieldIDs := c.fieldIDs()
	table.FieldNames = make([]string, len(fieldIDs)+1)
	for name, id := range fieldIDs {
		table.FieldNames[id] = name
	}

	for _, p := range c.prods[1:] {
		prod := sitter.Production{LHS: sitter.Symbol(p.lhs), Length: uint16(len(p.items))}
		for i, it := range p.items {
			if it.field != "" {
				prod.Fields = append(prod.Fields, sitter.FieldMapEntry{Field: fieldIDs[it.field], ChildIndex: uint16(i)})
			}
		}
		table.Productions = append(table.Productions, prod)
	}

	for _, st := range states {
		actions, gotos, err := c.stateRow(st)
		if err != nil {
			return nil, err
		}
		table.Actions = append(table.Actions, actions)
		table.Gotos = append(table.Gotos, gotos)
	}
	return table, nil
}

// fieldIDs numbers the field names in sorted order starting at 1.
func (c *compiler) fieldIDs() map[string]sitter.FieldID {
	var names []string
	seen := make(map[string]bool)
	for _, p := range c.prods {
		for _, it := range p.items {
			if it.field != "" && !seen[it.field] {
				seen[it.field] = true
				names = append(names, it.field)
			}
		}
	}
	sort.Strings(names)
	ids := make(map[string]sitter.FieldID, len(names))
	for i, n := range names {
		ids[n] = sitter.FieldID(i + 1)
	}
	return ids
}

type shiftCandidate struct {
	target int
	prec   int
	ok     bool
}

func (c *compiler) stateRow(st *lrState) ([]sitter.Action, []int32, error) {
	tokenCount := c.tokenCount()
	actions := make([]sitter.Action, tokenCount)
	gotos := make([]int32, len(c.nonterms))
	for i := range gotos {
		gotos[i] = -1
	}

	items, las := c.closure(st)
	shifts := make([]shiftCandidate, tokenCount)
	reduces := make([][]int, tokenCount)
	accept := false

	for i, it := range items {
		p := c.prods[it.prod]
		if int(it.dot) < len(p.items) {
			sym := p.items[it.dot].sym
			target := st.trans[sym]
			if sym < tokenCount {
				s := &shifts[sym]
				if !s.ok || p.prec > s.prec {
					s.prec = p.prec
				}
				s.target, s.ok = target, true
			} else {
				gotos[sym-tokenCount] = int32(target)
			}
			continue
		}
		if it.prod == 0 {
			accept = true
			continue
		}
		las[i].each(func(t int) {
			reduces[t] = append(reduces[t], int(it.prod))
		})
	}

	for t := 0; t < tokenCount; t++ {
		if t == int(sitter.SymbolEnd) && accept {
			if len(reduces[t]) > 0 {
				return nil, nil, c.conflict("accept/reduce", t, reduces[t])
			}
			actions[t] = sitter.Action{Type: sitter.ActionAccept}
			continue
		}
		act, err := c.resolve(t, shifts[t], reduces[t])
		if err != nil {
			return nil, nil, err
		}
		actions[t] = act
	}
	return actions, gotos, nil
}

func (c *compiler) resolve(t int, shift shiftCandidate, reduces []int) (sitter.Action, error) {
	shiftAction := sitter.Action{Type: sitter.ActionShift, State: sitter.StateID(shift.target)}
	if len(reduces) == 0 {
		if shift.ok {
			return shiftAction, nil
		}
		return sitter.Action{}, nil
	}

	r := reduces[0]
	for _, other := range reduces[1:] {
		switch {
		case c.prods[other].prec > c.prods[r].prec:
			r = other
		case c.prods[other].prec == c.prods[r].prec:
			return sitter.Action{}, c.conflict("reduce/reduce", t, reduces)
		}
	}
	reduceAction := sitter.Action{Type: sitter.ActionReduce, Production: uint16(r - 1)}
	if !shift.ok {
		return reduceAction, nil
	}

	p := c.prods[r]
	switch {
	case p.prec > shift.prec:
		return reduceAction, nil
	case p.prec < shift.prec:
		return shiftAction, nil
	case p.assoc == AssocLeft:
		return reduceAction, nil
	case p.assoc == AssocRight:
		return shiftAction, nil
	}
	return sitter.Action{}, c.conflict("shift/reduce", t, reduces)
}

func (c *compiler) conflict(kind string, t int, prods []int) error {
	names := make([]string, 0, len(prods))
	for _, p := range prods {
		names = append(names, c.describe(p))
	}
	return fmt.Errorf("%w: %s on %q: %s", types.ErrConflict, kind, c.symbolName(t), strings.Join(names, ", "))
}

// describe renders a production as "lhs -> a b c".
func (c *compiler) describe(prod int) string {
	p := c.prods[prod]
	var b strings.Builder
	b.WriteString(c.symbolName(p.lhs))
	b.WriteString(" ->")
	for _, it := range p.items {
		b.WriteByte(' ')
		b.WriteString(c.symbolName(it.sym))
	}
	return b.String()
}

func (c *compiler) symbolName(sym int) string {
	switch {
	case sym < 0:
		return "<start>"
	case sym == 0:
		return "end"
	case sym < c.tokenCount():
		return c.terms[sym-1].name
	default:
		return c.nonterms[sym-c.tokenCount()].name
	}
}
