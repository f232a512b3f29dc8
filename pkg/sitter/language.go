// Package sitter implements an incremental, error-tolerant LR parsing
// runtime driven by precompiled grammar tables.
//
// A Table is the plain data a grammar compiler emits. NewLanguage validates
// it and prepares the lexical rules, producing an immutable Language that any
// number of parsers may share.
package sitter

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jcs090218/tree-sitter-actionscript/pkg/types"
)

// Version range of tables this runtime understands.
const (
	LanguageVersion              = 14
	MinCompatibleLanguageVersion = 13
)

// Symbol is a grammar symbol ID (terminal or nonterminal).
type Symbol uint16

// StateID is a parser state index.
type StateID uint16

// FieldID is a named field index. Zero means no field.
type FieldID uint16

const (
	// SymbolEnd is the end-of-input terminal.
	SymbolEnd Symbol = 0
	// SymbolError marks error nodes and unrecognized text.
	SymbolError Symbol = math.MaxUint16
)

// ActionType identifies the kind of parse action.
type ActionType uint8

const (
	ActionError ActionType = iota
	ActionShift
	ActionReduce
	ActionAccept
)

func (t ActionType) String() string {
	switch t {
	case ActionShift:
		return "shift"
	case ActionReduce:
		return "reduce"
	case ActionAccept:
		return "accept"
	default:
		return "error"
	}
}

// Action is a single entry of the parse table.
type Action struct {
	Type       ActionType
	State      StateID // shift target
	Production uint16  // reduce production
}

// SymbolMetadata holds display information about a symbol.
type SymbolMetadata struct {
	Name    string
	Visible bool
	Named   bool
}

// Terminal is the lexical definition of a token. Exactly one of Literal and
// Pattern is set. Skip marks extras that are folded into padding instead of
// becoming tree nodes.
type Terminal struct {
	Symbol  Symbol
	Literal string
	Pattern string
	Skip    bool
}

// FieldMapEntry assigns a field to the child at ChildIndex, counting only
// non-extra children.
type FieldMapEntry struct {
	Field      FieldID
	ChildIndex uint16
}

// Production is a reduction rule: LHS with Length children.
type Production struct {
	LHS    Symbol
	Length uint16
	Fields []FieldMapEntry
}

// Table is the compiled form of a grammar.
type Table struct {
	Name    string
	Version uint32

	// Symbols is indexed by Symbol. Symbols below TokenCount are terminals.
	Symbols    []SymbolMetadata
	TokenCount uint16

	Terminals  []Terminal
	Extras     []Symbol
	FieldNames []string // index 0 is ""

	Productions []Production

	// Actions is [state][terminal]; Gotos is [state][symbol-TokenCount], -1 when absent.
	Actions    [][]Action
	Gotos      [][]int32
	StartState StateID
}

type lexRule struct {
	symbol  Symbol
	literal string
	re      *regexp.Regexp
	prefix  string // literal prefix every match of re starts with
	skip    bool
}

// Language is an immutable grammar descriptor. All methods are safe for
// concurrent use.
type Language struct {
	name       string
	version    uint32
	symbols    []SymbolMetadata
	tokenCount int

	rules      []lexRule
	extra      []bool // by terminal symbol
	fieldNames []string

	productions []Production
	actions     [][]Action
	gotos       [][]int32
	start       StateID

	lexModes []int   // state -> mode
	modes    [][]int // mode -> indices into rules
}

// NewLanguage validates t and prepares it for parsing.
func NewLanguage(t *Table) (*Language, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil table", types.ErrInvalidTable)
	}
	if err := validateTable(t); err != nil {
		return nil, err
	}

	l := &Language{
		name:        t.Name,
		version:     t.Version,
		symbols:     append([]SymbolMetadata(nil), t.Symbols...),
		tokenCount:  int(t.TokenCount),
		extra:       make([]bool, t.TokenCount),
		fieldNames:  append([]string(nil), t.FieldNames...),
		productions: append([]Production(nil), t.Productions...),
		actions:     t.Actions,
		gotos:       t.Gotos,
		start:       t.StartState,
	}
	if len(l.fieldNames) == 0 {
		l.fieldNames = []string{""}
	}

	for _, term := range t.Terminals {
		r := lexRule{symbol: term.Symbol, literal: term.Literal, skip: term.Skip}
		if term.Pattern != "" {
			re, err := regexp.Compile(`^(?:` + term.Pattern + `)`)
			if err != nil {
				return nil, fmt.Errorf("%w: terminal %q: %v", types.ErrInvalidTable, l.symbols[term.Symbol].Name, err)
			}
			r.re = re
			if unanchored, err := regexp.Compile(term.Pattern); err == nil {
				r.prefix, _ = unanchored.LiteralPrefix()
			}
		}
		l.rules = append(l.rules, r)
	}
	for _, sym := range t.Extras {
		l.extra[sym] = true
	}

	l.buildLexModes()
	return l, nil
}

func validateTable(t *Table) error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", types.ErrInvalidTable, fmt.Sprintf(format, args...))
	}

	if t.TokenCount == 0 || int(t.TokenCount) > len(t.Symbols) {
		return bad("token count %d out of range for %d symbols", t.TokenCount, len(t.Symbols))
	}
	if len(t.Symbols) >= int(SymbolError) {
		return bad("too many symbols: %d", len(t.Symbols))
	}
	if len(t.Actions) == 0 || len(t.Actions) != len(t.Gotos) {
		return bad("action/goto state counts differ: %d vs %d", len(t.Actions), len(t.Gotos))
	}
	if int(t.StartState) >= len(t.Actions) {
		return bad("start state %d out of range", t.StartState)
	}

	nonterminals := len(t.Symbols) - int(t.TokenCount)
	for state := range t.Actions {
		if len(t.Actions[state]) != int(t.TokenCount) {
			return bad("state %d has %d actions, want %d", state, len(t.Actions[state]), t.TokenCount)
		}
		if len(t.Gotos[state]) != nonterminals {
			return bad("state %d has %d gotos, want %d", state, len(t.Gotos[state]), nonterminals)
		}
		for sym, a := range t.Actions[state] {
			switch a.Type {
			case ActionShift:
				if int(a.State) >= len(t.Actions) {
					return bad("state %d shifts %d to unknown state %d", state, sym, a.State)
				}
			case ActionReduce:
				if int(a.Production) >= len(t.Productions) {
					return bad("state %d reduces unknown production %d", state, a.Production)
				}
			}
		}
		for i, g := range t.Gotos[state] {
			if g >= int32(len(t.Actions)) {
				return bad("state %d goto on %d targets unknown state %d", state, i, g)
			}
		}
	}

	for i, p := range t.Productions {
		if int(p.LHS) < int(t.TokenCount) || int(p.LHS) >= len(t.Symbols) {
			return bad("production %d has invalid lhs %d", i, p.LHS)
		}
		for _, f := range p.Fields {
			if int(f.Field) >= len(t.FieldNames) || f.ChildIndex >= p.Length {
				return bad("production %d has invalid field entry %+v", i, f)
			}
		}
	}

	for _, term := range t.Terminals {
		if term.Symbol == SymbolEnd || int(term.Symbol) >= int(t.TokenCount) {
			return bad("terminal symbol %d out of range", term.Symbol)
		}
		if (term.Literal == "") == (term.Pattern == "") {
			return bad("terminal %d needs exactly one of literal and pattern", term.Symbol)
		}
	}
	for _, sym := range t.Extras {
		if sym == SymbolEnd || int(sym) >= int(t.TokenCount) {
			return bad("extra symbol %d is not a terminal", sym)
		}
	}
	return nil
}

// buildLexModes groups states by the set of terminals valid in them. Extras
// are valid everywhere.
func (l *Language) buildLexModes() {
	index := make(map[string]int)
	l.lexModes = make([]int, len(l.actions))

	for state, row := range l.actions {
		var rules []int
		for i, r := range l.rules {
			if l.extra[r.symbol] || row[r.symbol].Type != ActionError {
				rules = append(rules, i)
			}
		}
		var key strings.Builder
		for _, i := range rules {
			key.WriteString(strconv.Itoa(i))
			key.WriteByte(',')
		}
		mode, ok := index[key.String()]
		if !ok {
			mode = len(l.modes)
			index[key.String()] = mode
			l.modes = append(l.modes, rules)
		}
		l.lexModes[state] = mode
	}
}

// Name returns the grammar name.
func (l *Language) Name() string { return l.name }

// Version returns the table format version.
func (l *Language) Version() uint32 { return l.version }

// SymbolCount returns the number of symbols, terminals included.
func (l *Language) SymbolCount() uint32 { return uint32(len(l.symbols)) }

// TokenCount returns the number of terminal symbols, end of input included.
func (l *Language) TokenCount() uint32 { return uint32(l.tokenCount) }

// StateCount returns the number of parse states.
func (l *Language) StateCount() uint32 { return uint32(len(l.actions)) }

// ProductionCount returns the number of productions.
func (l *Language) ProductionCount() uint32 { return uint32(len(l.productions)) }

// LexModeCount returns the number of distinct lexer modes.
func (l *Language) LexModeCount() uint32 { return uint32(len(l.modes)) }

// FieldCount returns the number of fields, excluding the empty field 0.
func (l *Language) FieldCount() uint32 { return uint32(len(l.fieldNames) - 1) }

// SymbolName returns the display name of sym.
func (l *Language) SymbolName(sym Symbol) string {
	if sym == SymbolError {
		return "ERROR"
	}
	if int(sym) >= len(l.symbols) {
		return ""
	}
	return l.symbols[sym].Name
}

// SymbolForName looks up a symbol by display name and namedness.
func (l *Language) SymbolForName(name string, named bool) (Symbol, bool) {
	if name == "ERROR" && named {
		return SymbolError, true
	}
	for i, m := range l.symbols {
		if m.Name == name && m.Named == named && (m.Visible || i == int(SymbolEnd)) {
			return Symbol(i), true
		}
	}
	return 0, false
}

// IsTerminal reports whether sym is a token.
func (l *Language) IsTerminal(sym Symbol) bool {
	return sym == SymbolError || int(sym) < l.tokenCount
}

// IsNamed reports whether sym is a named symbol.
func (l *Language) IsNamed(sym Symbol) bool {
	if sym == SymbolError {
		return true
	}
	return int(sym) < len(l.symbols) && l.symbols[sym].Named
}

// IsVisible reports whether sym appears in the tree view.
func (l *Language) IsVisible(sym Symbol) bool {
	if sym == SymbolError {
		return true
	}
	return int(sym) < len(l.symbols) && l.symbols[sym].Visible
}

// IsExtra reports whether sym may appear anywhere in the input.
func (l *Language) IsExtra(sym Symbol) bool {
	return int(sym) < len(l.extra) && l.extra[sym]
}

// FieldNameForID returns the name of field id, or "" when unknown.
func (l *Language) FieldNameForID(id FieldID) string {
	if int(id) >= len(l.fieldNames) {
		return ""
	}
	return l.fieldNames[id]
}

// FieldIDForName returns the id of the named field, or 0.
func (l *Language) FieldIDForName(name string) FieldID {
	for i := 1; i < len(l.fieldNames); i++ {
		if l.fieldNames[i] == name {
			return FieldID(i)
		}
	}
	return 0
}

// ValidTerminals returns the terminals with an action in state, sorted.
func (l *Language) ValidTerminals(state StateID) []Symbol {
	if int(state) >= len(l.actions) {
		return nil
	}
	var out []Symbol
	for sym, a := range l.actions[state] {
		if a.Type != ActionError {
			out = append(out, Symbol(sym))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (l *Language) action(state StateID, sym Symbol) Action {
	if int(sym) >= l.tokenCount {
		return Action{}
	}
	return l.actions[state][sym]
}

func (l *Language) goTo(state StateID, sym Symbol) (StateID, bool) {
	i := int(sym) - l.tokenCount
	if i < 0 || i >= len(l.gotos[state]) {
		return 0, false
	}
	g := l.gotos[state][i]
	if g < 0 {
		return 0, false
	}
	return StateID(g), true
}

func (l *Language) lexMode(state StateID) int {
	return l.lexModes[state]
}
