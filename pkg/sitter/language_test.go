package sitter

import (
	"errors"
	"testing"

	"github.com/jcs090218/tree-sitter-actionscript/pkg/types"
)

// helloTable is the table for a grammar with the single rule
// source_file -> "hello" and whitespace extras.
func helloTable() *Table {
	return &Table{
		Name:    "hello",
		Version: LanguageVersion,
		Symbols: []SymbolMetadata{
			{Name: "end"},
			{Name: "hello", Visible: true},
			{Name: `\s`},
			{Name: "source_file", Visible: true, Named: true},
		},
		TokenCount: 3,
		Terminals: []Terminal{
			{Symbol: 1, Literal: "hello"},
			{Symbol: 2, Pattern: `\s`, Skip: true},
		},
		Extras:      []Symbol{2},
		FieldNames:  []string{""},
		Productions: []Production{{LHS: 3, Length: 1}},
		Actions: [][]Action{
			{{}, {Type: ActionShift, State: 1}, {}},
			{{Type: ActionReduce, Production: 0}, {}, {}},
			{{Type: ActionAccept}, {}, {}},
		},
		Gotos:      [][]int32{{2}, {-1}, {-1}},
		StartState: 0,
	}
}

func TestNewLanguage(t *testing.T) {
	lang, err := NewLanguage(helloTable())
	if err != nil {
		t.Fatalf("NewLanguage() error = %v", err)
	}

	if got := lang.Name(); got != "hello" {
		t.Errorf("Name() = %q, want %q", got, "hello")
	}
	if got := lang.SymbolCount(); got != 4 {
		t.Errorf("SymbolCount() = %d, want 4", got)
	}
	if got := lang.StateCount(); got != 3 {
		t.Errorf("StateCount() = %d, want 3", got)
	}
	if got := lang.FieldCount(); got != 0 {
		t.Errorf("FieldCount() = %d, want 0", got)
	}
	if got := lang.SymbolName(SymbolError); got != "ERROR" {
		t.Errorf("SymbolName(SymbolError) = %q, want ERROR", got)
	}
	if !lang.IsExtra(2) || lang.IsExtra(1) {
		t.Error("IsExtra() mismatch for whitespace/hello")
	}
	if sym, ok := lang.SymbolForName("source_file", true); !ok || sym != 3 {
		t.Errorf("SymbolForName(source_file) = %d, %v", sym, ok)
	}
	if _, ok := lang.SymbolForName(`\s`, false); ok {
		t.Error("hidden symbols should not be found by name")
	}
	if got := lang.ValidTerminals(1); len(got) != 1 || got[0] != SymbolEnd {
		t.Errorf("ValidTerminals(1) = %v, want [0]", got)
	}

	// State 1 and 2 both accept only the end symbol, so they share a lex mode.
	if lang.lexMode(1) != lang.lexMode(2) {
		t.Error("states with the same valid terminals should share a lex mode")
	}
	if lang.lexMode(0) == lang.lexMode(1) {
		t.Error("states with different valid terminals should not share a lex mode")
	}
	if got := lang.LexModeCount(); got != 2 {
		t.Errorf("LexModeCount() = %d, want 2", got)
	}
}

func TestNewLanguageInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Table)
	}{
		{"no tokens", func(t *Table) { t.TokenCount = 0 }},
		{"state count mismatch", func(t *Table) { t.Gotos = t.Gotos[:2] }},
		{"start out of range", func(t *Table) { t.StartState = 9 }},
		{"short action row", func(t *Table) { t.Actions[1] = t.Actions[1][:2] }},
		{"shift to unknown state", func(t *Table) { t.Actions[0][1].State = 7 }},
		{"reduce unknown production", func(t *Table) { t.Actions[1][0].Production = 3 }},
		{"goto unknown state", func(t *Table) { t.Gotos[0][0] = 5 }},
		{"terminal lhs", func(t *Table) { t.Productions[0].LHS = 1 }},
		{"bad field", func(t *Table) { t.Productions[0].Fields = []FieldMapEntry{{Field: 1}} }},
		{"terminal both kinds", func(t *Table) { t.Terminals[0].Pattern = "h" }},
		{"end as terminal", func(t *Table) { t.Terminals[0].Symbol = SymbolEnd }},
		{"nonterminal extra", func(t *Table) { t.Extras = []Symbol{3} }},
		{"bad pattern", func(t *Table) { t.Terminals[1].Pattern = "(" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := helloTable()
			tt.mutate(table)
			_, err := NewLanguage(table)
			if !errors.Is(err, types.ErrInvalidTable) {
				t.Errorf("NewLanguage() error = %v, want ErrInvalidTable", err)
			}
		})
	}

	if _, err := NewLanguage(nil); !errors.Is(err, types.ErrInvalidTable) {
		t.Errorf("NewLanguage(nil) error = %v, want ErrInvalidTable", err)
	}
}

func TestLexer(t *testing.T) {
	lang, err := NewLanguage(helloTable())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		src     string
		state   StateID
		symbol  Symbol
		padding uint32
		size    uint32
	}{
		{"token", "hello", 0, 1, 0, 5},
		{"leading whitespace", "  \nhello", 0, 1, 3, 5},
		{"end of input", "   ", 0, SymbolEnd, 3, 0},
		{"invalid in state falls back", "hello", 1, 1, 0, 5},
		{"unrecognized run", "xyz hello", 0, SymbolError, 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lx := newLexer(lang, []byte(tt.src))
			tok := lx.lex(Length{}, lang.lexMode(tt.state))
			if tok.symbol != tt.symbol {
				t.Errorf("symbol = %d, want %d", tok.symbol, tt.symbol)
			}
			if tok.padding.Bytes != tt.padding {
				t.Errorf("padding = %d, want %d", tok.padding.Bytes, tt.padding)
			}
			if tok.size.Bytes != tt.size {
				t.Errorf("size = %d, want %d", tok.size.Bytes, tt.size)
			}
		})
	}
}

func TestLexerPadding(t *testing.T) {
	lang, err := NewLanguage(helloTable())
	if err != nil {
		t.Fatal(err)
	}
	tok := newLexer(lang, []byte("\n\n  hello")).lex(Length{}, lang.lexMode(0))
	want := Point{Row: 2, Column: 2}
	if tok.padding.Extent != want {
		t.Errorf("padding extent = %v, want %v", tok.padding.Extent, want)
	}
}
