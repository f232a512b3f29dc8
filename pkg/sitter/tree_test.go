package sitter_test

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	g "github.com/jcs090218/tree-sitter-actionscript/pkg/grammar"
	"github.com/jcs090218/tree-sitter-actionscript/pkg/sitter"
)

type textEdit struct {
	name    string
	find    string // text to replace; the first occurrence is used
	replace string
}

func applyEdit(t *testing.T, src string, e textEdit) (string, sitter.InputEdit) {
	t.Helper()
	start := strings.Index(src, e.find)
	require.GreaterOrEqual(t, start, 0, "%q not found", e.find)
	end := start + len(e.find)
	edit := sitter.EditFor([]byte(src), uint32(start), uint32(end), []byte(e.replace))
	return src[:start] + e.replace + src[end:], edit
}

func reparse(t *testing.T, lang *sitter.Language, src string, e textEdit) (incremental, fresh *sitter.Tree) {
	t.Helper()
	p := sitter.NewParser()
	require.NoError(t, p.SetLanguage(lang))

	old, err := p.Parse([]byte(src), nil)
	require.NoError(t, err)
	before := old.RootNode().String()

	newSrc, edit := applyEdit(t, src, e)
	edited := old.Edit(edit)
	assert.Equal(t, before, old.RootNode().String(), "Edit must not modify the original tree")

	incremental, err = p.Parse([]byte(newSrc), edited)
	require.NoError(t, err)

	fresh, err = p.Parse([]byte(newSrc), nil)
	require.NoError(t, err)
	return incremental, fresh
}

func TestIncrementalJSON(t *testing.T) {
	lang := jsonLanguage(t)
	src := `{"a": 1, "b": [true, false], "c": "x"}`

	edits := []textEdit{
		{"grow number", "1", "100"},
		{"replace literal", "true", "null"},
		{"delete element", ", false", ""},
		{"insert pair", `"x"`, `"x", "d": {"e": []}`},
		{"insert comment", `"b"`, "// note\n\"b\""},
		{"rename key", `"c"`, `"cc"`},
		{"break syntax", `: 1`, ` 1`},
		{"nest array", "[true, false]", "[[true], [false, 2]]"},
	}

	for _, e := range edits {
		t.Run(e.name, func(t *testing.T) {
			incremental, fresh := reparse(t, lang, src, e)
			assert.Equal(t, fresh.RootNode().String(), incremental.RootNode().String())
			assert.Equal(t, fresh.RootNode().EndByte(), incremental.RootNode().EndByte())
			assert.Equal(t, fresh.RootNode().HasError(), incremental.RootNode().HasError())
		})
	}
}

func TestIncrementalArithmetic(t *testing.T) {
	lang := arithmeticLanguage(t)
	src := "1 + 2 * 3 - 4\n# trailing\n5"

	edits := []textEdit{
		{"change precedence", "*", "+"},
		{"raise precedence", "+", "^"},
		{"split number", "3", "3 3"},
		{"join lines", "4\n", "4 "},
		{"remove comment", "# trailing\n", ""},
		{"parenthesize", "2 * 3", "(2 * 3)"},
		{"unbalanced", "2 * 3", "(2 * 3"},
	}

	for _, e := range edits {
		t.Run(e.name, func(t *testing.T) {
			incremental, fresh := reparse(t, lang, src, e)
			assert.Equal(t, fresh.RootNode().String(), incremental.RootNode().String())
		})
	}
}

func TestIncrementalHello(t *testing.T) {
	incremental, fresh := reparse(t, helloLanguage(t), "hello", textEdit{"indent", "hello", "  hello"})
	assert.Equal(t, "(source_file)", incremental.RootNode().String())
	assert.Equal(t, fresh.RootNode().String(), incremental.RootNode().String())
	assert.Equal(t, uint32(2), incremental.RootNode().StartByte())
}

func TestIncrementalWithErrors(t *testing.T) {
	arithmetic := arithmeticLanguage(t)
	json := jsonLanguage(t)

	tests := []struct {
		name string
		lang *sitter.Language
		src  string
		edit textEdit
	}{
		{"unchanged stray paren", arithmetic, "23)+# c^\n(1^", textEdit{find: "1", replace: "1"}},
		{"unchanged open paren", arithmetic, "#(233 # c\n3* (", textEdit{find: "3*", replace: "3*"}},
		{"close paren", arithmetic, "23)+# c^\n(1^", textEdit{find: ")", replace: ""}},
		{"complete operand", arithmetic, "1 + * 2", textEdit{find: "* ", replace: "3 * "}},
		{"break operand", arithmetic, "(1 + 2) * 3", textEdit{find: "2)", replace: "2 +)"}},
		{"unterminated string", json, `{"a": "b", "c": 1}`, textEdit{find: `"b"`, replace: `"b`}},
		{"terminate string", json, `{"a": "b, "c": 1}`, textEdit{find: `"b,`, replace: `"b",`}},
		{"stray comma", json, `[1,, 2]`, textEdit{find: ",,", replace: ","}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			incremental, fresh := reparse(t, tt.lang, tt.src, tt.edit)
			assert.Equal(t, fresh.RootNode().String(), incremental.RootNode().String())
		})
	}
}

func TestReparseUnchangedWithErrors(t *testing.T) {
	tests := []struct {
		lang *sitter.Language
		src  string
	}{
		{arithmeticLanguage(t), "23)+# c^\n(1^"},
		{arithmeticLanguage(t), "#(233 # c\n3* ("},
		{arithmeticLanguage(t), ") ) 1 ( + 2"},
		{jsonLanguage(t), `{"a" 1, "b": [}`},
		{jsonLanguage(t), `[1 2 "x, ]`},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			p := sitter.NewParser()
			require.NoError(t, p.SetLanguage(tt.lang))
			old, err := p.Parse([]byte(tt.src), nil)
			require.NoError(t, err)
			require.True(t, old.RootNode().HasError())

			again, err := p.Parse([]byte(tt.src), old)
			require.NoError(t, err)
			assert.Equal(t, old.RootNode().String(), again.RootNode().String())
		})
	}
}

func TestIncrementalLiteralPrefix(t *testing.T) {
	lang, err := g.New("dots").
		Rule("source", g.Repeat(g.Choice(g.Str("."), g.Str("...."), g.Str("x")))).
		Build()
	require.NoError(t, err)

	src := "...x"
	before := parse(t, lang, src)
	require.Equal(t, uint32(4), before.RootNode().ChildCount())

	incremental, fresh := reparse(t, lang, src, textEdit{find: "x", replace: "."})
	assert.Equal(t, uint32(1), fresh.RootNode().ChildCount())
	assert.Equal(t, fresh.RootNode().String(), incremental.RootNode().String())
	assert.Equal(t, fresh.RootNode().ChildCount(), incremental.RootNode().ChildCount())
}

// randomEdits applies seeded random edits one after another, re-parsing
// each result incrementally from the previous tree, and compares every
// tree with a fresh parse of the same text.
func randomEdits(t *testing.T, lang *sitter.Language, src string, pieces []string, seed int64, rounds int) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	p := sitter.NewParser()
	require.NoError(t, p.SetLanguage(lang))
	fresh := sitter.NewParser()
	require.NoError(t, fresh.SetLanguage(lang))

	tree, err := p.Parse([]byte(src), nil)
	require.NoError(t, err)

	for i := 0; i < rounds; i++ {
		start := rng.Intn(len(src) + 1)
		end := start + rng.Intn(min(3, len(src)-start)+1)
		repl := ""
		if rng.Intn(4) > 0 {
			repl = pieces[rng.Intn(len(pieces))]
		}

		edit := sitter.EditFor([]byte(src), uint32(start), uint32(end), []byte(repl))
		next := src[:start] + repl + src[end:]

		tree, err = p.Parse([]byte(next), tree.Edit(edit))
		require.NoError(t, err)
		want, err := fresh.Parse([]byte(next), nil)
		require.NoError(t, err)

		if !assert.Equal(t, want.RootNode().String(), tree.RootNode().String(),
			"round %d: %q -> %q", i, src, next) {
			return
		}
		src = next
		if len(src) > 200 {
			// Keep texts small so every round stays quick.
			src = "1 + 2"
			if lang.Name() == "json" {
				src = `{"a": [1]}`
			}
			tree, err = p.Parse([]byte(src), nil)
			require.NoError(t, err)
		}
	}
}

func TestIncrementalRandomEdits(t *testing.T) {
	tests := []struct {
		name   string
		lang   *sitter.Language
		src    string
		pieces []string
	}{
		{
			name:   "arithmetic",
			lang:   arithmeticLanguage(t),
			src:    "1 + 2 * (3 - 4)\n# note\n5 ^ 6",
			pieces: []string{"1", "23", "+", "-", "*", "^", "(", ")", " ", "\n", "# c\n", "#"},
		},
		{
			name:   "json",
			lang:   jsonLanguage(t),
			src:    `{"a": [1, true], "b": {"c": null}}`,
			pieces: []string{"{", "}", "[", "]", ",", ":", `"k"`, `"`, "1", "-", ".5", "true", "nul", " ", "// n\n", "\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for seed := int64(1); seed <= 5; seed++ {
				randomEdits(t, tt.lang, tt.src, tt.pieces, seed, 200)
			}
		})
	}
}

func TestIncrementalReuse(t *testing.T) {
	lang := jsonLanguage(t)
	items := make([]string, 50)
	for i := range items {
		items[i] = fmt.Sprint(i)
	}
	src := "[" + strings.Join(items, ", ") + "]"

	p := sitter.NewParser()
	require.NoError(t, p.SetLanguage(lang))
	old, err := p.Parse([]byte(src), nil)
	require.NoError(t, err)

	newSrc, edit := applyEdit(t, src, textEdit{find: "49", replace: "4900"})
	tree, err := p.Parse([]byte(newSrc), old.Edit(edit))
	require.NoError(t, err)

	stats := p.Stats()
	assert.Positive(t, stats.ReusedNodes)
	assert.Greater(t, stats.ReusedBytes, uint32(len(src)/2))
	assert.Less(t, stats.Tokens, 10, "only the edited region should be lexed")
	assert.Equal(t, uint32(50), tree.RootNode().NamedChild(0).NamedChildCount())

	// Re-parsing unchanged text reuses everything but the end of input.
	same, err := p.Parse([]byte(src), old)
	require.NoError(t, err)
	assert.Equal(t, old.RootNode().String(), same.RootNode().String())
	assert.Equal(t, 1, p.Stats().Tokens)
}

func TestEditSharesUnchangedSubtrees(t *testing.T) {
	src := "[1, 2, 3]"
	old := parse(t, jsonLanguage(t), src)

	_, edit := applyEdit(t, src, textEdit{find: "3", replace: "30"})
	edited := old.Edit(edit)

	oldArray := old.RootNode().NamedChild(0)
	newArray := edited.RootNode().NamedChild(0)

	assert.Same(t, sitter.SubtreeOf(oldArray.NamedChild(0)), sitter.SubtreeOf(newArray.NamedChild(0)))
	assert.NotSame(t, sitter.SubtreeOf(oldArray), sitter.SubtreeOf(newArray))

	assert.True(t, edited.RootNode().HasChanges())
	assert.False(t, old.RootNode().HasChanges())
	assert.False(t, newArray.NamedChild(0).HasChanges())
	assert.True(t, newArray.NamedChild(2).HasChanges())
	assert.Equal(t, uint32(10), edited.RootNode().EndByte())
	assert.Equal(t, uint32(9), old.RootNode().EndByte())
}

func TestChangedRanges(t *testing.T) {
	lang := arithmeticLanguage(t)
	src := "1 + 2"

	p := sitter.NewParser()
	require.NoError(t, p.SetLanguage(lang))
	old, err := p.Parse([]byte(src), nil)
	require.NoError(t, err)

	newSrc, edit := applyEdit(t, src, textEdit{find: "+", replace: "*"})
	edited := old.Edit(edit)
	tree, err := p.Parse([]byte(newSrc), edited)
	require.NoError(t, err)

	ranges := edited.ChangedRanges(tree)
	require.Len(t, ranges, 1)
	assert.Equal(t, uint32(2), ranges[0].StartByte)
	assert.Equal(t, uint32(3), ranges[0].EndByte)
	assert.Equal(t, sitter.Point{Column: 2}, ranges[0].StartPoint)

	assert.Empty(t, tree.ChangedRanges(tree))
}

func TestChangedRangesStructure(t *testing.T) {
	lang := arithmeticLanguage(t)
	src := "1 + 2 * 3"

	p := sitter.NewParser()
	require.NoError(t, p.SetLanguage(lang))
	old, err := p.Parse([]byte(src), nil)
	require.NoError(t, err)

	newSrc, edit := applyEdit(t, src, textEdit{find: "*", replace: "-"})
	edited := old.Edit(edit)
	tree, err := p.Parse([]byte(newSrc), edited)
	require.NoError(t, err)

	// Every leaf moves under a different binary node, so the whole
	// expression is reported.
	ranges := edited.ChangedRanges(tree)
	require.Len(t, ranges, 1)
	assert.Equal(t, uint32(0), ranges[0].StartByte)
	assert.Equal(t, uint32(9), ranges[0].EndByte)
}
