package sitter_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tevino/abool/v2"

	g "github.com/jcs090218/tree-sitter-actionscript/pkg/grammar"
	"github.com/jcs090218/tree-sitter-actionscript/pkg/sitter"
	"github.com/jcs090218/tree-sitter-actionscript/pkg/types"
)

func TestParseHello(t *testing.T) {
	lang := helloLanguage(t)

	tests := []struct {
		name     string
		src      string
		want     string
		hasError bool
	}{
		{"exact", "hello", "(source_file)", false},
		{"surrounding whitespace", "  hello\n", "(source_file)", false},
		{"empty", "", `(source_file (MISSING "hello"))`, true},
		{"misspelled", "hallo", `(source_file (ERROR) (MISSING "hello"))`, true},
		{"repeated", "hello hello", "(source_file (ERROR))", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := parse(t, lang, tt.src)
			root := tree.RootNode()
			if got := root.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if got := root.HasError(); got != tt.hasError {
				t.Errorf("HasError() = %v, want %v", got, tt.hasError)
			}
			if got := root.EndByte(); got != uint32(len(tt.src)) {
				t.Errorf("EndByte() = %d, want %d", got, len(tt.src))
			}
		})
	}
}

func TestParseHelloPositions(t *testing.T) {
	tree := parse(t, helloLanguage(t), "\n  hello ")
	root := tree.RootNode()

	assert.Equal(t, "source_file", root.Type())
	assert.Equal(t, uint32(3), root.StartByte())
	assert.Equal(t, sitter.Point{Row: 1, Column: 2}, root.StartPoint())
	assert.Equal(t, uint32(1), root.ChildCount())
	assert.Equal(t, uint32(0), root.NamedChildCount())

	hello := root.Child(0)
	assert.Equal(t, "hello", hello.Type())
	assert.False(t, hello.IsNamed())
	assert.Equal(t, uint32(3), hello.StartByte())
	assert.Equal(t, uint32(8), hello.EndByte())
	assert.Equal(t, "hello", hello.Content([]byte("\n  hello ")))
	assert.True(t, root.Child(1).IsNull())
}

func TestParseArithmetic(t *testing.T) {
	lang := arithmeticLanguage(t)

	tests := []struct {
		name     string
		src      string
		want     string
		hasError bool
	}{
		{
			name: "precedence",
			src:  "1 + 2 * 3",
			want: "(program (binary left: (number) right: (binary left: (number) right: (number))))",
		},
		{
			name: "left associative",
			src:  "1 - 2 - 3",
			want: "(program (binary left: (binary left: (number) right: (number)) right: (number)))",
		},
		{
			name: "right associative",
			src:  "2 ^ 3 ^ 4",
			want: "(program (binary left: (number) right: (binary left: (number) right: (number))))",
		},
		{
			name: "parentheses",
			src:  "(1 + 2) * 3",
			want: "(program (binary left: (parenthesized (binary left: (number) right: (number))) right: (number)))",
		},
		{
			name: "comments are extras",
			src:  "1 2 # note\n3",
			want: "(program (number) (number) (comment) (number))",
		},
		{
			name: "only a comment",
			src:  "# nothing here",
			want: "(program (comment))",
		},
		{
			name: "empty",
			src:  "",
			want: "(program)",
		},
		{
			name:     "missing operand",
			src:      "1 +",
			want:     "(program (binary left: (number) right: (MISSING number)))",
			hasError: true,
		},
		{
			name:     "unexpected token",
			src:      "1 )",
			want:     "(program (number) (ERROR))",
			hasError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := parse(t, lang, tt.src).RootNode()
			if got := root.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if got := root.HasError(); got != tt.hasError {
				t.Errorf("HasError() = %v, want %v", got, tt.hasError)
			}
		})
	}
}

func TestParseJSON(t *testing.T) {
	lang := jsonLanguage(t)

	tests := []struct {
		src  string
		want string
	}{
		{
			src:  `{"a": [1, 2], "b": null}`,
			want: "(document (object (pair key: (string) value: (array (number) (number))) (pair key: (string) value: (null))))",
		},
		{
			src:  `[true, false, -1.5, "x"]`,
			want: "(document (array (true) (false) (number) (string)))",
		},
		{
			src:  "{\"a\": 1 // note\n}",
			want: "(document (object (pair key: (string) value: (number)) (comment)))",
		},
		{
			src:  "{}",
			want: "(document (object))",
		},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			root := parse(t, lang, tt.src).RootNode()
			assert.Equal(t, tt.want, root.String())
			assert.False(t, root.HasError())
		})
	}
}

func TestNodeNavigation(t *testing.T) {
	src := []byte(`{"a": 1, "b": 2}`)
	root := parse(t, jsonLanguage(t), string(src)).RootNode()

	object := root.NamedChild(0)
	require.Equal(t, "object", object.Type())
	assert.Equal(t, uint32(5), object.ChildCount())
	assert.Equal(t, uint32(2), object.NamedChildCount())
	assert.Len(t, object.Children(), 5)
	assert.Len(t, object.NamedChildren(), 2)

	first := object.NamedChild(0)
	second := object.NamedChild(1)
	assert.Equal(t, "pair", second.Type())
	assert.Equal(t, `"b"`, second.ChildByFieldName("key").Content(src))
	assert.Equal(t, "number", second.ChildByFieldName("value").Type())
	assert.True(t, second.ChildByFieldName("missing").IsNull())
	assert.Equal(t, "key", second.FieldNameForChild(0))
	assert.Equal(t, "", second.FieldNameForChild(1))
	assert.Equal(t, ":", second.Child(1).Type())
	assert.Equal(t, "object", second.Parent().Type())
	assert.True(t, root.Parent().IsNull())

	comma := first.NextSibling()
	assert.Equal(t, ",", comma.Type())
	assert.Equal(t, "pair", comma.NextSibling().Type())
	assert.Equal(t, uint32(9), comma.NextSibling().StartByte())
	assert.Equal(t, "{", first.PrevSibling().Type())
	assert.True(t, object.Child(0).PrevSibling().IsNull())
	assert.True(t, object.Child(4).NextSibling().IsNull())

	number := root.NamedDescendantForByteRange(14, 15)
	assert.Equal(t, "number", number.Type())
	assert.Equal(t, "2", number.Content(src))
	assert.Equal(t, "value", number.FieldName())

	assert.Equal(t, ",", root.DescendantForByteRange(7, 8).Type())
	assert.Equal(t, "number", root.DescendantForPointRange(sitter.Point{Column: 14}, sitter.Point{Column: 15}).Type())
	assert.Equal(t, "object", root.NamedDescendantForByteRange(0, 16).Type())
}

func TestTreeCursor(t *testing.T) {
	root := parse(t, jsonLanguage(t), `{"k": 1}`).RootNode()

	c := root.Walk()
	require.True(t, c.GotoFirstChild())
	assert.Equal(t, "object", c.CurrentNode().Type())
	require.True(t, c.GotoFirstChild())
	assert.Equal(t, "{", c.CurrentNode().Type())
	require.True(t, c.GotoNextSibling())
	assert.Equal(t, "pair", c.CurrentNode().Type())
	require.True(t, c.GotoFirstChild())
	assert.Equal(t, "string", c.CurrentNode().Type())
	assert.Equal(t, "key", c.CurrentFieldName())
	require.True(t, c.GotoNextSibling())
	assert.Equal(t, "", c.CurrentFieldName())
	require.True(t, c.GotoNextSibling())
	assert.Equal(t, "number", c.CurrentNode().Type())
	assert.Equal(t, "value", c.CurrentFieldName())
	assert.Equal(t, 3, c.Depth())
	assert.False(t, c.GotoNextSibling())

	assert.True(t, c.GotoParent())
	assert.True(t, c.GotoParent())
	assert.True(t, c.GotoParent())
	assert.False(t, c.GotoParent())
	assert.Equal(t, "document", c.CurrentNode().Type())
	assert.False(t, c.GotoNextSibling())

	c.Reset(root.NamedChild(0))
	assert.Equal(t, "object", c.CurrentNode().Type())
	assert.False(t, c.GotoParent())
}

func TestTreeCursorVisit(t *testing.T) {
	tree := parse(t, jsonLanguage(t), `[1, "a"]`)

	var kinds []string
	var depths []int
	tree.Walk().Visit(func(n sitter.Node, depth int) bool {
		kinds = append(kinds, n.Type())
		depths = append(depths, depth)
		return true
	})
	assert.Equal(t, []string{"document", "array", "[", "number", ",", "string", "]"}, kinds)
	assert.Equal(t, []int{0, 1, 2, 2, 2, 2, 2}, depths)

	var named []string
	tree.Walk().Visit(func(n sitter.Node, depth int) bool {
		named = append(named, n.Type())
		return n.Type() != "array"
	})
	assert.Equal(t, []string{"document", "array"}, named)
}

func TestParserLanguage(t *testing.T) {
	p := sitter.NewParser()
	_, err := p.Parse([]byte("hello"), nil)
	assert.ErrorIs(t, err, types.ErrNoLanguage)
	assert.ErrorIs(t, p.SetLanguage(nil), types.ErrNoLanguage)

	for _, version := range []uint32{sitter.MinCompatibleLanguageVersion - 1, sitter.LanguageVersion + 1} {
		table, err := g.New("old").Rule("source_file", g.Str("hello")).Compile()
		require.NoError(t, err)
		table.Version = version
		lang, err := sitter.NewLanguage(table)
		require.NoError(t, err)
		assert.ErrorIs(t, p.SetLanguage(lang), types.ErrIncompatibleLanguage, "version %d", version)
		assert.Nil(t, p.Language())
	}

	lang := helloLanguage(t)
	require.NoError(t, p.SetLanguage(lang))
	assert.Same(t, lang, p.Language())
}

func TestParserCancellation(t *testing.T) {
	lang := arithmeticLanguage(t)
	src := []byte(strings.Repeat("1 + ", 2000) + "1")

	t.Run("flag", func(t *testing.T) {
		p := sitter.NewParser()
		require.NoError(t, p.SetLanguage(lang))
		flag := abool.New()
		flag.Set()
		p.SetCancellationFlag(flag)
		assert.Same(t, flag, p.CancellationFlag())

		_, err := p.Parse(src, nil)
		assert.ErrorIs(t, err, types.ErrCancelled)

		flag.UnSet()
		tree, err := p.Parse(src, nil)
		require.NoError(t, err)
		assert.False(t, tree.RootNode().HasError())
	})

	t.Run("context", func(t *testing.T) {
		p := sitter.NewParser()
		require.NoError(t, p.SetLanguage(lang))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := p.ParseCtx(ctx, src, nil)
		assert.ErrorIs(t, err, types.ErrCancelled)
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("timeout", func(t *testing.T) {
		p := sitter.NewParser()
		require.NoError(t, p.SetLanguage(lang))
		p.SetTimeoutMicros(1)
		assert.Equal(t, uint64(1), p.TimeoutMicros())

		_, err := p.Parse(src, nil)
		assert.ErrorIs(t, err, types.ErrTimeout)
	})
}

func TestParserStats(t *testing.T) {
	p := sitter.NewParser()
	require.NoError(t, p.SetLanguage(arithmeticLanguage(t)))

	_, err := p.Parse([]byte("1 + 2"), nil)
	require.NoError(t, err)
	stats := p.Stats()
	assert.Equal(t, 4, stats.Tokens)
	assert.Zero(t, stats.Recoveries)

	p.Reset()
	assert.Equal(t, sitter.ParseStats{}, p.Stats())
}

func TestParserLogger(t *testing.T) {
	var buf bytes.Buffer
	p := sitter.NewParser()
	require.NoError(t, p.SetLanguage(helloLanguage(t)))
	p.SetLogger(hclog.New(&hclog.LoggerOptions{
		Name:   "parse",
		Output: &buf,
		Level:  hclog.Trace,
	}))

	_, err := p.Parse([]byte("hallo"), nil)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "lex")
	assert.Contains(t, out, "recover")
	assert.Contains(t, out, "accept")

	p.SetLogger(nil)
	assert.NotNil(t, p.Logger())
}
