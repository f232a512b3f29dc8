package sitter_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	g "github.com/jcs090218/tree-sitter-actionscript/pkg/grammar"
	"github.com/jcs090218/tree-sitter-actionscript/pkg/sitter"
)

func helloLanguage(t testing.TB) *sitter.Language {
	t.Helper()
	lang, err := g.New("hello").Rule("source_file", g.Str("hello")).Build()
	require.NoError(t, err)
	return lang
}

func arithmeticLanguage(t testing.TB) *sitter.Language {
	t.Helper()
	binary := func(prec int, assoc func(int, g.Rule) g.Rule, ops ...string) g.Rule {
		choices := make([]g.Rule, len(ops))
		for i, op := range ops {
			choices[i] = g.Str(op)
		}
		return assoc(prec, g.Seq(
			g.Field("left", g.Sym("_expression")),
			g.Field("operator", g.Choice(choices...)),
			g.Field("right", g.Sym("_expression")),
		))
	}
	lang, err := g.New("arithmetic").
		Rule("program", g.Repeat(g.Sym("_expression"))).
		Rule("_expression", g.Choice(g.Sym("binary"), g.Sym("number"), g.Sym("parenthesized"))).
		Rule("binary", g.Choice(
			binary(1, g.PrecLeft, "+", "-"),
			binary(2, g.PrecLeft, "*", "/"),
			binary(3, g.PrecRight, "^"),
		)).
		Rule("parenthesized", g.Seq(g.Str("("), g.Sym("_expression"), g.Str(")"))).
		Rule("number", g.Pat(`\d+`)).
		Rule("comment", g.Token(g.Seq(g.Str("#"), g.Pat(`[^\n]*`)))).
		Extras(g.Pat(`\s`), g.Sym("comment")).
		Build()
	require.NoError(t, err)
	return lang
}

func jsonLanguage(t testing.TB) *sitter.Language {
	t.Helper()
	commaSep := func(r g.Rule) g.Rule {
		return g.Optional(g.Seq(r, g.Repeat(g.Seq(g.Str(","), r))))
	}
	lang, err := g.New("json").
		Rule("document", g.Sym("_value")).
		Rule("_value", g.Choice(
			g.Sym("object"), g.Sym("array"), g.Sym("number"), g.Sym("string"),
			g.Sym("true"), g.Sym("false"), g.Sym("null"),
		)).
		Rule("object", g.Seq(g.Str("{"), commaSep(g.Sym("pair")), g.Str("}"))).
		Rule("pair", g.Seq(g.Field("key", g.Sym("string")), g.Str(":"), g.Field("value", g.Sym("_value")))).
		Rule("array", g.Seq(g.Str("["), commaSep(g.Sym("_value")), g.Str("]"))).
		Rule("string", g.Pat(`"[^"\n]*"`)).
		Rule("number", g.Pat(`-?\d+(\.\d+)?`)).
		Rule("true", g.Str("true")).
		Rule("false", g.Str("false")).
		Rule("null", g.Str("null")).
		Rule("comment", g.Token(g.Seq(g.Str("//"), g.Pat(`[^\n]*`)))).
		Extras(g.Pat(`\s`), g.Sym("comment")).
		Build()
	require.NoError(t, err)
	return lang
}

func parse(t testing.TB, lang *sitter.Language, src string) *sitter.Tree {
	t.Helper()
	p := sitter.NewParser()
	require.NoError(t, p.SetLanguage(lang))
	tree, err := p.ParseString(context.Background(), src, nil)
	require.NoError(t, err)
	return tree
}
