package tree_sitter_tree_sitter_actionscript

import "github.com/jcs090218/tree-sitter-actionscript/pkg/grammar"

// Grammar returns the ActionScript grammar definition.
func Grammar() *grammar.Grammar {
	return grammar.New("actionscript").
		Rule("source_file", grammar.Str("hello"))
}
