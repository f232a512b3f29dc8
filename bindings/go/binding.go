// Package tree_sitter_tree_sitter_actionscript provides the ActionScript
// language for the sitter parsing runtime.
package tree_sitter_tree_sitter_actionscript

import (
	"sync"

	"github.com/jcs090218/tree-sitter-actionscript/pkg/sitter"
)

var (
	once     sync.Once
	language *sitter.Language
)

// Language returns the ActionScript language. The grammar is compiled on
// first use; every call returns the same immutable descriptor.
func Language() *sitter.Language {
	once.Do(func() {
		lang, err := Grammar().Build()
		if err != nil {
			panic("actionscript: grammar does not compile: " + err.Error())
		}
		language = lang
	})
	return language
}

// GetLanguage returns the ActionScript language.
func GetLanguage() *sitter.Language {
	return Language()
}
