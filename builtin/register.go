// Package builtin registers the built-in languages with the default registry.
package builtin

import (
	actionscript "github.com/jcs090218/tree-sitter-actionscript/bindings/go"
	"github.com/jcs090218/tree-sitter-actionscript/pkg/provider"
	"github.com/jcs090218/tree-sitter-actionscript/pkg/sitter"
)

// Extensions claimed by the ActionScript language.
var actionscriptExts = []string{".as"}

func init() {
	RegisterAll(provider.DefaultRegistry)
}

// RegisterAll registers every built-in language with reg.
func RegisterAll(reg *provider.Registry) {
	reg.Register("actionscript", actionscriptExts, func() (*sitter.Language, error) {
		return actionscript.Language(), nil
	})
}
