// Package provider maps language names and file extensions to grammar
// descriptors.
package provider

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jcs090218/tree-sitter-actionscript/pkg/sitter"
	"github.com/jcs090218/tree-sitter-actionscript/pkg/types"
)

// LanguageFactory returns a grammar descriptor.
type LanguageFactory func() (*sitter.Language, error)

// Registry holds language factories by name and file extension.
type Registry struct {
	mu sync.RWMutex

	factories  map[string]LanguageFactory
	extensions map[string]string // ".as" -> "actionscript"
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories:  make(map[string]LanguageFactory),
		extensions: make(map[string]string),
	}
}

// Register registers a language factory under name, claiming the given
// file extensions. Re-registering a name replaces its factory.
func (r *Registry) Register(name string, exts []string, factory LanguageFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	for _, ext := range exts {
		r.extensions[normalizeExt(ext)] = name
	}
}

// Get returns the language registered under name.
func (r *Registry) Get(name string) (*sitter.Language, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %v)", types.ErrUnknownLanguage, name, r.List())
	}
	lang, err := factory()
	if err != nil {
		return nil, fmt.Errorf("failed to load language %s: %w", name, err)
	}
	return lang, nil
}

// NameForPath returns the language name claiming the extension of path.
func (r *Registry) NameForPath(path string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.extensions[normalizeExt(filepath.Ext(path))]
	return name, ok
}

// ForPath returns the language for a file path, chosen by extension.
func (r *Registry) ForPath(path string) (*sitter.Language, error) {
	name, ok := r.NameForPath(path)
	if !ok {
		return nil, fmt.Errorf("%w: no language for %s", types.ErrUnknownLanguage, path)
	}
	return r.Get(name)
}

// List returns registered language names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Extensions returns the extensions claimed by name, sorted.
func (r *Registry) Extensions(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var exts []string
	for ext, n := range r.extensions {
		if n == name {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}

// Has reports whether a language is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// DefaultRegistry is the global registry used by builtin registrations.
var DefaultRegistry = NewRegistry()

// Register registers a language with the default registry.
func Register(name string, exts []string, factory LanguageFactory) {
	DefaultRegistry.Register(name, exts, factory)
}

// Get returns a language from the default registry.
func Get(name string) (*sitter.Language, error) {
	return DefaultRegistry.Get(name)
}

// ForPath returns the language for path from the default registry.
func ForPath(path string) (*sitter.Language, error) {
	return DefaultRegistry.ForPath(path)
}

// List returns the names registered with the default registry.
func List() []string {
	return DefaultRegistry.List()
}
