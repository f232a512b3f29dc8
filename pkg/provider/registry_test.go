package provider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcs090218/tree-sitter-actionscript/pkg/grammar"
	"github.com/jcs090218/tree-sitter-actionscript/pkg/sitter"
	"github.com/jcs090218/tree-sitter-actionscript/pkg/types"
)

func helloFactory() (*sitter.Language, error) {
	return grammar.New("hello").Rule("source_file", grammar.Str("hello")).Build()
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("hello", []string{".hi", "HELLO"}, helloFactory)
	r.Register("broken", nil, func() (*sitter.Language, error) {
		return nil, types.ErrInvalidGrammar
	})

	assert.Equal(t, []string{"broken", "hello"}, r.List())
	assert.True(t, r.Has("hello"))
	assert.False(t, r.Has("world"))
	assert.Equal(t, []string{".hello", ".hi"}, r.Extensions("hello"))

	lang, err := r.Get("hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", lang.Name())

	tests := []struct {
		path string
		want string
		err  error
	}{
		{"a/b/greeting.hi", "hello", nil},
		{"GREETING.HI", "hello", nil},
		{"x.hello", "hello", nil},
		{"x.txt", "", types.ErrUnknownLanguage},
		{"noext", "", types.ErrUnknownLanguage},
	}
	for _, tt := range tests {
		lang, err := r.ForPath(tt.path)
		if tt.err != nil {
			assert.True(t, errors.Is(err, tt.err), "ForPath(%q) error = %v", tt.path, err)
			continue
		}
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, lang.Name())
	}

	_, err = r.Get("world")
	assert.ErrorIs(t, err, types.ErrUnknownLanguage)
	assert.Contains(t, err.Error(), "available: [broken hello]")

	_, err = r.Get("broken")
	assert.ErrorIs(t, err, types.ErrInvalidGrammar)
}
