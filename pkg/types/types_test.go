package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeHash(t *testing.T) {
	f := &SourceFile{Content: []byte("hello")}
	h := f.ComputeHash()
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashContent([]byte("hello")))
	assert.NotEqual(t, h, HashContent([]byte("hello ")))
	// blake3 of the empty input
	assert.Equal(t, "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262", HashContent(nil))
}

func TestParseReportHasErrors(t *testing.T) {
	assert.False(t, (&ParseReport{}).HasErrors())
	assert.True(t, (&ParseReport{Errors: 1}).HasErrors())
	assert.True(t, (&ParseReport{Missing: 2}).HasErrors())
}

func TestSentinelWrapping(t *testing.T) {
	err := fmt.Errorf("lookup %q: %w", "mxml", ErrUnknownLanguage)
	assert.True(t, errors.Is(err, ErrUnknownLanguage))
	assert.False(t, errors.Is(err, ErrNotFound))
}
