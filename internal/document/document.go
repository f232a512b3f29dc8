// Package document keeps a source text together with its syntax tree and
// re-parses incrementally as the text changes.
package document

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jcs090218/tree-sitter-actionscript/pkg/sitter"
	"github.com/jcs090218/tree-sitter-actionscript/pkg/types"
)

// Option configures a Document.
type Option func(*Document)

// WithTimeout bounds each parse.
func WithTimeout(d time.Duration) Option {
	return func(doc *Document) {
		if d > 0 {
			doc.parser.SetTimeoutMicros(uint64(d.Microseconds()))
		}
	}
}

// WithLogger routes parser events to logger.
func WithLogger(logger hclog.Logger) Option {
	return func(doc *Document) { doc.parser.SetLogger(logger) }
}

// Document is a text buffer with an up-to-date syntax tree. It is safe for
// concurrent use.
type Document struct {
	mu     sync.Mutex
	parser *sitter.Parser
	text   []byte
	tree   *sitter.Tree
	last   Update
}

// Update describes the most recent parse of a document.
type Update struct {
	Incremental bool
	Duration    time.Duration
	Stats       sitter.ParseStats
	Changed     []sitter.Range
}

// New parses text with lang and returns the document.
func New(ctx context.Context, lang *sitter.Language, text []byte, opts ...Option) (*Document, error) {
	doc := &Document{parser: sitter.NewParser()}
	if err := doc.parser.SetLanguage(lang); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(doc)
	}
	doc.text = append([]byte(nil), text...)
	if err := doc.reparse(ctx, nil); err != nil {
		return nil, err
	}
	return doc, nil
}

// Text returns a copy of the current text.
func (d *Document) Text() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.text...)
}

// Tree returns the current syntax tree.
func (d *Document) Tree() *sitter.Tree {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tree
}

// LastUpdate describes the most recent parse.
func (d *Document) LastUpdate() Update {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Replace replaces the bytes in [start, end) with text, re-parses
// incrementally and returns the ranges whose syntax changed.
func (d *Document) Replace(ctx context.Context, start, end uint32, text []byte) ([]sitter.Range, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if start > end || int(end) > len(d.text) {
		return nil, fmt.Errorf("%w: range [%d, %d) outside document of %d bytes",
			types.ErrInvalidEdit, start, end, len(d.text))
	}
	return d.apply(ctx, start, end, text)
}

// SetText replaces the whole text. The old and new text are compared by
// their common prefix and suffix so that only the differing span is
// treated as edited.
func (d *Document) SetText(ctx context.Context, text []byte) ([]sitter.Range, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	start, oldEnd, newEnd := diffSpan(d.text, text)
	if start == oldEnd && start == newEnd {
		d.last = Update{Incremental: true}
		return nil, nil
	}
	return d.apply(ctx, start, oldEnd, text[start:newEnd])
}

func (d *Document) apply(ctx context.Context, start, end uint32, repl []byte) ([]sitter.Range, error) {
	edit := sitter.EditFor(d.text, start, end, repl)

	next := make([]byte, 0, len(d.text)-int(end-start)+len(repl))
	next = append(next, d.text[:start]...)
	next = append(next, repl...)
	next = append(next, d.text[end:]...)

	old := d.tree.Edit(edit)
	prevText, prevTree := d.text, d.tree
	d.text = next
	if err := d.reparse(ctx, old); err != nil {
		d.text, d.tree = prevText, prevTree
		return nil, err
	}
	d.last.Changed = old.ChangedRanges(d.tree)
	return d.last.Changed, nil
}

func (d *Document) reparse(ctx context.Context, old *sitter.Tree) error {
	started := time.Now()
	tree, err := d.parser.ParseCtx(ctx, d.text, old)
	if err != nil {
		return fmt.Errorf("parse failed: %w", err)
	}
	d.tree = tree
	d.last = Update{
		Incremental: old != nil,
		Duration:    time.Since(started),
		Stats:       d.parser.Stats(),
	}
	return nil
}

// diffSpan returns the differing span between a and b as a start offset,
// the end of the span in a and the end of the span in b.
func diffSpan(a, b []byte) (start, oldEnd, newEnd uint32) {
	p := 0
	for p < len(a) && p < len(b) && a[p] == b[p] {
		p++
	}
	s := 0
	for s < len(a)-p && s < len(b)-p && a[len(a)-1-s] == b[len(b)-1-s] {
		s++
	}
	return uint32(p), uint32(len(a) - s), uint32(len(b) - s)
}
