// Package index parses project files, keeps their syntax trees current and
// records each parse in the history store.
package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jcs090218/tree-sitter-actionscript/internal/analysis"
	"github.com/jcs090218/tree-sitter-actionscript/internal/config"
	"github.com/jcs090218/tree-sitter-actionscript/internal/document"
	"github.com/jcs090218/tree-sitter-actionscript/internal/store"
	"github.com/jcs090218/tree-sitter-actionscript/pkg/provider"
	"github.com/jcs090218/tree-sitter-actionscript/pkg/sitter"
	"github.com/jcs090218/tree-sitter-actionscript/pkg/types"
)

// Indexer parses files and keeps one document per file so that later
// parses of the same file are incremental.
type Indexer struct {
	config      *config.Config
	registry    *provider.Registry
	store       *store.Store
	projectDir  string
	parseLogger hclog.Logger
	maxFileSize int64

	mu   sync.Mutex
	docs map[string]*entry
}

// entry is a parsed file held in memory.
type entry struct {
	doc  *document.Document
	hash string // blake3 of the text doc was last parsed from
}

// Config contains indexer configuration.
type Config struct {
	ProjectDir  string
	Config      *config.Config
	Registry    *provider.Registry // nil = provider.DefaultRegistry
	Store       *store.Store       // nil = no history
	ParseLogger hclog.Logger       // parser debug events, nil = discard
}

// Result is the outcome of parsing one file.
type Result struct {
	Report  types.ParseReport
	Summary *analysis.Summary
	Tree    *sitter.Tree
	Changed []sitter.Range // ranges changed since the previous parse
	Skipped bool           // content identical to the previous parse
}

// New creates a new indexer.
func New(cfg Config) *Indexer {
	c := cfg.Config
	if c == nil {
		c = config.DefaultConfig()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = provider.DefaultRegistry
	}
	maxSize, err := config.ParseSize(c.Parser.MaxFileSize)
	if err != nil {
		maxSize = 1 << 20
	}
	return &Indexer{
		config:      c,
		registry:    reg,
		store:       cfg.Store,
		projectDir:  cfg.ProjectDir,
		parseLogger: cfg.ParseLogger,
		maxFileSize: maxSize,
		docs:        make(map[string]*entry),
	}
}

// Store returns the history store, or nil.
func (idx *Indexer) Store() *store.Store { return idx.store }

// Registry returns the language registry.
func (idx *Indexer) Registry() *provider.Registry { return idx.registry }

// ProjectDir returns the project root.
func (idx *Indexer) ProjectDir() string { return idx.projectDir }

// Document returns the open document for path.
func (idx *Indexer) Document(path string) (*document.Document, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	e, ok := idx.docs[idx.key(path)]
	if !ok {
		return nil, false
	}
	return e.doc, true
}

// Forget drops the document for path and its history.
func (idx *Indexer) Forget(ctx context.Context, path string) error {
	key := idx.key(path)
	idx.mu.Lock()
	delete(idx.docs, key)
	idx.mu.Unlock()

	if idx.store == nil {
		return nil
	}
	_, err := idx.store.DeleteFile(ctx, key)
	return err
}

// key returns the project-relative slash path used for documents and history.
func (idx *Indexer) key(path string) string {
	if idx.projectDir != "" && filepath.IsAbs(path) {
		if rel, err := filepath.Rel(idx.projectDir, path); err == nil && !outside(rel) {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(path)
}

// outside reports whether a relative path climbs out of its base.
func outside(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (idx *Indexer) abs(path string) string {
	if filepath.IsAbs(path) || idx.projectDir == "" {
		return path
	}
	return filepath.Join(idx.projectDir, path)
}

// ParseFile reads path and parses it, incrementally when the file was
// parsed before.
func (idx *Indexer) ParseFile(ctx context.Context, path string) (*Result, error) {
	full := idx.abs(path)
	info, err := os.Stat(full)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > idx.maxFileSize {
		return nil, fmt.Errorf("file too large: %s (%d bytes, limit %d)", path, info.Size(), idx.maxFileSize)
	}

	content, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}

	file := &types.SourceFile{Path: idx.key(path), Content: content}
	file.Language = idx.config.Parser.Language
	if file.Language == "" {
		name, ok := idx.registry.NameForPath(path)
		if !ok {
			return nil, fmt.Errorf("%w: no language for %s", types.ErrUnknownLanguage, path)
		}
		file.Language = name
	}
	file.Hash = file.ComputeHash()

	return idx.parse(ctx, file)
}

// ParseText parses text that is not backed by a file. When path is not
// empty the text replaces the document of that path.
func (idx *Indexer) ParseText(ctx context.Context, language, path string, text []byte) (*Result, error) {
	file := &types.SourceFile{Path: idx.key(path), Content: text, Language: language}
	file.Hash = file.ComputeHash()
	if path == "" {
		return idx.parseDetached(ctx, file)
	}
	return idx.parse(ctx, file)
}

func (idx *Indexer) parseDetached(ctx context.Context, file *types.SourceFile) (*Result, error) {
	lang, err := idx.registry.Get(file.Language)
	if err != nil {
		return nil, err
	}
	doc, err := document.New(ctx, lang, file.Content, idx.docOptions()...)
	if err != nil {
		return nil, err
	}
	return idx.result(file, doc, nil), nil
}

func (idx *Indexer) docOptions() []document.Option {
	return []document.Option{
		document.WithTimeout(idx.config.Parser.Timeout),
		document.WithLogger(idx.parseLogger),
	}
}

func (idx *Indexer) parse(ctx context.Context, file *types.SourceFile) (*Result, error) {
	lang, err := idx.registry.Get(file.Language)
	if err != nil {
		return nil, err
	}

	idx.mu.Lock()
	e, ok := idx.docs[file.Path]
	var prevHash string
	if ok {
		prevHash = e.hash
	}
	idx.mu.Unlock()

	var res *Result
	if ok && e.doc.Tree().Language() == lang {
		if prevHash == file.Hash {
			res = idx.result(file, e.doc, nil)
			res.Skipped = true
			return res, nil
		}
		changed, err := e.doc.SetText(ctx, file.Content)
		if err != nil {
			return nil, err
		}
		idx.mu.Lock()
		e.hash = file.Hash
		idx.mu.Unlock()
		res = idx.result(file, e.doc, changed)
	} else {
		doc, err := document.New(ctx, lang, file.Content, idx.docOptions()...)
		if err != nil {
			return nil, err
		}
		idx.mu.Lock()
		idx.docs[file.Path] = &entry{doc: doc, hash: file.Hash}
		idx.mu.Unlock()
		res = idx.result(file, doc, nil)
		// A file recorded by an earlier run with the same content is not
		// recorded again.
		res.Skipped = idx.recordedBefore(ctx, file)
	}

	if idx.store != nil && !res.Skipped {
		if _, err := idx.store.RecordParse(ctx, &res.Report); err != nil {
			slog.Warn("failed to record parse", "file", file.Path, "error", err)
		}
	}
	return res, nil
}

func (idx *Indexer) recordedBefore(ctx context.Context, file *types.SourceFile) bool {
	if idx.store == nil {
		return false
	}
	hash, err := idx.store.LatestHash(ctx, file.Path)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			slog.Warn("failed to read history", "file", file.Path, "error", err)
		}
		return false
	}
	return hash == file.Hash
}

func (idx *Indexer) result(file *types.SourceFile, doc *document.Document, changed []sitter.Range) *Result {
	tree := doc.Tree()
	update := doc.LastUpdate()
	summary := analysis.Summarize(tree, file.Content)
	return &Result{
		Report: types.ParseReport{
			Path:        file.Path,
			Language:    file.Language,
			Hash:        file.Hash,
			Bytes:       len(file.Content),
			Duration:    update.Duration,
			Incremental: update.Incremental,
			Nodes:       summary.Nodes,
			Errors:      summary.Errors(),
			Missing:     summary.Missing(),
			ReusedNodes: update.Stats.ReusedNodes,
			ReusedBytes: update.Stats.ReusedBytes,
			Tokens:      update.Stats.Tokens,
		},
		Summary: summary,
		Tree:    tree,
		Changed: changed,
	}
}

// ScanFiles returns the project files selected by the watch patterns, as
// paths relative to the project root.
func (idx *Indexer) ScanFiles(ctx context.Context) ([]string, error) {
	var files []string
	err := filepath.WalkDir(idx.projectDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		relPath, _ := filepath.Rel(idx.projectDir, path)
		if d.IsDir() {
			if relPath != "." && idx.config.Watch.ExcludesDir(relPath) {
				slog.Debug("excluding directory", "path", relPath)
				return filepath.SkipDir
			}
			return nil
		}
		if idx.config.Watch.ShouldInclude(relPath) {
			files = append(files, filepath.ToSlash(relPath))
		}
		return nil
	})
	return files, err
}

// IndexAll parses every selected project file in parallel.
func (idx *Indexer) IndexAll(ctx context.Context) ([]*Result, error) {
	started := time.Now()
	files, err := idx.ScanFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan files: %w", err)
	}
	slog.Info("scanned files", "total", len(files))

	results := make([]*Result, len(files))
	errs := make([]error, len(files))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < min(runtime.NumCPU(), len(files)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i], errs[i] = idx.ParseFile(ctx, files[i])
			}
		}()
	}
	for i := range files {
		if ctx.Err() != nil {
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrCancelled, err)
	}

	var out []*Result
	var failed []error
	for i, res := range results {
		if errs[i] != nil {
			slog.Warn("failed to parse file", "file", files[i], "error", errs[i])
			failed = append(failed, fmt.Errorf("%s: %w", files[i], errs[i]))
			continue
		}
		out = append(out, res)
	}
	slog.Info("parsed files", "files", len(out), "failed", len(failed), "duration", time.Since(started))
	return out, errors.Join(failed...)
}
