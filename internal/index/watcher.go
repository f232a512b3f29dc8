package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the project for file changes and re-parses changed files.
type Watcher struct {
	indexer    *Indexer
	projectDir string
	onResult   func(*Result)

	watcher *fsnotify.Watcher

	// Debouncing
	pendingMu    sync.Mutex
	pendingFiles map[string]time.Time
	debounceTime time.Duration
}

// WatcherConfig contains watcher configuration.
type WatcherConfig struct {
	Indexer      *Indexer
	OnResult     func(*Result) // called after each re-parse
	DebounceTime time.Duration // Default: watch.debounce from config
}

// NewWatcher creates a new file watcher.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounceTime := cfg.DebounceTime
	if debounceTime == 0 {
		debounceTime = cfg.Indexer.config.Watch.Debounce
	}
	if debounceTime == 0 {
		debounceTime = 500 * time.Millisecond
	}

	return &Watcher{
		indexer:      cfg.Indexer,
		projectDir:   cfg.Indexer.projectDir,
		onResult:     cfg.OnResult,
		watcher:      watcher,
		pendingFiles: make(map[string]time.Time),
		debounceTime: debounceTime,
	}, nil
}

// Watch starts watching for file changes.
// It blocks until the context is cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	if err := w.addWatchDirs(); err != nil {
		return err
	}

	slog.Info("watching for file changes", "dir", w.projectDir)

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping watcher")
			return w.watcher.Close()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", "error", err)
		}
	}
}

// addWatchDirs recursively adds directories to watch.
func (w *Watcher) addWatchDirs() error {
	return filepath.WalkDir(w.projectDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if w.skipDir(path, d.Name()) {
				return filepath.SkipDir
			}
			if err := w.watcher.Add(path); err != nil {
				slog.Warn("failed to watch directory", "path", path, "error", err)
			}
		}
		return nil
	})
}

func (w *Watcher) skipDir(path, name string) bool {
	relPath, _ := filepath.Rel(w.projectDir, path)
	if relPath == "." {
		return false
	}
	if w.indexer.config.Watch.ExcludesDir(relPath) {
		return true
	}
	// Skip hidden directories
	return strings.HasPrefix(name, ".")
}

// handleEvent processes a file system event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	path := event.Name
	relPath, err := filepath.Rel(w.projectDir, path)
	if err != nil {
		return
	}

	// New directories are watched too.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !w.skipDir(path, info.Name()) {
				if err := w.watcher.Add(path); err != nil {
					slog.Warn("failed to watch directory", "path", path, "error", err)
				}
			}
			return
		}
	}

	if !w.indexer.config.Watch.ShouldInclude(relPath) {
		return
	}

	w.pendingMu.Lock()
	w.pendingFiles[path] = time.Now()
	w.pendingMu.Unlock()

	slog.Debug("file changed", "path", relPath, "op", event.Op.String())
}

// processDebounced processes pending files after debounce period.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processPendingFiles(ctx)
		}
	}
}

// processPendingFiles processes files that have been stable for debounce period.
func (w *Watcher) processPendingFiles(ctx context.Context) {
	w.pendingMu.Lock()
	now := time.Now()
	var toProcess []string
	for path, changedAt := range w.pendingFiles {
		if now.Sub(changedAt) >= w.debounceTime {
			toProcess = append(toProcess, path)
			delete(w.pendingFiles, path)
		}
	}
	w.pendingMu.Unlock()

	if len(toProcess) > 0 {
		w.reparseFiles(ctx, toProcess)
	}
}

// reparseFiles re-parses the specified files.
func (w *Watcher) reparseFiles(ctx context.Context, paths []string) {
	slog.Info("re-parsing changed files", "count", len(paths))

	for _, path := range paths {
		if ctx.Err() != nil {
			return
		}

		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			if err := w.indexer.Forget(ctx, path); err != nil {
				slog.Warn("failed to forget file", "file", path, "error", err)
			}
			slog.Info("removed deleted file", "file", path)
			continue
		}
		if err != nil {
			slog.Warn("failed to stat file", "file", path, "error", err)
			continue
		}
		if info.IsDir() {
			continue
		}

		res, err := w.indexer.ParseFile(ctx, path)
		if err != nil {
			slog.Warn("failed to parse file", "file", path, "error", err)
			continue
		}
		if res.Skipped {
			continue
		}

		attrs := []any{
			"file", res.Report.Path,
			"incremental", res.Report.Incremental,
			"errors", res.Report.Errors,
			"missing", res.Report.Missing,
			"reused_bytes", res.Report.ReusedBytes,
			"duration", res.Report.Duration,
		}
		for _, r := range res.Changed {
			attrs = append(attrs, "changed", r.StartPoint.String()+"-"+r.EndPoint.String())
		}
		slog.Info("parsed file", attrs...)

		if w.onResult != nil {
			w.onResult(res)
		}
	}
}

// Close closes the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
