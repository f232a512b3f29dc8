package index

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReparsesChangedFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "Main.as", "hello")
	writeFile(t, dir, ".hidden/X.as", "hello")
	idx := newTestIndexer(t, dir)

	results := make(chan *Result, 8)
	w, err := NewWatcher(WatcherConfig{
		Indexer:      idx,
		DebounceTime: 20 * time.Millisecond,
		OnResult:     func(r *Result) { results <- r },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register directories.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "Main.as", "hell")
	writeFile(t, dir, "notes.txt", "ignored")

	select {
	case r := <-results:
		assert.Equal(t, "Main.as", r.Report.Path)
		assert.True(t, r.Report.HasErrors())
	case <-time.After(5 * time.Second):
		t.Fatal("no re-parse after write")
	}

	_, ok := idx.Document(path)
	assert.True(t, ok)
}

func TestWatcherSkipDir(t *testing.T) {
	dir := t.TempDir()
	idx := newTestIndexer(t, dir)
	w, err := NewWatcher(WatcherConfig{Indexer: idx})
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, idx.config.Watch.Debounce, w.debounceTime)
	assert.False(t, w.skipDir(dir, "root"))
	assert.True(t, w.skipDir(dir+"/.git", ".git"))
	assert.True(t, w.skipDir(dir+"/a/node_modules", "node_modules"))
	assert.False(t, w.skipDir(dir+"/src", "src"))
}
