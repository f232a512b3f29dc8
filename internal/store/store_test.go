package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcs090218/tree-sitter-actionscript/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	require.NoError(t, s.Init(filepath.Join(t.TempDir(), "sub", "history.db")))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func report(path, content string, errs int) *types.ParseReport {
	return &types.ParseReport{
		Path:     path,
		Language: "actionscript",
		Hash:     types.HashContent([]byte(content)),
		Bytes:    len(content),
		Duration: 3 * time.Millisecond,
		Nodes:    1,
		Errors:   errs,
	}
}

func TestRecordAndHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.RecordParse(ctx, report("Main.as", "hello", 0))
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	r := report("Main.as", "hallo", 1)
	r.Incremental = true
	r.ReusedNodes = 2
	r.ReusedBytes = 4
	r.Tokens = 3
	second, err := s.RecordParse(ctx, r)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	_, err = s.RecordParse(ctx, report("Other.as", "hello", 0))
	require.NoError(t, err)

	history, err := s.History(ctx, "Main.as", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ID, history[1].ID)
	assert.True(t, history[0].Incremental)
	assert.Equal(t, 1, history[0].Errors)
	assert.Equal(t, uint32(4), history[0].ReusedBytes)
	assert.Equal(t, 3*time.Millisecond, history[0].Duration)
	assert.Equal(t, second.CreatedAt, history[0].CreatedAt)

	limited, err := s.History(ctx, "Main.as", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := s.History(ctx, "Nope.as", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLatestHash(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.LatestHash(ctx, "Main.as")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = s.RecordParse(ctx, report("Main.as", "a", 0))
	require.NoError(t, err)
	_, err = s.RecordParse(ctx, report("Main.as", "b", 0))
	require.NoError(t, err)

	hash, err := s.LatestHash(ctx, "Main.as")
	require.NoError(t, err)
	assert.Equal(t, types.HashContent([]byte("b")), hash)
}

func TestStatsAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Records)
	assert.True(t, stats.LastParsed.IsZero())

	for _, r := range []*types.ParseReport{
		report("A.as", "hello", 0),
		report("A.as", "hell", 1),
		report("B.as", "hello", 0),
	} {
		_, err := s.RecordParse(ctx, r)
		require.NoError(t, err)
	}

	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 1, stats.ErrorParses)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 8, 0, time.UTC), stats.LastParsed)
	assert.Positive(t, stats.DBSizeBytes)

	n, err := s.DeleteFile(ctx, "A.as")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Records)
}

func TestSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s := New()
	require.NoError(t, s.Init(path))
	require.NoError(t, s.setMetadata("schema_version", "99"))
	require.NoError(t, s.Close())

	reopened := New()
	err := reopened.Init(path)
	assert.ErrorIs(t, err, types.ErrStoreFailed)

	again := New()
	require.NoError(t, again.Init(filepath.Join(t.TempDir(), "fresh.db")))
	defer again.Close()
	v, err := again.metadata("schema_version")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}
