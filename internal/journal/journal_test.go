package journal

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestJournal(t *testing.T) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(context.Background(), path, log.New(io.Discard, "", 0))
	require.NoError(t, err, "failed to open test journal")
	t.Cleanup(func() {
		assert.NoError(t, j.Close())
	})
	return j
}

func TestRecordAndQuery(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	id, err := j.Record(ctx, Entry{
		Timestamp: now,
		Kind:      KindFocus,
		Category:  "work",
		Title:     "main.go - editor",
		Class:     "editor",
	})
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	entries, err := j.Entries(ctx, now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, KindFocus, got.Kind)
	assert.Equal(t, "work", got.Category)
	assert.Equal(t, "main.go - editor", got.Title)
	assert.Equal(t, "editor", got.Class)
	assert.Equal(t, now, got.Timestamp.UTC().Truncate(time.Second))
}

func TestQueryFiltersByKind(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := j.Record(ctx, Entry{Timestamp: now, Kind: KindStart})
	require.NoError(t, err)
	_, err = j.Record(ctx, Entry{Timestamp: now.Add(time.Second), Kind: KindFocus, Category: "work"})
	require.NoError(t, err)
	_, err = j.Record(ctx, Entry{Timestamp: now.Add(2 * time.Second), Kind: KindStop})
	require.NoError(t, err)

	entries, err := j.Entries(ctx, now.Add(-time.Minute), now.Add(time.Minute), KindStart, KindStop)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, KindStart, entries[0].Kind)
	assert.Equal(t, KindStop, entries[1].Kind)
}

func TestQueryRespectsTimeRange(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := j.Record(ctx, Entry{Timestamp: base.Add(time.Duration(i) * time.Hour), Kind: KindFocus})
		require.NoError(t, err)
	}

	entries, err := j.Entries(ctx, base.Add(time.Hour), base.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
