package syncer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/maplesync/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestWriter_AppliesAndCounts(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	w := NewWriter(st, 2, 16, nil)
	go w.Run(ctx)

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, w.Enqueue(ctx, store.WorkSetAdd(name, "challenger")))
	}
	w.Close()
	w.Wait()

	assert.Equal(t, int64(3), w.Applied())
	assert.Equal(t, int64(0), w.Skipped())

	names, err := st.WorkSet(ctx, "challenger")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestWriter_BadIntentSkippedBatchSurvives(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	w := NewWriter(st, 0, 0, nil)
	go w.Run(ctx)

	require.NoError(t, w.Enqueue(ctx, store.WorkSetAdd("a", "challenger")))
	require.NoError(t, w.Enqueue(ctx, store.Intent{SQL: "INSERT INTO no_such_table (x) VALUES (?)", Args: []any{1}}))
	require.NoError(t, w.Enqueue(ctx, store.WorkSetAdd("b", "challenger")))
	w.Close()
	w.Wait()

	assert.Equal(t, int64(2), w.Applied())
	assert.Equal(t, int64(1), w.Skipped())

	names, err := st.WorkSet(ctx, "challenger")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestWriter_DrainCommitAfterFailedIntent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// Batch far larger than the queue, so only the drain check can commit.
	// Both intents are queued before the writer starts: the good one is still
	// pending when the bad one fails at the tail of the queue.
	w := NewWriter(st, 500, 16, nil)
	require.NoError(t, w.Enqueue(ctx, store.WorkSetAdd("a", "challenger")))
	require.NoError(t, w.Enqueue(ctx, store.Intent{SQL: "INSERT INTO no_such_table (x) VALUES (?)", Args: []any{1}}))
	go w.Run(ctx)

	visible := func() bool {
		names, err := st.WorkSet(ctx, "challenger")
		return err == nil && len(names) == 1
	}
	deadline := time.Now().Add(2 * time.Second)
	for !visible() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.True(t, visible(), "applied intent should commit on drain, not wait for Close")
	assert.Equal(t, int64(1), w.Skipped())

	w.Close()
	w.Wait()
}

func TestWriter_EnqueueAfterCancelReturnsError(t *testing.T) {
	st := newTestStore(t)

	// Queue capacity 1 and no running writer: the second enqueue blocks until
	// the context ends.
	w := NewWriter(st, 1, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Enqueue(ctx, store.WorkSetAdd("a", "challenger")))

	cancel()
	err := w.Enqueue(ctx, store.WorkSetAdd("b", "challenger"))
	assert.ErrorIs(t, err, context.Canceled)
}
