package syncer

import (
	"context"
	"database/sql"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/maplesync/internal/store"
)

const (
	defaultQueueCap = 10000
	defaultBatch    = 500
)

// Writer is the single storage mutator for a sync pass. Workers enqueue
// idempotent intents; one goroutine applies them inside a batch transaction,
// committing every batch-size intents and whenever the queue momentarily
// drains, so visibility latency stays bounded without per-intent commits.
//
// Enqueue blocks when the queue is full - that backpressure is what throttles
// fetch-ahead. Closing the queue is the stop sentinel: the writer applies
// whatever remains, commits, and exits.
//
// A single failing intent (constraint violation, type mismatch) is logged,
// counted, and skipped; it never aborts the batch or stops the writer.
type Writer struct {
	db    *sql.DB
	batch int
	ch    chan store.Intent
	done  chan struct{}
	log   *slog.Logger

	applied atomic.Int64
	skipped atomic.Int64
}

// NewWriter creates a writer over the store's database. batch and queueCap
// fall back to defaults when <= 0.
func NewWriter(st *store.Store, batch, queueCap int, log *slog.Logger) *Writer {
	if batch <= 0 {
		batch = defaultBatch
	}
	if queueCap <= 0 {
		queueCap = defaultQueueCap
	}
	if log == nil {
		log = slog.Default()
	}
	return &Writer{
		db:    st.DB(),
		batch: batch,
		ch:    make(chan store.Intent, queueCap),
		done:  make(chan struct{}),
		log:   log,
	}
}

// Enqueue hands an intent to the writer, blocking while the queue is full.
// Returns ctx.Err() if the context ends first.
func (w *Writer) Enqueue(ctx context.Context, in store.Intent) error {
	select {
	case w.ch <- in:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals the writer to flush and stop once the queue is drained.
// Must be called exactly once, after all producers have finished.
func (w *Writer) Close() {
	close(w.ch)
}

// Wait blocks until the writer has applied everything and exited.
func (w *Writer) Wait() {
	<-w.done
}

// Applied returns the number of intents applied so far.
func (w *Writer) Applied() int64 { return w.applied.Load() }

// Skipped returns the number of intents dropped due to apply errors.
func (w *Writer) Skipped() int64 { return w.skipped.Load() }

// Run is the writer loop. Call it in its own goroutine before producers
// start enqueuing.
func (w *Writer) Run(ctx context.Context) {
	defer close(w.done)

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		w.log.Error("writer: begin failed, draining without applying", "error", err)
		for range w.ch {
			w.skipped.Add(1)
		}
		return
	}

	pending := 0
	commit := func() {
		if pending == 0 {
			return
		}
		if err := tx.Commit(); err != nil {
			w.log.Error("writer: commit failed", "error", err, "pending", pending)
		}
		pending = 0
		tx, err = w.db.BeginTx(ctx, nil)
		if err != nil {
			w.log.Error("writer: begin failed", "error", err)
		}
	}

	for intent := range w.ch {
		if tx == nil {
			w.skipped.Add(1)
			continue
		}
		if _, err := tx.Exec(intent.SQL, intent.Args...); err != nil {
			// SQLite aborts only the statement, not the transaction.
			w.log.Warn("writer: intent skipped", "error", err)
			w.skipped.Add(1)
		} else {
			w.applied.Add(1)
			pending++
		}

		// The drain check runs on failures too, so a bad intent at the tail
		// of the queue never strands earlier applied work uncommitted.
		if pending >= w.batch || len(w.ch) == 0 {
			commit()
		}
	}

	if tx != nil {
		if pending > 0 {
			if err := tx.Commit(); err != nil {
				w.log.Error("writer: final commit failed", "error", err, "pending", pending)
			}
		} else {
			_ = tx.Rollback()
		}
	}
}
