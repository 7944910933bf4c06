package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ApplyBlockEntries upserts a batch of exclusion-set rows in one transaction.
// The upsert keeps the original first_seen on conflict, so re-processing an
// already-synced day is a no-op apart from refreshed classification fields.
// Returns the number of entries applied.
func (s *Store) ApplyBlockEntries(ctx context.Context, entries []BlockEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("apply block entries: %w", err)
	}
	defer tx.Rollback()

	applied := 0
	for _, e := range entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO blocklist
			  (character_name, world_name, kind, block_date, unblock_date, reason, first_seen)
			VALUES (?,?,?,?,?,?,?)
			ON CONFLICT(character_name, world_name) DO UPDATE SET
			  kind         = excluded.kind,
			  block_date   = excluded.block_date,
			  unblock_date = excluded.unblock_date,
			  reason       = excluded.reason
		`, e.Name, e.World, e.Kind, nullable(e.BlockDate), nullable(e.UnblockDate), nullable(e.Reason), e.FirstSeen)
		if err != nil {
			return applied, fmt.Errorf("apply block entry %q: %w", e.Name, err)
		}
		applied++
	}

	if err := tx.Commit(); err != nil {
		return applied, fmt.Errorf("apply block entries: %w", err)
	}
	return applied, nil
}

// SetCursor persists the last fully-applied blocklist date for a world.
// Dates are ISO strings, so MAX() on text keeps the cursor monotonically
// non-decreasing even if a caller hands in an older date.
func (s *Store) SetCursor(ctx context.Context, world, serverName, serverID, lastSynced, updatedAt string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blocklist_cursor (world_name, server_name, server_id, last_synced, updated_at)
		VALUES (?,?,?,?,?)
		ON CONFLICT(world_name) DO UPDATE SET
		  server_name = excluded.server_name,
		  server_id   = excluded.server_id,
		  last_synced = MAX(blocklist_cursor.last_synced, excluded.last_synced),
		  updated_at  = excluded.updated_at
	`, world, serverName, serverID, lastSynced, updatedAt)
	if err != nil {
		return fmt.Errorf("set cursor: %w", err)
	}
	return nil
}

// AddToWorkSet inserts names into the identity work set directly,
// outside the write queue. Used by seeding paths that run before a sync pass.
func (s *Store) AddToWorkSet(ctx context.Context, world string, names []string) (int, error) {
	if len(names) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("add to work set: %w", err)
	}
	defer tx.Rollback()

	added := 0
	for _, name := range names {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO character_list (character_name, world_name) VALUES (?,?)`,
			name, world)
		if err != nil {
			return added, fmt.Errorf("add %q to work set: %w", name, err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			added++
		}
	}

	if err := tx.Commit(); err != nil {
		return added, fmt.Errorf("add to work set: %w", err)
	}
	return added, nil
}

// ClearFailures removes pending-list rows for a world, optionally scoped to a
// single failure reason. Used after an operator re-drives a failure class.
func (s *Store) ClearFailures(ctx context.Context, world, reason string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if reason == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM sync_failures WHERE world_name = ?`, world)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM sync_failures WHERE world_name = ? AND reason = ?`, world, reason)
	}
	if err != nil {
		return 0, fmt.Errorf("clear failures: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// nullable maps an empty string to NULL so optional text columns stay NULL
// instead of storing "".
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
