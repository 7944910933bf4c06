package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// LookupOCID resolves a character's stored id by (name, world).
// Returns ("", false, nil) if the character has never been resolved.
func (s *Store) LookupOCID(ctx context.Context, name, world string) (string, bool, error) {
	var ocid string
	err := s.db.QueryRowContext(ctx, `
		SELECT ocid FROM characters
		WHERE character_name = ? AND world_name = ?
		LIMIT 1
	`, name, world).Scan(&ocid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup ocid: %w", err)
	}
	return ocid, true, nil
}

// CharacterUpdatedAt returns the profile freshness timestamp for an ocid.
// Returns ("", false, nil) if no profile row exists yet.
func (s *Store) CharacterUpdatedAt(ctx context.Context, ocid string) (string, bool, error) {
	var updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT updated_at FROM characters WHERE ocid = ? LIMIT 1
	`, ocid).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("character updated_at: %w", err)
	}
	return updatedAt, true, nil
}

// CharacterLevel returns the stored level for an ocid, or (0, false) if absent.
func (s *Store) CharacterLevel(ctx context.Context, ocid string) (int64, bool, error) {
	var level int64
	err := s.db.QueryRowContext(ctx, `
		SELECT character_level FROM characters WHERE ocid = ? LIMIT 1
	`, ocid).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("character level: %w", err)
	}
	return level, true, nil
}

// StatExists reports whether any sample is stored for (ocid, date).
func (s *Store) StatExists(ctx context.Context, ocid, statDate string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM character_stats WHERE ocid = ? AND stat_date = ? LIMIT 1
	`, ocid, statDate).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat exists: %w", err)
	}
	return true, nil
}

// BestEquipmentExists reports whether the stored winning snapshot for an ocid
// is already the one for the given date.
func (s *Store) BestEquipmentExists(ctx context.Context, ocid, bestDate string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM character_equipment_best WHERE ocid = ? AND best_date = ? LIMIT 1
	`, ocid, bestDate).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("best equipment exists: %w", err)
	}
	return true, nil
}

// WorkSet returns the names to process for a world, ordered by name, with the
// exclusion set already subtracted.
func (s *Store) WorkSet(ctx context.Context, world string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cl.character_name
		FROM character_list cl
		WHERE cl.world_name = ?
		  AND NOT EXISTS (
		    SELECT 1 FROM blocklist b
		    WHERE b.character_name = cl.character_name AND b.world_name = cl.world_name
		  )
		ORDER BY cl.character_name
	`, world)
	if err != nil {
		return nil, fmt.Errorf("work set: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("work set scan: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("work set iterate: %w", err)
	}
	return names, nil
}

// IsBlocked reports whether a name is in the exclusion set for a world.
func (s *Store) IsBlocked(ctx context.Context, name, world string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM blocklist WHERE character_name = ? AND world_name = ? LIMIT 1
	`, name, world).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is blocked: %w", err)
	}
	return true, nil
}

// Cursor returns the last fully-synced blocklist date for a world.
// Returns ("", false, nil) when no sync has completed yet.
func (s *Store) Cursor(ctx context.Context, world string) (string, bool, error) {
	var last string
	err := s.db.QueryRowContext(ctx, `
		SELECT last_synced FROM blocklist_cursor WHERE world_name = ?
	`, world).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cursor: %w", err)
	}
	return last, true, nil
}

// PendingFailures returns up to limit pending-list rows for a world, the most
// attempted first. A limit <= 0 means no limit.
func (s *Store) PendingFailures(ctx context.Context, world string, limit int) ([]Failure, error) {
	q := `
		SELECT character_name, world_name, reason, attempts,
		       COALESCE(last_error, ''), COALESCE(run_id, ''), updated_at
		FROM sync_failures
		WHERE world_name = ?
		ORDER BY attempts DESC, character_name ASC
	`
	args := []any{world}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("pending failures: %w", err)
	}
	defer rows.Close()

	failures := []Failure{}
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.Name, &f.World, &f.Reason, &f.Attempts, &f.LastError, &f.RunID, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("pending failures scan: %w", err)
		}
		failures = append(failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pending failures iterate: %w", err)
	}
	return failures, nil
}
