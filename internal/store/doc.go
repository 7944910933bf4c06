// Package store provides SQLite-backed durable storage for synchronized
// character data.
//
// Tables:
//   - characters: one profile row per ocid, upserted in place
//   - character_list: the identity work set a sync pass walks
//   - character_stats: time-series samples keyed (ocid, date, name)
//   - character_equipment_best: the single winning snapshot per character
//   - blocklist / blocklist_cursor: exclusion set and its resume cursor
//   - sync_failures: cross-run pending list with attempt counters
//
// # Write discipline
//
// All mutation during a sync pass is expressed as Intent values (one
// idempotent upsert plus bound parameters) applied by a single writer
// goroutine. Two merge rules live in the SQL itself:
//
//   - null-coalescing: COALESCE(excluded.col, col) so an absent value never
//     overwrites a stored one
//   - monotonic level: MAX(stored, incoming) on character_level
//
// Re-applying any intent is a no-op, which is what makes a crashed pass safe
// to re-run.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=10000: wait for locks up to 10 seconds
//   - foreign_keys=ON: enforce referential integrity
package store
