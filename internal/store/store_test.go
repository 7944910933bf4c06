package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func apply(t *testing.T, s *Store, in Intent) {
	t.Helper()
	if _, err := s.db.Exec(in.SQL, in.Args...); err != nil {
		t.Fatalf("apply intent failed: %v", err)
	}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{"characters", "character_list", "character_stats", "character_equipment_best", "blocklist", "blocklist_cursor", "sync_failures"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	s := openTest(t)

	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
	if err := s.verifyPragma("busy_timeout", "10000"); err != nil {
		t.Error(err)
	}
}

func strp(s string) *string { return &s }
func intp(n int64) *int64   { return &n }

func baseRecord() CharacterRecord {
	return CharacterRecord{
		OCID:      "ocid-1",
		Name:      "tester",
		World:     "challenger",
		Class:     strp("hero"),
		GuildName: strp("guild-a"),
		Level:     150,
		UpdatedAt: "2026-08-20T12:00:00Z",
	}
}

func TestCharacterUpsert_Idempotent(t *testing.T) {
	s := openTest(t)

	rec := baseRecord()
	apply(t, s, CharacterUpsert(rec))
	apply(t, s, CharacterUpsert(rec))

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM characters").Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 row after double upsert, got %d", count)
	}
}

func TestCharacterUpsert_NullCoalescing(t *testing.T) {
	s := openTest(t)

	apply(t, s, CharacterUpsert(baseRecord()))

	// Second write omits the guild; stored value must survive.
	rec := baseRecord()
	rec.GuildName = nil
	rec.Class = nil
	apply(t, s, CharacterUpsert(rec))

	var guild, class string
	err := s.db.QueryRow("SELECT character_guild_name, character_class FROM characters WHERE ocid = ?", "ocid-1").Scan(&guild, &class)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if guild != "guild-a" {
		t.Errorf("guild overwritten by absent value: got %q", guild)
	}
	if class != "hero" {
		t.Errorf("class overwritten by absent value: got %q", class)
	}
}

func TestCharacterUpsert_MonotonicLevel(t *testing.T) {
	s := openTest(t)

	rec := baseRecord()
	rec.Level = 200
	apply(t, s, CharacterUpsert(rec))

	rec.Level = 180
	apply(t, s, CharacterUpsert(rec))

	var level int64
	if err := s.db.QueryRow("SELECT character_level FROM characters WHERE ocid = ?", "ocid-1").Scan(&level); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if level != 200 {
		t.Errorf("level decreased: got %d, want 200", level)
	}

	rec.Level = 201
	apply(t, s, CharacterUpsert(rec))
	if err := s.db.QueryRow("SELECT character_level FROM characters WHERE ocid = ?", "ocid-1").Scan(&level); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if level != 201 {
		t.Errorf("level did not advance: got %d, want 201", level)
	}
}

func TestLookupOCID(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	apply(t, s, CharacterUpsert(baseRecord()))

	ocid, ok, err := s.LookupOCID(ctx, "tester", "challenger")
	if err != nil {
		t.Fatalf("LookupOCID failed: %v", err)
	}
	if !ok || ocid != "ocid-1" {
		t.Errorf("got (%q, %v), want (ocid-1, true)", ocid, ok)
	}

	_, ok, err = s.LookupOCID(ctx, "nobody", "challenger")
	if err != nil {
		t.Fatalf("LookupOCID failed: %v", err)
	}
	if ok {
		t.Error("unknown name reported as resolved")
	}
}

func TestStatUpsert_And_Exists(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	apply(t, s, StatUpsert("ocid-1", "2026-08-20", "STR", 1234))
	apply(t, s, StatUpsert("ocid-1", "2026-08-20", "STR", 1250))

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM character_stats").Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 stat row, got %d", count)
	}

	var val float64
	if err := s.db.QueryRow("SELECT stat_value FROM character_stats WHERE ocid = ? AND stat_date = ? AND stat_name = ?",
		"ocid-1", "2026-08-20", "STR").Scan(&val); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if val != 1250 {
		t.Errorf("stat not replaced: got %v, want 1250", val)
	}

	exists, err := s.StatExists(ctx, "ocid-1", "2026-08-20")
	if err != nil || !exists {
		t.Errorf("StatExists = (%v, %v), want (true, nil)", exists, err)
	}
	exists, err = s.StatExists(ctx, "ocid-1", "2026-08-21")
	if err != nil || exists {
		t.Errorf("StatExists for missing date = (%v, %v), want (false, nil)", exists, err)
	}
}

func TestSetCursor_Monotonic(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if err := s.SetCursor(ctx, "challenger", "srv", "4", "2026-08-10", "now"); err != nil {
		t.Fatalf("SetCursor failed: %v", err)
	}
	if err := s.SetCursor(ctx, "challenger", "srv", "4", "2026-08-12", "now"); err != nil {
		t.Fatalf("SetCursor failed: %v", err)
	}
	// An older date must not move the cursor back.
	if err := s.SetCursor(ctx, "challenger", "srv", "4", "2026-08-05", "now"); err != nil {
		t.Fatalf("SetCursor failed: %v", err)
	}

	cur, ok, err := s.Cursor(ctx, "challenger")
	if err != nil {
		t.Fatalf("Cursor failed: %v", err)
	}
	if !ok || cur != "2026-08-12" {
		t.Errorf("cursor = (%q, %v), want (2026-08-12, true)", cur, ok)
	}
}

func TestWorkSet_ExcludesBlocklisted(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if _, err := s.AddToWorkSet(ctx, "challenger", []string{"alice", "bob", "carol"}); err != nil {
		t.Fatalf("AddToWorkSet failed: %v", err)
	}
	if _, err := s.ApplyBlockEntries(ctx, []BlockEntry{
		{Name: "bob", World: "challenger", Kind: "permanent", FirstSeen: "now"},
	}); err != nil {
		t.Fatalf("ApplyBlockEntries failed: %v", err)
	}

	names, err := s.WorkSet(ctx, "challenger")
	if err != nil {
		t.Fatalf("WorkSet failed: %v", err)
	}
	want := []string{"alice", "carol"}
	if len(names) != len(want) {
		t.Fatalf("WorkSet = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("WorkSet[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	blocked, err := s.IsBlocked(ctx, "bob", "challenger")
	if err != nil || !blocked {
		t.Errorf("IsBlocked(bob) = (%v, %v), want (true, nil)", blocked, err)
	}
}

func TestApplyBlockEntries_KeepsFirstSeen(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	first := []BlockEntry{{Name: "mallory", World: "challenger", Kind: "other", FirstSeen: "2026-08-01T00:00:00Z"}}
	again := []BlockEntry{{Name: "mallory", World: "challenger", Kind: "permanent", UnblockDate: "2079-01-01", FirstSeen: "2026-08-20T00:00:00Z"}}

	if _, err := s.ApplyBlockEntries(ctx, first); err != nil {
		t.Fatalf("ApplyBlockEntries failed: %v", err)
	}
	if _, err := s.ApplyBlockEntries(ctx, again); err != nil {
		t.Fatalf("ApplyBlockEntries failed: %v", err)
	}

	var kind, firstSeen string
	err := s.db.QueryRow("SELECT kind, first_seen FROM blocklist WHERE character_name = ?", "mallory").Scan(&kind, &firstSeen)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if kind != "permanent" {
		t.Errorf("classification not refreshed: got %q", kind)
	}
	if firstSeen != "2026-08-01T00:00:00Z" {
		t.Errorf("first_seen overwritten: got %q", firstSeen)
	}
}

func TestFailureRecord_BumpsAttempts(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	apply(t, s, FailureRecord("dave", "challenger", "profile:transient", "timeout", "run-1", "t1"))
	apply(t, s, FailureRecord("dave", "challenger", "profile:transient", "timeout again", "run-2", "t2"))
	apply(t, s, FailureRecord("dave", "challenger", "resolve:not_found", "404", "run-2", "t2"))

	failures, err := s.PendingFailures(ctx, "challenger", 0)
	if err != nil {
		t.Fatalf("PendingFailures failed: %v", err)
	}
	if len(failures) != 2 {
		t.Fatalf("expected 2 pending rows, got %d", len(failures))
	}
	// Ordered by attempts descending.
	if failures[0].Reason != "profile:transient" || failures[0].Attempts != 2 {
		t.Errorf("first = %+v, want profile:transient with 2 attempts", failures[0])
	}
	if failures[0].LastError != "timeout again" || failures[0].RunID != "run-2" {
		t.Errorf("last failure detail not refreshed: %+v", failures[0])
	}

	n, err := s.ClearFailures(ctx, "challenger", "profile:transient")
	if err != nil || n != 1 {
		t.Fatalf("ClearFailures = (%d, %v), want (1, nil)", n, err)
	}
	failures, err = s.PendingFailures(ctx, "challenger", 0)
	if err != nil || len(failures) != 1 {
		t.Fatalf("after clear: %d rows, err %v; want 1 row", len(failures), err)
	}
}

func TestBestEquipmentUpsert_SingleRow(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	apply(t, s, BestEquipmentUpsert("ocid-1", "2026-08-20", 3, 1, `{"a":1}`, "t1"))
	apply(t, s, BestEquipmentUpsert("ocid-1", "2026-08-21", 1, 2, `{"b":2}`, "t2"))

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM character_equipment_best").Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected one best-snapshot row per character, got %d", count)
	}

	exists, err := s.BestEquipmentExists(ctx, "ocid-1", "2026-08-21")
	if err != nil || !exists {
		t.Errorf("BestEquipmentExists = (%v, %v), want (true, nil)", exists, err)
	}
	exists, err = s.BestEquipmentExists(ctx, "ocid-1", "2026-08-20")
	if err != nil || exists {
		t.Errorf("superseded date still reported: (%v, %v)", exists, err)
	}
}

func TestUnknownIntentColumn_IsStatementError(t *testing.T) {
	s := openTest(t)

	bad := Intent{SQL: "INSERT INTO no_such_table (x) VALUES (?)", Args: []any{1}}
	if _, err := s.db.Exec(bad.SQL, bad.Args...); err == nil {
		t.Error("expected error for bad intent")
	}

	// The connection stays usable afterwards.
	apply(t, s, CharacterUpsert(baseRecord()))
}
