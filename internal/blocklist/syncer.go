package blocklist

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/maplesync/internal/clock"
	"github.com/roach88/maplesync/internal/store"
)

// Config controls one incremental sync.
type Config struct {
	// World is the local partition the entries are applied under.
	World string

	// ServerName is the site's dropdown label for the server to scrape.
	ServerName string

	// FirstStart is the earliest ISO date ever worth fetching; the cursor
	// never starts before it.
	FirstStart string
}

// Result reports one sync run. Ran is false with a Reason when there was
// nothing to fetch, which is distinct from fetching zero records.
type Result struct {
	World    string
	Server   string
	ServerID string

	Ran    bool
	Reason string

	Start string
	End   string
	Days  int

	Scanned int
	Applied int
}

// Progress is invoked once per fetched day; panics are contained.
type Progress func(done, total int, label string)

// Syncer walks the site's daily listings forward from the persisted cursor
// and folds every record into the local exclusion set. One day is the unit
// of progress: fetch, classify, apply, persist cursor, then the next day.
// A crash mid-run costs at most the day in flight.
type Syncer struct {
	cfg    Config
	client *Client
	store  *store.Store
	clock  clock.Clock
	log    *slog.Logger
}

// NewSyncer wires a syncer. Nil clock and logger fall back to the system
// clock and slog.Default.
func NewSyncer(cfg Config, client *Client, st *store.Store, cl clock.Clock, log *slog.Logger) *Syncer {
	if cl == nil {
		cl = clock.System()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{cfg: cfg, client: client, store: st, clock: cl, log: log}
}

// Run performs one incremental pass. Day-level failures abort the run with
// the cursor parked at the last fully-applied day, so the next run resumes
// exactly where this one stopped.
func (s *Syncer) Run(ctx context.Context, progress Progress) (*Result, error) {
	res := &Result{World: s.cfg.World, Server: s.cfg.ServerName}

	firstStart, err := time.Parse("2006-01-02", s.cfg.FirstStart)
	if err != nil {
		return nil, fmt.Errorf("blocklist sync: first start date %q: %w", s.cfg.FirstStart, err)
	}

	now := s.clock.Now()
	latest := LatestAvailable(now)
	if latest.Before(firstStart) {
		res.Reason = "latest available day precedes first start date"
		return res, nil
	}

	start := firstStart
	if cur, ok, err := s.store.Cursor(ctx, s.cfg.World); err != nil {
		return nil, fmt.Errorf("blocklist sync: read cursor: %w", err)
	} else if ok {
		t, err := time.Parse("2006-01-02", cur)
		if err != nil {
			return nil, fmt.Errorf("blocklist sync: stored cursor %q: %w", cur, err)
		}
		if next := t.AddDate(0, 0, 1); next.After(start) {
			start = next
		}
	}

	res.Start = start.Format("2006-01-02")
	res.End = latest.Format("2006-01-02")
	if start.After(latest) {
		res.Reason = "up-to-date"
		return res, nil
	}

	if err := s.client.Establish(ctx); err != nil {
		return nil, fmt.Errorf("blocklist sync: %w", err)
	}
	res.ServerID = s.client.ServerID()

	total := int(latest.Sub(start)/(24*time.Hour)) + 1
	log := s.log.With("world", s.cfg.World, "server", s.cfg.ServerName)
	log.Info("blocklist sync started", "start", res.Start, "end", res.End, "days", total)

	for day, done := start, 0; !day.After(latest); day = day.AddDate(0, 0, 1) {
		done++
		iso := day.Format("2006-01-02")
		safeDayProgress(progress, done, total, iso, log)

		records, err := s.client.FetchDay(ctx, isoToSlash(iso))
		if err != nil {
			return res, fmt.Errorf("blocklist sync: day %s: %w", iso, err)
		}

		entries := s.entriesFor(records, now)
		applied, err := s.store.ApplyBlockEntries(ctx, entries)
		if err != nil {
			return res, fmt.Errorf("blocklist sync: day %s: %w", iso, err)
		}

		if err := s.store.SetCursor(ctx, s.cfg.World, s.cfg.ServerName, res.ServerID,
			iso, now.Format(time.RFC3339)); err != nil {
			return res, fmt.Errorf("blocklist sync: day %s: %w", iso, err)
		}

		res.Days = done
		res.Scanned += len(records)
		res.Applied += applied
		log.Debug("blocklist day applied", "date", iso, "records", len(records), "applied", applied)
	}

	res.Ran = true
	log.Info("blocklist sync finished", "days", res.Days, "scanned", res.Scanned, "applied", res.Applied)
	return res, nil
}

// entriesFor classifies raw records into exclusion-set rows, dropping rows
// without a usable name.
func (s *Syncer) entriesFor(records []Record, now time.Time) []store.BlockEntry {
	firstSeen := now.Format(time.RFC3339)
	entries := make([]store.BlockEntry, 0, len(records))
	for _, r := range records {
		name := strings.TrimSpace(r.CharacterName)
		if name == "" {
			continue
		}
		entries = append(entries, store.BlockEntry{
			Name:        name,
			World:       s.cfg.World,
			Kind:        Classify(r.BlockDate, r.UnblockDate),
			BlockDate:   slashToISO(r.BlockDate),
			UnblockDate: slashToISO(r.UnblockDate),
			Reason:      strings.TrimSpace(r.Reason),
			FirstSeen:   firstSeen,
		})
	}
	return entries
}

func safeDayProgress(p Progress, done, total int, label string, log *slog.Logger) {
	if p == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warn("progress callback panicked", "panic", r)
		}
	}()
	p(done, total, label)
}
