package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/maplesync/internal/clock"
	"github.com/roach88/maplesync/internal/nexon"
	"github.com/roach88/maplesync/internal/store"
)

// API is the remote surface the coordinator needs. *nexon.Client satisfies it.
type API interface {
	ResolveOCID(ctx context.Context, name string) (string, error)
	Basic(ctx context.Context, ocid string) (*nexon.CharacterBasic, error)
	Stat(ctx context.Context, ocid, date string) (*nexon.StatResponse, error)
	ItemEquipment(ctx context.Context, ocid, date string) (*nexon.EquipmentResponse, error)
	GuildID(ctx context.Context, name, world string) (string, error)
	GuildBasic(ctx context.Context, guildID string) (*nexon.GuildBasic, error)
}

// Config controls one sync pass.
type Config struct {
	World string

	// Workers is the fetch pool size. The API tolerates roughly this much
	// parallelism before throttling kicks in.
	Workers int

	// QueueCap and Batch tune the writer; zero means default.
	QueueCap int
	Batch    int

	// RefreshDays is the staleness window for stored profiles.
	RefreshDays int

	// SkipExisting suppresses fetches for dates already stored.
	SkipExisting bool

	// FailListLimit bounds Summary.Failed; zero means 50.
	FailListLimit int

	Backoff Backoff
}

const (
	defaultWorkers       = 50
	defaultRefreshDays   = 7
	defaultFailListLimit = 50
)

func (c *Config) fill() {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.RefreshDays <= 0 {
		c.RefreshDays = defaultRefreshDays
	}
	if c.FailListLimit <= 0 {
		c.FailListLimit = defaultFailListLimit
	}
	if c.Backoff.Attempts <= 0 {
		c.Backoff = DefaultBackoff
	}
}

// Progress is invoked after each character finishes. Callbacks run on worker
// goroutines; a panicking callback is contained and never kills the run.
type Progress func(done, total int, name string, failed bool)

// Coordinator runs the fetch pool against one world: a fixed set of workers
// pulls characters off a channel, fetches through the shared client, and
// funnels every mutation through the single writer.
type Coordinator struct {
	cfg     Config
	api     API
	store   *store.Store
	clock   clock.Clock
	backoff Backoff
	log     *slog.Logger
}

// New creates a coordinator. Nil clock and logger fall back to the system
// clock and slog.Default.
func New(cfg Config, api API, st *store.Store, cl clock.Clock, log *slog.Logger) *Coordinator {
	cfg.fill()
	if cl == nil {
		cl = clock.System()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		cfg:     cfg,
		api:     api,
		store:   st,
		clock:   cl,
		backoff: cfg.Backoff,
		log:     log,
	}
}

// Run processes every item and returns the run summary. Individual failures
// are recorded and counted; Run itself fails only on context cancellation.
func (c *Coordinator) Run(ctx context.Context, items []WorkItem, progress Progress) (*Summary, error) {
	sum := &Summary{
		RunID:    uuid.NewString(),
		World:    c.cfg.World,
		Total:    len(items),
		ByReason: map[string]int{},
		Started:  c.clock.Now(),
	}
	log := c.log.With("run_id", sum.RunID, "world", c.cfg.World)
	log.Info("sync started", "total", sum.Total, "workers", c.cfg.Workers)

	writer := NewWriter(c.store, c.cfg.Batch, c.cfg.QueueCap, log)
	go writer.Run(ctx)

	work := make(chan WorkItem)
	var (
		mu   sync.Mutex
		done int
		wg   sync.WaitGroup
	)

	record := func(r itemResult) (int, bool) {
		mu.Lock()
		defer mu.Unlock()
		done++
		sum.Processed++
		if r.Unresolved {
			sum.Unresolved++
		}
		if r.SkippedFresh {
			sum.SkippedFresh++
		}
		if r.ProfileUpdated {
			sum.ProfileUpdates++
		}
		sum.StatWrites += r.StatWrites
		sum.EquipWrites += r.EquipWrites
		for _, o := range r.Outcomes {
			if o.Status == StatusFailed {
				sum.ByReason[o.Reason]++
			}
		}
		failed := r.failed()
		if failed && len(sum.Failed) < c.cfg.FailListLimit {
			sum.Failed = append(sum.Failed, r.Name)
		}
		return done, failed
	}

	for i := 0; i < c.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range work {
				r := c.processOne(ctx, item, writer)

				for _, o := range r.Outcomes {
					if o.Status != StatusFailed {
						continue
					}
					log.Warn("step failed",
						"name", item.Name, "step", o.Step, "reason", o.Reason, "error", o.Err)
					lastErr := ""
					if o.Err != nil {
						lastErr = o.Err.Error()
					}
					rec := store.FailureRecord(item.Name, c.cfg.World, o.Reason, lastErr,
						sum.RunID, c.clock.Now().Format(time.RFC3339))
					if err := writer.Enqueue(ctx, rec); err != nil {
						return
					}
				}

				n, failed := record(r)
				if progress != nil {
					safeProgress(progress, n, sum.Total, item.Name, failed, log)
				}
			}
		}()
	}

feed:
	for _, item := range items {
		select {
		case work <- item:
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	wg.Wait()

	writer.Close()
	writer.Wait()

	sum.IntentsApplied = writer.Applied()
	sum.IntentsSkipped = writer.Skipped()
	sum.Finished = c.clock.Now()

	log.Info("sync finished",
		"processed", sum.Processed,
		"unresolved", sum.Unresolved,
		"profile_updates", sum.ProfileUpdates,
		"stat_writes", sum.StatWrites,
		"equip_writes", sum.EquipWrites,
		"intents_applied", sum.IntentsApplied,
		"intents_skipped", sum.IntentsSkipped,
		"elapsed", sum.Finished.Sub(sum.Started))

	if err := ctx.Err(); err != nil {
		return sum, err
	}
	return sum, nil
}

func safeProgress(p Progress, done, total int, name string, failed bool, log *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("progress callback panicked", "panic", r)
		}
	}()
	p(done, total, name, failed)
}

// ExpandGuilds resolves each guild and adds its members to the work set,
// skipping names that are already present or blocklisted. Returns the number
// of members newly added.
func (c *Coordinator) ExpandGuilds(ctx context.Context, guilds []string) (int, error) {
	added := 0
	for _, g := range guilds {
		gid, err := withRetry(ctx, c.backoff, func() (string, error) {
			return c.api.GuildID(ctx, g, c.cfg.World)
		})
		if err != nil {
			c.log.Warn("guild lookup failed", "guild", g, "error", err)
			continue
		}
		basic, err := withRetry(ctx, c.backoff, func() (*nexon.GuildBasic, error) {
			return c.api.GuildBasic(ctx, gid)
		})
		if err != nil {
			c.log.Warn("guild fetch failed", "guild", g, "error", err)
			continue
		}

		n, err := c.store.AddToWorkSet(ctx, c.cfg.World, basic.GuildMember)
		if err != nil {
			return added, err
		}
		added += n
		c.log.Info("guild expanded", "guild", g, "members", len(basic.GuildMember), "added", n)
	}
	return added, nil
}
