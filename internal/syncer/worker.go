package syncer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/roach88/maplesync/internal/nexon"
	"github.com/roach88/maplesync/internal/preset"
	"github.com/roach88/maplesync/internal/store"
)

// WorkItem is one character plus the operations requested for this cycle.
type WorkItem struct {
	Name string
	// Force bypasses the staleness check and re-resolves the ocid even when
	// one is stored.
	Force bool
	// StatDates are ISO dates to fetch stat snapshots for.
	StatDates []string
	// EquipDates are ISO dates to fetch equipment snapshots for; "" means the
	// most recent snapshot.
	EquipDates []string
}

// processOne runs the per-character protocol. Every step reports an explicit
// outcome; a failing step never aborts the item, and a failing item never
// aborts the run. Mutations leave only as intents on the writer.
func (c *Coordinator) processOne(ctx context.Context, item WorkItem, w *Writer) itemResult {
	res := itemResult{Name: item.Name}

	now := c.clock.Now()
	today := now.Format("2006-01-02")
	nowISO := now.Format(time.RFC3339)

	// 1) Identity. A character we cannot resolve is skipped entirely.
	ocid, known, err := c.store.LookupOCID(ctx, item.Name, c.cfg.World)
	if err != nil {
		res.Unresolved = true
		res.add(StepResolve, StatusFailed, failureReason(StepResolve, errStore), err)
		return res
	}
	if !known || item.Force {
		resolved, err := withRetry(ctx, c.backoff, func() (string, error) {
			return c.api.ResolveOCID(ctx, item.Name)
		})
		if err != nil {
			res.Unresolved = true
			res.add(StepResolve, StatusFailed, failureReason(StepResolve, err), err)
			return res
		}
		ocid = resolved
	}
	res.add(StepResolve, StatusOK, "", nil)

	// 2) Staleness. Refetch the profile when it is old enough or has not been
	// written today; Force bypasses both checks.
	updatedAt, hasProfile, err := c.store.CharacterUpdatedAt(ctx, ocid)
	if err != nil {
		res.add(StepProfile, StatusFailed, failureReason(StepProfile, errStore), err)
	} else {
		stale := item.Force || !hasProfile || daysSince(updatedAt, now) >= c.cfg.RefreshDays
		updatedToday := hasProfile && len(updatedAt) >= 10 && updatedAt[:10] == today

		if stale || !updatedToday {
			basic, err := withRetry(ctx, c.backoff, func() (*nexon.CharacterBasic, error) {
				return c.api.Basic(ctx, ocid)
			})
			if err != nil {
				res.add(StepProfile, StatusFailed, failureReason(StepProfile, err), err)
			} else if err := w.Enqueue(ctx, store.CharacterUpsert(characterRecord(ocid, item.Name, c.cfg.World, basic, nowISO))); err != nil {
				res.add(StepProfile, StatusFailed, "profile:enqueue", err)
			} else {
				res.ProfileUpdated = true
				res.add(StepProfile, StatusOK, "", nil)
			}
		} else {
			res.SkippedFresh = true
			res.add(StepProfile, StatusSkipped, "fresh", nil)
		}
	}

	// 3) Samples, one fetch per requested date.
	for _, date := range item.StatDates {
		if c.cfg.SkipExisting && !item.Force {
			if exists, err := c.store.StatExists(ctx, ocid, date); err == nil && exists {
				res.add(StepStat, StatusSkipped, "exists", nil)
				continue
			}
		}

		stat, err := withRetry(ctx, c.backoff, func() (*nexon.StatResponse, error) {
			return c.api.Stat(ctx, ocid, date)
		})
		if err != nil {
			res.add(StepStat, StatusFailed, failureReason(StepStat, err), err)
			continue
		}

		wrote := 0
		var enqErr error
		for _, s := range stat.FinalStat {
			if s.StatName == "" {
				continue
			}
			if enqErr = w.Enqueue(ctx, store.StatUpsert(ocid, date, s.StatName, float64(s.StatValue))); enqErr != nil {
				break
			}
			wrote++
		}
		if enqErr != nil {
			res.add(StepStat, StatusFailed, "stat:enqueue", enqErr)
			continue
		}
		res.StatWrites += wrote
		res.add(StepStat, StatusOK, "", nil)
	}

	// 4) Snapshots: fetch the candidate set, pick one, store the single best row.
	for _, date := range item.EquipDates {
		storeDate := date
		if storeDate == "" {
			storeDate = today
		}

		if c.cfg.SkipExisting && !item.Force {
			if exists, err := c.store.BestEquipmentExists(ctx, ocid, storeDate); err == nil && exists {
				res.add(StepEquipment, StatusSkipped, "exists", nil)
				continue
			}
		}

		equip, err := withRetry(ctx, c.backoff, func() (*nexon.EquipmentResponse, error) {
			return c.api.ItemEquipment(ctx, ocid, date)
		})
		if err != nil {
			res.add(StepEquipment, StatusFailed, failureReason(StepEquipment, err), err)
			continue
		}

		sel := preset.Pick(equip)
		blob, err := json.Marshal(sel.Response)
		if err != nil {
			res.add(StepEquipment, StatusFailed, "equipment:encode", err)
			continue
		}
		if err := w.Enqueue(ctx, store.BestEquipmentUpsert(ocid, storeDate, sel.DropMentions, sel.PresetNo, string(blob), nowISO)); err != nil {
			res.add(StepEquipment, StatusFailed, "equipment:enqueue", err)
			continue
		}
		res.EquipWrites++
		res.add(StepEquipment, StatusOK, "", nil)
	}

	return res
}

// characterRecord maps an API profile onto the storage record. Empty strings
// become NULL so the null-coalescing upsert keeps whatever is already stored.
func characterRecord(ocid, fallbackName, world string, b *nexon.CharacterBasic, nowISO string) store.CharacterRecord {
	name := b.CharacterName
	if name == "" {
		name = fallbackName
	}
	w := b.WorldName
	if w == "" {
		w = world
	}

	classLevel := int64(b.CharacterClassLevel)
	exp := int64(b.CharacterExp)
	expRate := float64(b.CharacterExpRate)
	liberation := int64(b.LiberationQuestClear)
	var access int64
	if b.AccessFlag {
		access = 1
	}

	return store.CharacterRecord{
		OCID:                 ocid,
		Name:                 name,
		World:                w,
		Gender:               optStr(b.CharacterGender),
		Class:                optStr(b.CharacterClass),
		ClassLevel:           &classLevel,
		Level:                int64(b.CharacterLevel),
		Exp:                  &exp,
		ExpRate:              &expRate,
		GuildName:            optStr(b.CharacterGuildName),
		Image:                optStr(b.CharacterImage),
		DateCreate:           optStr(b.CharacterDateCreate),
		LiberationQuestClear: &liberation,
		AccessFlag:           &access,
		UpdatedAt:            nowISO,
	}
}

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// daysSince returns whole days between a stored RFC3339 timestamp and now.
// Unparseable timestamps count as very old, forcing a refresh.
func daysSince(iso string, now time.Time) int {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		if t, err = time.Parse("2006-01-02", iso[:min(10, len(iso))]); err != nil {
			return 1 << 20
		}
	}
	d0 := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	d1 := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(d1.Sub(d0) / (24 * time.Hour))
}
