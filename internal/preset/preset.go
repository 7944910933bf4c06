// Package preset picks the best equipment snapshot among the candidate preset
// sets the API returns alongside the currently selected set.
//
// The pick is a pure function of its inputs: identical (base, presets) always
// yield the same winning merge and winning preset number, regardless of input
// order. Merged output is sorted by slot key so serialized snapshots diff
// cleanly between runs.
package preset

import (
	"sort"
	"strings"

	"github.com/roach88/maplesync/internal/nexon"
)

// DropMarker marks the less-desirable item variant. Equivalent presets are
// ranked by how few of these they contain.
const DropMarker = "道具掉落率"

// Selection is the outcome of a pick: the trimmed response holding the winning
// merge, plus the fields the best-snapshot row stores.
type Selection struct {
	Response     nexon.EquipmentResponse
	PresetNo     int
	DropMentions int
}

// Pick merges each non-empty preset over the base set, costs the merges, and
// returns the cheapest as a trimmed response (preset lists removed, preset_no
// and item_equipment replaced by the winner).
//
// Merge semantics: base fills the gaps, preset wins on slot conflict. Items
// that only exist in the base set survive into every candidate.
//
// Tie-break: preset 2 first (conventionally the combat set), then the lowest
// preset number. With no usable presets the response passes through unchanged.
func Pick(resp *nexon.EquipmentResponse) Selection {
	type candidate struct {
		mentions int
		prefer   int // 0 for preset 2, 1 otherwise
		no       int
		items    []nexon.EquipmentItem
	}

	presets := []struct {
		no    int
		items []nexon.EquipmentItem
	}{
		{1, resp.Preset1},
		{2, resp.Preset2},
		{3, resp.Preset3},
	}

	var candidates []candidate
	for _, p := range presets {
		if len(p.items) == 0 {
			continue
		}
		merged := mergeItems(resp.ItemEquipment, p.items)
		prefer := 1
		if p.no == 2 {
			prefer = 0
		}
		candidates = append(candidates, candidate{
			mentions: CountDropMentions(merged),
			prefer:   prefer,
			no:       p.no,
			items:    merged,
		})
	}

	if len(candidates) == 0 {
		return Selection{
			Response:     *resp,
			PresetNo:     resp.PresetNo,
			DropMentions: CountDropMentions(resp.ItemEquipment),
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.mentions != b.mentions {
			return a.mentions < b.mentions
		}
		if a.prefer != b.prefer {
			return a.prefer < b.prefer
		}
		return a.no < b.no
	})
	best := candidates[0]

	trimmed := *resp
	trimmed.Preset1, trimmed.Preset2, trimmed.Preset3 = nil, nil, nil
	trimmed.PresetNo = best.no
	trimmed.ItemEquipment = best.items

	return Selection{Response: trimmed, PresetNo: best.no, DropMentions: best.mentions}
}

// mergeItems overlays preset items on the base set by slot key and returns the
// result sorted by key. Items with no usable key are dropped.
func mergeItems(base, preset []nexon.EquipmentItem) []nexon.EquipmentItem {
	merged := make(map[string]nexon.EquipmentItem, len(base)+len(preset))
	for _, it := range base {
		if k := it.SlotKey(); k != "" {
			merged[k] = it
		}
	}
	for _, it := range preset {
		if k := it.SlotKey(); k != "" {
			merged[k] = it
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]nexon.EquipmentItem, 0, len(keys))
	for _, k := range keys {
		out = append(out, merged[k])
	}
	return out
}

// CountDropMentions counts DropMarker occurrences across the potential-option
// fields of all items. This is the snapshot's cost.
func CountDropMentions(items []nexon.EquipmentItem) int {
	n := 0
	for _, it := range items {
		for _, s := range []string{
			it.Potential1, it.Potential2, it.Potential3,
			it.AddPotential1, it.AddPotential2, it.AddPotential3,
		} {
			n += strings.Count(s, DropMarker)
		}
	}
	return n
}
