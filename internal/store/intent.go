package store

// Intent is a self-contained idempotent mutation: one SQL statement plus its
// bound parameters. Intents are safe to apply zero, one, or many times, in any
// order relative to intents for other characters. Workers build them with the
// constructors below and the single writer applies them.
type Intent struct {
	SQL  string
	Args []any
}

// CharacterUpsert builds the profile upsert intent.
//
// Two merge rules are encoded in the statement itself:
//   - optional columns use COALESCE(excluded.col, col) so an absent value
//     never overwrites a stored one
//   - character_level keeps MAX(stored, incoming); the level of a character
//     never goes down, so a lower incoming value is a stale read
func CharacterUpsert(rec CharacterRecord) Intent {
	return Intent{
		SQL: `
			INSERT INTO characters (
			  ocid, character_name, world_name,
			  character_gender, character_class, character_class_level,
			  character_level, character_exp, character_exp_rate,
			  character_guild_name, character_image, character_date_create,
			  liberation_quest_clear, access_flag, updated_at
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(ocid) DO UPDATE SET
			  character_name         = excluded.character_name,
			  world_name             = excluded.world_name,
			  character_gender       = COALESCE(excluded.character_gender, characters.character_gender),
			  character_class        = COALESCE(excluded.character_class, characters.character_class),
			  character_class_level  = COALESCE(excluded.character_class_level, characters.character_class_level),
			  character_level        = MAX(characters.character_level, excluded.character_level),
			  character_exp          = COALESCE(excluded.character_exp, characters.character_exp),
			  character_exp_rate     = COALESCE(excluded.character_exp_rate, characters.character_exp_rate),
			  character_guild_name   = COALESCE(excluded.character_guild_name, characters.character_guild_name),
			  character_image        = COALESCE(excluded.character_image, characters.character_image),
			  character_date_create  = COALESCE(excluded.character_date_create, characters.character_date_create),
			  liberation_quest_clear = COALESCE(excluded.liberation_quest_clear, characters.liberation_quest_clear),
			  access_flag            = COALESCE(excluded.access_flag, characters.access_flag),
			  updated_at             = excluded.updated_at
		`,
		Args: []any{
			rec.OCID, rec.Name, rec.World,
			rec.Gender, rec.Class, rec.ClassLevel,
			rec.Level, rec.Exp, rec.ExpRate,
			rec.GuildName, rec.Image, rec.DateCreate,
			rec.LiberationQuestClear, rec.AccessFlag, rec.UpdatedAt,
		},
	}
}

// StatUpsert builds the intent for one time-series sample.
func StatUpsert(ocid, statDate, statName string, statValue float64) Intent {
	return Intent{
		SQL: `
			INSERT OR REPLACE INTO character_stats (ocid, stat_date, stat_name, stat_value)
			VALUES (?,?,?,?)
		`,
		Args: []any{ocid, statDate, statName, statValue},
	}
}

// BestEquipmentUpsert replaces the character's single winning snapshot row.
func BestEquipmentUpsert(ocid, bestDate string, dropMentions, presetNo int, equipmentJSON, updatedAt string) Intent {
	return Intent{
		SQL: `
			INSERT INTO character_equipment_best
			  (ocid, best_date, drop_mentions, preset_no, equipment_json, updated_at)
			VALUES (?,?,?,?,?,?)
			ON CONFLICT(ocid) DO UPDATE SET
			  best_date      = excluded.best_date,
			  drop_mentions  = excluded.drop_mentions,
			  preset_no      = excluded.preset_no,
			  equipment_json = excluded.equipment_json,
			  updated_at     = excluded.updated_at
		`,
		Args: []any{ocid, bestDate, dropMentions, presetNo, equipmentJSON, updatedAt},
	}
}

// WorkSetAdd adds a name to the identity work set. Duplicates are ignored.
func WorkSetAdd(name, world string) Intent {
	return Intent{
		SQL:  `INSERT OR IGNORE INTO character_list (character_name, world_name) VALUES (?,?)`,
		Args: []any{name, world},
	}
}

// FailureRecord accumulates one failed step into the pending list,
// bumping the attempt counter on conflict.
func FailureRecord(name, world, reason, lastError, runID, updatedAt string) Intent {
	return Intent{
		SQL: `
			INSERT INTO sync_failures
			  (character_name, world_name, reason, attempts, last_error, run_id, updated_at)
			VALUES (?,?,?,1,?,?,?)
			ON CONFLICT(character_name, world_name, reason) DO UPDATE SET
			  attempts   = sync_failures.attempts + 1,
			  last_error = excluded.last_error,
			  run_id     = excluded.run_id,
			  updated_at = excluded.updated_at
		`,
		Args: []any{name, world, reason, lastError, runID, updatedAt},
	}
}
