package nexon

import (
	"bytes"
	"strconv"
	"strings"
)

// The API is inconsistent about scalar encodings: numeric fields arrive as
// numbers or quoted strings depending on endpoint, and booleans as
// "true"/"false" strings. FlexInt/FlexFloat/FlexBool absorb that here so the
// rest of the codebase only ever sees Go scalars.

// FlexInt decodes a JSON number or numeric string. Empty and null decode to 0.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(bytes.Trim(bytes.TrimSpace(b), `"`)))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	// Some fields carry a fractional part even when semantically integral.
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = FlexInt(int64(v))
	return nil
}

// FlexFloat decodes a JSON number or numeric string. Empty and null decode to 0.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(bytes.Trim(bytes.TrimSpace(b), `"`)))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = FlexFloat(v)
	return nil
}

// FlexBool decodes a JSON bool or a "true"/"false" string.
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(bytes.Trim(bytes.TrimSpace(b), `"`))))
	*f = FlexBool(s == "true" || s == "1")
	return nil
}

// CharacterBasic is the profile record for one character.
type CharacterBasic struct {
	CharacterName        string    `json:"character_name"`
	WorldName            string    `json:"world_name"`
	CharacterGender      string    `json:"character_gender"`
	CharacterClass       string    `json:"character_class"`
	CharacterClassLevel  FlexInt   `json:"character_class_level"`
	CharacterLevel       FlexInt   `json:"character_level"`
	CharacterExp         FlexInt   `json:"character_exp"`
	CharacterExpRate     FlexFloat `json:"character_exp_rate"`
	CharacterGuildName   string    `json:"character_guild_name"`
	CharacterImage       string    `json:"character_image"`
	CharacterDateCreate  string    `json:"character_date_create"`
	LiberationQuestClear FlexInt   `json:"liberation_quest_clear"`
	AccessFlag           FlexBool  `json:"access_flag"`
}

// Stat is one named sample inside a stat snapshot.
type Stat struct {
	StatName  string    `json:"stat_name"`
	StatValue FlexFloat `json:"stat_value"`
}

// StatResponse is the stat snapshot for one character and date.
type StatResponse struct {
	Date      string `json:"date"`
	FinalStat []Stat `json:"final_stat"`
}

// EquipmentItem is one slot-keyed equipment sub-record. SlotKey() is the merge
// key used by the preset selector.
type EquipmentItem struct {
	Part              string `json:"item_equipment_part"`
	Slot              string `json:"item_equipment_slot"`
	Name              string `json:"item_name"`
	Icon              string `json:"item_icon,omitempty"`
	PotentialGrade    string `json:"potential_option_grade,omitempty"`
	AddPotentialGrade string `json:"additional_potential_option_grade,omitempty"`
	Potential1        string `json:"potential_option_1,omitempty"`
	Potential2        string `json:"potential_option_2,omitempty"`
	Potential3        string `json:"potential_option_3,omitempty"`
	AddPotential1     string `json:"additional_potential_option_1,omitempty"`
	AddPotential2     string `json:"additional_potential_option_2,omitempty"`
	AddPotential3     string `json:"additional_potential_option_3,omitempty"`
}

// SlotKey returns the merge key for this item: the slot, falling back to the
// part when the slot field is empty.
func (it EquipmentItem) SlotKey() string {
	if k := strings.TrimSpace(it.Slot); k != "" {
		return k
	}
	return strings.TrimSpace(it.Part)
}

// EquipmentResponse is the equipment snapshot for one character and date.
// ItemEquipment is the currently selected set; Preset1..3 are the alternative
// candidates the selector chooses among.
type EquipmentResponse struct {
	Date          string          `json:"date,omitempty"`
	PresetNo      int             `json:"preset_no,omitempty"`
	ItemEquipment []EquipmentItem `json:"item_equipment"`
	Preset1       []EquipmentItem `json:"item_equipment_preset_1,omitempty"`
	Preset2       []EquipmentItem `json:"item_equipment_preset_2,omitempty"`
	Preset3       []EquipmentItem `json:"item_equipment_preset_3,omitempty"`
}

// GuildBasic is the guild profile, of which only the member roster matters
// for work-set expansion.
type GuildBasic struct {
	GuildName   string   `json:"guild_name"`
	GuildMember []string `json:"guild_member"`
}

type ocidResponse struct {
	OCID string `json:"ocid"`
}

type guildIDResponse struct {
	OguildID string `json:"oguild_id"`
}
