package store

// CharacterRecord is the typed profile row for one character.
// Optional fields are pointers so an absent value maps to NULL and the
// null-coalescing upsert leaves the previously stored value alone.
type CharacterRecord struct {
	OCID                 string
	Name                 string
	World                string
	Gender               *string
	Class                *string
	ClassLevel           *int64
	Level                int64
	Exp                  *int64
	ExpRate              *float64
	GuildName            *string
	Image                *string
	DateCreate           *string
	LiberationQuestClear *int64
	AccessFlag           *int64
	UpdatedAt            string
}

// BlockEntry is one row of the exclusion set.
// Kind is one of "permanent", "temporary", "other".
type BlockEntry struct {
	Name        string
	World       string
	Kind        string
	BlockDate   string
	UnblockDate string
	Reason      string
	FirstSeen   string
}

// Failure is one row of the cross-run pending list.
type Failure struct {
	Name      string
	World     string
	Reason    string
	Attempts  int
	LastError string
	RunID     string
	UpdatedAt string
}
