package domain

import "time"

// ResourceStatus is the lifecycle state of an owned resource. The only
// transition is active -> deleted.
type ResourceStatus string

const (
	StatusActive  ResourceStatus = "active"
	StatusDeleted ResourceStatus = "deleted"
)

// DreamType classifies a journal entry.
type DreamType string

const (
	DreamTypeNormal    DreamType = "normal"
	DreamTypeLucid     DreamType = "lucid"
	DreamTypeNightmare DreamType = "nightmare"
	DreamTypeRecurring DreamType = "recurring"
	DreamTypeProphetic DreamType = "prophetic"
	DreamTypeOther     DreamType = "other"
)

// Valid reports whether the dream type is known.
func (t DreamType) Valid() bool {
	switch t {
	case DreamTypeNormal, DreamTypeLucid, DreamTypeNightmare, DreamTypeRecurring, DreamTypeProphetic, DreamTypeOther:
		return true
	}
	return false
}

// JournalEntry is a dream recorded by its owner.
type JournalEntry struct {
	ID                   string
	UserID               string
	Title                string
	Content              string
	DreamDate            time.Time
	Mood                 string
	DreamType            DreamType
	Category             string
	Tags                 []string
	SpiritualPerspective string
	Interpretation       string
	PersonalNotes        string
	Lucidity             int
	Privacy              Privacy
	Status               ResourceStatus
	CreatedAt            time.Time
	UpdatedAt            time.Time
	DeletedAt            *time.Time
}

// OwnerID implements Owned.
func (e JournalEntry) OwnerID() string { return e.UserID }

// IsDeleted reports whether the entry was soft-deleted.
func (e JournalEntry) IsDeleted() bool { return e.Status == StatusDeleted }

// Redacted strips the owner-only fields.
func (e JournalEntry) Redacted() JournalEntry {
	e.Interpretation = ""
	e.PersonalNotes = ""
	return e
}

// JournalFilter narrows journal listings. Zero values mean "no constraint".
type JournalFilter struct {
	UserID               string
	Privacy              []Privacy
	Category             string
	Tag                  string
	DreamType            DreamType
	SpiritualPerspective string
	Search               string
	Page                 Page
}

// JournalStats summarizes a user's active entries.
type JournalStats struct {
	Total       int
	ByDreamType map[DreamType]int
	ByPrivacy   map[Privacy]int
}
