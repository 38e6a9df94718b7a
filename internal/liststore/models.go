package liststore

import (
	"time"
)

// EntryType distinguishes chain addresses from named entities.
type EntryType string

const (
	EntryTypeAddress EntryType = "address"
	EntryTypeEntity  EntryType = "entity"
)

// IsValid reports whether t is a known entry type.
func (t EntryType) IsValid() bool {
	return t == EntryTypeAddress || t == EntryTypeEntity
}

// Source identifies the list a record came from. Sources carry a category
// used to break confidence ties deterministically.
type Source string

const (
	SourceOFAC     Source = "ofac"
	SourceEU       Source = "eu"
	SourceUN       Source = "un"
	SourceUK       Source = "uk"
	SourceInternal Source = "internal"
	SourceAdvisory Source = "advisory"
)

// Priority orders sources for tie-breaking: sanctions lists outrank the
// internal watchlist, which outranks advisories. Lower is stronger.
func (s Source) Priority() int {
	switch s {
	case SourceOFAC, SourceEU, SourceUN, SourceUK:
		return 0
	case SourceInternal:
		return 1
	case SourceAdvisory:
		return 2
	default:
		return 3
	}
}

// IsValid reports whether s is a known source.
func (s Source) IsValid() bool { return s.Priority() < 3 }

// ListEntry is one normalized watchlist record. Entries are immutable once
// loaded; a new snapshot replaces them wholesale.
type ListEntry struct {
	// Identifier is the pre-normalized address or folded entity name.
	Identifier string    `json:"identifier"`
	Type       EntryType `json:"type"`
	Source     Source    `json:"source"`

	// SourceRef is the upstream record ID, e.g. an OFAC SDN number.
	SourceRef string `json:"source_ref,omitempty"`

	// EntityName names the designated party behind an address entry.
	EntityName string `json:"entity_name,omitempty"`

	// Program and Reason carry the sanction program and designation reason.
	Program string `json:"program,omitempty"`
	Reason  string `json:"reason,omitempty"`

	// Aliases are folded alternate names for entity entries.
	Aliases []string `json:"aliases,omitempty"`

	ListedAt time.Time `json:"listed_at,omitempty"`
}

// Snapshot is one complete delivery from the external list feed. The store
// re-folds identifiers on load; differently-cased duplicates land in the same
// index bucket.
type Snapshot struct {
	VersionLabel string      `json:"version_label"`
	Entries      []ListEntry `json:"entries"`
}
