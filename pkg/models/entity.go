package models

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/database"
)

// Entity types
const (
	EntityTypePerson       = "person"
	EntityTypeOrganization = "organization"
)

// Entity is a contact (person or organization) owned by a single user.
type Entity struct {
	ID          string `db:"id" json:"id"`
	UserID      string `db:"user_id" json:"user_id"`
	Type        string `db:"type" json:"type"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`
	AvatarURL   string `db:"avatar_url" json:"avatar_url,omitempty"`

	// Legacy single-source provenance columns. New writes land in
	// Metadata.ExternalIDs; these remain for rows imported before the
	// metadata format existed.
	ExternalID *string `db:"external_id" json:"external_id,omitempty"`
	Source     *string `db:"source" json:"source,omitempty"`

	Metadata          database.JSONB[EntityMetadata] `db:"metadata" json:"metadata"`
	LastInteractionAt *time.Time                     `db:"last_interaction_at" json:"last_interaction_at,omitempty"`
	Archived          bool                           `db:"archived" json:"archived"`
	CreatedAt         time.Time                      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time                      `db:"updated_at" json:"updated_at"`

	Identifiers []Identifier `db:"-" json:"identifiers,omitempty"`
}

// EntityMetadata tracks provenance and merge history for an entity.
type EntityMetadata struct {
	ExternalIDs  map[string]string `json:"external_ids,omitempty"`
	Sources      []string          `json:"sources,omitempty"`
	MergedCount  int               `json:"merged_count,omitempty"`
	LastMergedAt *time.Time        `json:"last_merged_at,omitempty"`
}

// Absorb folds an entity's provenance into the metadata. External IDs already
// present always win; sources are a de-duplicated union. The legacy singular
// external_id column is folded in under its source, defaulting to "unknown".
func (m *EntityMetadata) Absorb(e *Entity) {
	other := e.Metadata.Data

	for source, id := range other.ExternalIDs {
		m.addExternalID(source, id)
	}

	if e.ExternalID != nil && *e.ExternalID != "" {
		source := "unknown"
		if e.Source != nil && *e.Source != "" {
			source = *e.Source
		}
		m.addExternalID(source, *e.ExternalID)
	}

	for _, s := range other.Sources {
		m.AddSource(s)
	}
	if e.Source != nil && *e.Source != "" {
		m.AddSource(*e.Source)
	}
}

func (m *EntityMetadata) addExternalID(source, id string) {
	if source == "" || id == "" {
		return
	}
	if m.ExternalIDs == nil {
		m.ExternalIDs = make(map[string]string)
	}
	if _, ok := m.ExternalIDs[source]; !ok {
		m.ExternalIDs[source] = id
	}
}

// AddSource appends a source if it is not already present.
func (m *EntityMetadata) AddSource(source string) {
	if source == "" {
		return
	}
	for _, s := range m.Sources {
		if s == source {
			return
		}
	}
	m.Sources = append(m.Sources, source)
}

// RecordMerge bumps the cumulative merge counters.
func (m *EntityMetadata) RecordMerge(duplicates int, at time.Time) {
	m.MergedCount += duplicates
	m.LastMergedAt = &at
}
