package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string {
	return &s
}

func TestEntityMetadata_Absorb(t *testing.T) {
	t.Run("existing external ids win", func(t *testing.T) {
		meta := EntityMetadata{ExternalIDs: map[string]string{"linkedin": "keep-123"}}

		dup := &Entity{}
		dup.Metadata.Data = EntityMetadata{ExternalIDs: map[string]string{
			"linkedin": "discard-456",
			"twitter":  "new-789",
		}}

		meta.Absorb(dup)

		assert.Equal(t, "keep-123", meta.ExternalIDs["linkedin"])
		assert.Equal(t, "new-789", meta.ExternalIDs["twitter"])
	})

	t.Run("legacy column folded in under its source", func(t *testing.T) {
		meta := EntityMetadata{}

		dup := &Entity{
			ExternalID: strPtr("legacy-1"),
			Source:     strPtr("google"),
		}

		meta.Absorb(dup)

		assert.Equal(t, "legacy-1", meta.ExternalIDs["google"])
		assert.Equal(t, []string{"google"}, meta.Sources)
	})

	t.Run("legacy column without source defaults to unknown", func(t *testing.T) {
		meta := EntityMetadata{}

		dup := &Entity{ExternalID: strPtr("legacy-2")}

		meta.Absorb(dup)

		assert.Equal(t, "legacy-2", meta.ExternalIDs["unknown"])
	})

	t.Run("sources are a deduplicated union", func(t *testing.T) {
		meta := EntityMetadata{Sources: []string{"manual"}}

		dup := &Entity{Source: strPtr("google")}
		dup.Metadata.Data = EntityMetadata{Sources: []string{"manual", "csv-import"}}

		meta.Absorb(dup)

		assert.Equal(t, []string{"manual", "csv-import", "google"}, meta.Sources)
	})

	t.Run("empty legacy values ignored", func(t *testing.T) {
		meta := EntityMetadata{}

		dup := &Entity{ExternalID: strPtr(""), Source: strPtr("")}

		meta.Absorb(dup)

		assert.Empty(t, meta.ExternalIDs)
		assert.Empty(t, meta.Sources)
	})
}

func TestEntityMetadata_RecordMerge(t *testing.T) {
	meta := EntityMetadata{MergedCount: 2}

	first := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	meta.RecordMerge(3, first)
	assert.Equal(t, 5, meta.MergedCount)
	assert.Equal(t, first, *meta.LastMergedAt)

	second := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	meta.RecordMerge(1, second)
	assert.Equal(t, 6, meta.MergedCount)
	assert.Equal(t, second, *meta.LastMergedAt)
}

func TestIdentifierKey(t *testing.T) {
	a := Identifier{Type: IdentifierTypeEmail, Value: " John@Example.com "}
	b := Identifier{Type: IdentifierTypeEmail, Value: "john@example.com"}
	assert.Equal(t, a.Key(), b.Key())

	c := Identifier{Type: IdentifierTypeCustom, Value: "john@example.com"}
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestCustomFieldKey(t *testing.T) {
	a := CustomField{Name: "birthday", Category: "personal"}
	b := CustomField{Name: "birthday", Category: "personal", Value: "different value"}
	assert.Equal(t, a.Key(), b.Key())

	c := CustomField{Name: "birthday", Category: "work"}
	assert.NotEqual(t, a.Key(), c.Key())
}
