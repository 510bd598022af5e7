package merging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/fern/pkg/models"
)

func TestSplitIdentifiers(t *testing.T) {
	primaryKeys := identifierKeySet([]models.Identifier{
		{ID: "p1", Type: models.IdentifierTypeEmail, Value: "john@example.com"},
	})

	dupIdentifiers := []models.Identifier{
		{ID: "d1", Type: models.IdentifierTypeEmail, Value: "John@Example.COM"},
		{ID: "d2", Type: models.IdentifierTypeEmail, Value: "john.doe@work.com"},
		{ID: "d3", Type: models.IdentifierTypePhone, Value: "555-1234"},
	}

	deleteIDs, moveIDs := splitIdentifiers(primaryKeys, dupIdentifiers)

	assert.Equal(t, []string{"d1"}, deleteIDs)
	assert.Equal(t, []string{"d2", "d3"}, moveIDs)
}

func TestSplitIdentifiers_SameValueDifferentType(t *testing.T) {
	primaryKeys := identifierKeySet([]models.Identifier{
		{ID: "p1", Type: models.IdentifierTypeEmail, Value: "shared-value"},
	})

	deleteIDs, moveIDs := splitIdentifiers(primaryKeys, []models.Identifier{
		{ID: "d1", Type: models.IdentifierTypeCustom, Value: "shared-value"},
	})

	assert.Empty(t, deleteIDs)
	assert.Equal(t, []string{"d1"}, moveIDs)
}

func TestSplitIdentifiers_LaterDuplicatesSeeMovedKeys(t *testing.T) {
	primaryKeys := identifierKeySet(nil)

	_, firstMoved := splitIdentifiers(primaryKeys, []models.Identifier{
		{ID: "d1", Type: models.IdentifierTypeEmail, Value: "john@example.com"},
	})
	assert.Equal(t, []string{"d1"}, firstMoved)

	// same value arriving from a second duplicate in the same merge
	secondDeleted, secondMoved := splitIdentifiers(primaryKeys, []models.Identifier{
		{ID: "d2", Type: models.IdentifierTypeEmail, Value: "john@example.com"},
	})
	assert.Equal(t, []string{"d2"}, secondDeleted)
	assert.Empty(t, secondMoved)
}

func TestSplitCustomFields(t *testing.T) {
	primaryKeys := customFieldKeySet([]models.CustomField{
		{ID: "p1", Name: "birthday", Category: "personal"},
	})

	deleteIDs, moveIDs := splitCustomFields(primaryKeys, []models.CustomField{
		{ID: "d1", Name: "birthday", Category: "personal"},
		{ID: "d2", Name: "birthday", Category: "work"},
		{ID: "d3", Name: "title", Category: "work"},
	})

	assert.Equal(t, []string{"d1"}, deleteIDs)
	assert.Equal(t, []string{"d2", "d3"}, moveIDs)
}

func TestBackfillScalars(t *testing.T) {
	earlier := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		primary  models.Entity
		dup      models.Entity
		expected models.Entity
	}{
		{
			name:     "fills missing description and avatar",
			primary:  models.Entity{},
			dup:      models.Entity{Description: "old friend", AvatarURL: "https://img/a.png"},
			expected: models.Entity{Description: "old friend", AvatarURL: "https://img/a.png"},
		},
		{
			name:     "never overwrites existing values",
			primary:  models.Entity{Description: "keep me", AvatarURL: "https://img/keep.png"},
			dup:      models.Entity{Description: "discard", AvatarURL: "https://img/discard.png"},
			expected: models.Entity{Description: "keep me", AvatarURL: "https://img/keep.png"},
		},
		{
			name:     "takes later interaction time",
			primary:  models.Entity{LastInteractionAt: &earlier},
			dup:      models.Entity{LastInteractionAt: &later},
			expected: models.Entity{LastInteractionAt: &later},
		},
		{
			name:     "keeps own later interaction time",
			primary:  models.Entity{LastInteractionAt: &later},
			dup:      models.Entity{LastInteractionAt: &earlier},
			expected: models.Entity{LastInteractionAt: &later},
		},
		{
			name:     "fills nil interaction time",
			primary:  models.Entity{},
			dup:      models.Entity{LastInteractionAt: &earlier},
			expected: models.Entity{LastInteractionAt: &earlier},
		},
		{
			name:     "both nil stays nil",
			primary:  models.Entity{},
			dup:      models.Entity{},
			expected: models.Entity{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backfillScalars(&tt.primary, &tt.dup)
			assert.Equal(t, tt.expected.Description, tt.primary.Description)
			assert.Equal(t, tt.expected.AvatarURL, tt.primary.AvatarURL)
			assert.Equal(t, tt.expected.LastInteractionAt, tt.primary.LastInteractionAt)
		})
	}
}

func TestValidatePair(t *testing.T) {
	person := func(id string) *models.Entity {
		return &models.Entity{ID: id, Type: models.EntityTypePerson}
	}

	t.Run("same type passes", func(t *testing.T) {
		assert.NoError(t, validatePair(person("a"), person("b")))
	})

	t.Run("self merge rejected", func(t *testing.T) {
		err := validatePair(person("a"), person("a"))
		assert.Error(t, err)
	})

	t.Run("type mismatch rejected", func(t *testing.T) {
		org := &models.Entity{ID: "b", Type: models.EntityTypeOrganization}
		err := validatePair(person("a"), org)
		assert.Error(t, err)
	})
}
