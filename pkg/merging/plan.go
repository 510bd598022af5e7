package merging

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// splitIdentifiers partitions a duplicate's identifiers into copies the
// primary already carries (deleted) and new ones (moved). primaryKeys gains
// the moved keys so later duplicates in the same merge see them.
func splitIdentifiers(primaryKeys map[string]bool, dupIdentifiers []models.Identifier) (deleteIDs, moveIDs []string) {
	for _, ident := range dupIdentifiers {
		key := ident.Key()
		if primaryKeys[key] {
			deleteIDs = append(deleteIDs, ident.ID)
			continue
		}
		primaryKeys[key] = true
		moveIDs = append(moveIDs, ident.ID)
	}
	return deleteIDs, moveIDs
}

// splitCustomFields does the same partitioning for custom fields, keyed by
// category and name.
func splitCustomFields(primaryKeys map[string]bool, dupFields []models.CustomField) (deleteIDs, moveIDs []string) {
	for _, field := range dupFields {
		key := field.Key()
		if primaryKeys[key] {
			deleteIDs = append(deleteIDs, field.ID)
			continue
		}
		primaryKeys[key] = true
		moveIDs = append(moveIDs, field.ID)
	}
	return deleteIDs, moveIDs
}

// identifierKeySet builds the collision set for an entity's identifiers.
func identifierKeySet(identifiers []models.Identifier) map[string]bool {
	keys := make(map[string]bool, len(identifiers))
	for _, ident := range identifiers {
		keys[ident.Key()] = true
	}
	return keys
}

// customFieldKeySet builds the collision set for an entity's custom fields.
func customFieldKeySet(fields []models.CustomField) map[string]bool {
	keys := make(map[string]bool, len(fields))
	for _, field := range fields {
		keys[field.Key()] = true
	}
	return keys
}

// backfillScalars fills display fields the primary is missing from the
// duplicate. A primary's own values are never overwritten; the interaction
// timestamp keeps whichever is most recent.
func backfillScalars(primary, dup *models.Entity) {
	if primary.Description == "" && dup.Description != "" {
		primary.Description = dup.Description
	}
	if primary.AvatarURL == "" && dup.AvatarURL != "" {
		primary.AvatarURL = dup.AvatarURL
	}
	primary.LastInteractionAt = laterTime(primary.LastInteractionAt, dup.LastInteractionAt)
}

func laterTime(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.After(*a) {
		return b
	}
	return a
}
