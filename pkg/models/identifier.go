package models

import (
	"strings"
	"time"
)

// Identifier types
const (
	IdentifierTypeEmail  = "email"
	IdentifierTypePhone  = "phone"
	IdentifierTypeURL    = "url"
	IdentifierTypeCustom = "custom"
)

// Identifier is a contact method attached to an entity (email address, phone
// number, profile URL, etc.).
type Identifier struct {
	ID              string    `db:"id" json:"id"`
	EntityID        string    `db:"entity_id" json:"entity_id"`
	Type            string    `db:"type" json:"type"`
	Value           string    `db:"value" json:"value"`
	NormalizedValue string    `db:"normalized_value" json:"normalized_value"`
	Label           string    `db:"label" json:"label,omitempty"`
	IsPrimary       bool      `db:"is_primary" json:"is_primary"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Key identifies a (type, value) pair case-insensitively. Two identifiers
// with equal keys are considered copies of each other.
func (i Identifier) Key() string {
	return i.Type + "\x00" + strings.ToLower(strings.TrimSpace(i.Value))
}
