package models

import "time"

// CustomField is a free-form attribute on an entity, grouped by category.
type CustomField struct {
	ID        string    `db:"id" json:"id"`
	EntityID  string    `db:"entity_id" json:"entity_id"`
	Name      string    `db:"name" json:"name"`
	Category  string    `db:"category" json:"category"`
	Value     string    `db:"value" json:"value"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Key identifies a field by name within its category. An entity carries at
// most one field per key after a merge.
func (f CustomField) Key() string {
	return f.Category + "\x00" + f.Name
}
