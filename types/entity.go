// Package types holds small value types shared by the ledger packages.
package types

import "time"

// Entity carries creation and modification timestamps.
// Embed it in stored records.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity returns an Entity stamped with the current UTC time.
func NewEntity() Entity {
	return EntityAt(time.Now())
}

// EntityAt returns an Entity stamped with t (normalized to UTC).
func EntityAt(t time.Time) Entity {
	t = t.UTC()
	return Entity{CreatedAt: t, UpdatedAt: t}
}

// Touch sets UpdatedAt to t (normalized to UTC).
func (e *Entity) Touch(t time.Time) {
	e.UpdatedAt = t.UTC()
}

// Age returns how long ago the entity was created.
func (e Entity) Age() time.Duration {
	return time.Since(e.CreatedAt)
}

// IsStale reports whether the entity has not been modified within d.
func (e Entity) IsStale(d time.Duration) bool {
	return time.Since(e.UpdatedAt) > d
}
