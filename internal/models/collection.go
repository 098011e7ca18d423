package models

import "time"

type CollectionState string

const (
	CollectionActive  CollectionState = "active"
	CollectionDeleted CollectionState = "deleted"
)

// Collection is a named namespace of enrolled face descriptors. The ID is
// caller-chosen and unique while the collection is active.
type Collection struct {
	ID        string          `json:"collection_id" db:"collection_id"`
	State     CollectionState `json:"state" db:"state"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	DeletedAt *time.Time      `json:"deleted_at,omitempty" db:"deleted_at"`
}
