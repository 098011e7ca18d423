package models

import (
	"time"

	"github.com/google/uuid"
)

// IdentityMetadata is the caller-supplied payload linked to a descriptor at
// enrollment time.
type IdentityMetadata struct {
	Name           string `json:"name"`
	ContactNumber  string `json:"contact_number"`
	DocumentNumber string `json:"document_number"`
	RequestType    string `json:"request_type"`
}

// IdentityRecord is the durable one-to-one mapping from a face ID to identity
// metadata. Records are write-once: the enrollment orchestrator inserts them
// and nothing ever updates them.
type IdentityRecord struct {
	FaceID         uuid.UUID `json:"face_id" db:"face_id"`
	Name           string    `json:"name" db:"name"`
	ContactNumber  string    `json:"contact_number" db:"contact_number"`
	DocumentNumber string    `json:"document_number" db:"document_number"`
	RequestType    string    `json:"request_type" db:"request_type"`
	ImageID        string    `json:"image_id,omitempty" db:"image_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Contactable reports whether the record carries an address a notification
// can be sent to.
func (r *IdentityRecord) Contactable() bool {
	return r != nil && r.ContactNumber != ""
}
