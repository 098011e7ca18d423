package models

import (
	"time"

	"github.com/google/uuid"
)

// BoundingBox is the face location within the source image, in pixels.
type BoundingBox struct {
	X1 float32 `json:"x1"`
	Y1 float32 `json:"y1"`
	X2 float32 `json:"x2"`
	Y2 float32 `json:"y2"`
}

// FaceDescriptor is one detected, enrolled face. The face ID is assigned by
// the recognizer and is the join key between the recognizer's index and the
// identity record store. Geometry and confidence are passed through to
// callers, never interpreted by the orchestration core.
type FaceDescriptor struct {
	FaceID       uuid.UUID   `json:"face_id" db:"face_id"`
	CollectionID string      `json:"collection_id" db:"collection_id"`
	BoundingBox  BoundingBox `json:"bounding_box" db:"bounding_box"`
	Confidence   float32     `json:"confidence" db:"confidence"`
	ImageID      string      `json:"image_id,omitempty" db:"image_id"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
}
