package dto

import (
	"github.com/google/uuid"
)

type CreateCollectionRequest struct {
	CollectionID string `json:"collection_id" binding:"required"`
}

type CollectionResponse struct {
	CollectionID string `json:"collection_id"`
	State        string `json:"state"`
	CreatedAt    string `json:"created_at"`
}

type FaceResponse struct {
	FaceID       uuid.UUID `json:"face_id"`
	CollectionID string    `json:"collection_id"`
	BoundingBox  BBox      `json:"bounding_box"`
	Confidence   float32   `json:"confidence"`
	ImageID      string    `json:"image_id,omitempty"`
	CreatedAt    string    `json:"created_at"`
}

type BBox struct {
	X1 float32 `json:"x1"`
	Y1 float32 `json:"y1"`
	X2 float32 `json:"x2"`
	Y2 float32 `json:"y2"`
}
