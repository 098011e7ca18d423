package dto

import "github.com/google/uuid"

type MatchResponse struct {
	Matched      bool            `json:"matched"`
	FaceID       *uuid.UUID      `json:"face_id,omitempty"`
	Similarity   float64         `json:"similarity,omitempty"`
	Record       *RecordResponse `json:"record,omitempty"`
	Orphaned     bool            `json:"orphaned,omitempty"`
	Notification Notification    `json:"notification"`
}

type Notification struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type CompareMatchResponse struct {
	BoundingBox BBox    `json:"bounding_box"`
	Confidence  float32 `json:"confidence"`
	Similarity  float64 `json:"similarity"`
}

type CompareResponse struct {
	SourceFace       BBox                   `json:"source_face"`
	SourceConfidence float32                `json:"source_confidence"`
	Matches          []CompareMatchResponse `json:"matches"`
	Unmatched        []BBox                 `json:"unmatched"`
}
