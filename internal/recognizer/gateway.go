// Package recognizer is the capability boundary to the biometric recognizer.
// The orchestration core calls it through the Gateway interface and never
// assumes anything about face ID format or descriptor internals; the default
// implementation keeps an ONNX detect/embed pipeline with a pgvector index.
package recognizer

import (
	"context"

	"github.com/google/uuid"

	"github.com/your-org/facegate/internal/models"
)

// Match is one ranked search hit. Similarity is in [0,100].
type Match struct {
	Descriptor models.FaceDescriptor `json:"descriptor"`
	Similarity float64               `json:"similarity"`
}

// CompareMatch is one target face that matched the source face.
type CompareMatch struct {
	BoundingBox models.BoundingBox `json:"bounding_box"`
	Confidence  float32            `json:"confidence"`
	Similarity  float64            `json:"similarity"`
}

// CompareResult reports the source face against every face detected in the
// target image.
type CompareResult struct {
	SourceFace       models.BoundingBox   `json:"source_face"`
	SourceConfidence float32              `json:"source_confidence"`
	Matches          []CompareMatch       `json:"matches"`
	Unmatched        []models.BoundingBox `json:"unmatched"`
}

// Gateway is the recognizer capability consumed by the orchestrators.
//
// Every operation is a remote call that may time out, fail transiently, or
// return a valid empty result (no face detected). The gateway never retries
// internally; retry policy belongs to the orchestrators.
type Gateway interface {
	CreateCollection(ctx context.Context, collectionID string) error
	// DeleteCollection removes the namespace and every descriptor in it.
	DeleteCollection(ctx context.Context, collectionID string) error

	// Enroll indexes every face detected in the image and returns the created
	// descriptors sorted by detection confidence, best first. An image with
	// no detectable face yields an empty slice and no error.
	Enroll(ctx context.Context, collectionID string, image []byte, imageID string) ([]models.FaceDescriptor, error)

	// Search matches the most prominent face in the image against the
	// collection. Hits are sorted descending by similarity and capped.
	Search(ctx context.Context, collectionID string, image []byte, threshold float64) ([]Match, error)

	// Compare scores the most prominent source face against every face in
	// the target image, without touching any collection.
	Compare(ctx context.Context, source, target []byte, threshold float64) (*CompareResult, error)

	ListDescriptors(ctx context.Context, collectionID string) ([]models.FaceDescriptor, error)
	// DeleteDescriptor removes one descriptor; used to compensate dangling
	// descriptors after a failed enrollment link.
	DeleteDescriptor(ctx context.Context, collectionID string, faceID uuid.UUID) error
}
