package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facegate/internal/faceerr"
	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/observability"
	"github.com/your-org/facegate/internal/recognizer"
)

// ErrNoFaceDetected is returned when the recognizer finds no enrollable face
// in the submitted image. The caller should retake the photo.
var ErrNoFaceDetected = faceerr.New(faceerr.Validation, "no face detected in image")

// linkTimeout bounds the record write after the descriptor already exists.
const linkTimeout = 10 * time.Second

// EnrollmentService runs the two-step enrollment: index the face in the
// recognizer, then link an identity record to the resulting descriptor.
type EnrollmentService struct {
	registry CollectionRegistry
	rec      recognizer.Gateway
	records  RecordStore
	images   ImageArchiver // optional
}

func NewEnrollmentService(registry CollectionRegistry, rec recognizer.Gateway, records RecordStore, images ImageArchiver) *EnrollmentService {
	return &EnrollmentService{registry: registry, rec: rec, records: records, images: images}
}

// Enroll indexes the most prominent face in the image and links meta to it.
//
// The two writes hit independent stores and are not atomic. The descriptor is
// created first; if the record write then fails, the error carries the face ID
// so the link can be retried or the descriptor deleted. The record write runs
// on a detached context: once the descriptor exists, a disappearing caller
// must not be the thing that leaves it dangling.
func (s *EnrollmentService) Enroll(ctx context.Context, collectionID string, image []byte, meta models.IdentityMetadata) (*models.IdentityRecord, error) {
	if len(image) == 0 {
		return nil, faceerr.New(faceerr.Validation, "empty image")
	}
	if meta.Name == "" {
		return nil, faceerr.New(faceerr.Validation, "name is required")
	}

	exists, err := s.registry.CollectionExists(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return nil, faceerr.Newf(faceerr.NotFound, "collection %q not found", collectionID)
	}

	var imageID string
	if s.images != nil {
		imageID, err = s.images.StoreImage(ctx, collectionID, image, "image/jpeg")
		if err != nil {
			slog.Warn("archive enrollment image", "collection_id", collectionID, "error", err)
			imageID = ""
		}
	}

	descriptors, err := s.rec.Enroll(ctx, collectionID, image, imageID)
	if err != nil {
		observability.Enrollments.WithLabelValues("enroll_failed").Inc()
		return nil, fmt.Errorf("enroll face: %w", err)
	}
	if len(descriptors) == 0 {
		observability.Enrollments.WithLabelValues("no_face").Inc()
		return nil, ErrNoFaceDetected
	}

	// Only the most prominent face gets a record; extra descriptors still
	// count as search targets for the same person.
	primary := descriptors[0]
	rec := &models.IdentityRecord{
		FaceID:         primary.FaceID,
		Name:           meta.Name,
		ContactNumber:  meta.ContactNumber,
		DocumentNumber: meta.DocumentNumber,
		RequestType:    meta.RequestType,
		ImageID:        imageID,
		CreatedAt:      time.Now().UTC(),
	}

	linkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), linkTimeout)
	defer cancel()
	if err := s.records.PutRecord(linkCtx, rec); err != nil {
		observability.Enrollments.WithLabelValues("link_failed").Inc()
		observability.IntegrityErrors.WithLabelValues("dangling_descriptor").Inc()
		dangling := &faceerr.DanglingDescriptor{CollectionID: collectionID, FaceID: primary.FaceID, Cause: err}
		slog.Error("enrollment link failed", "collection_id", collectionID, "face_id", primary.FaceID, "error", err)
		return nil, dangling
	}

	observability.Enrollments.WithLabelValues("linked").Inc()
	slog.Info("enrolled",
		"collection_id", collectionID,
		"face_id", primary.FaceID,
		"faces_indexed", len(descriptors),
		"confidence", primary.Confidence)
	return rec, nil
}

// RetryLink re-attempts the record write for a descriptor left dangling by a
// failed enrollment. Idempotent: if the record was written after all, the
// existing one is returned.
func (s *EnrollmentService) RetryLink(ctx context.Context, collectionID string, faceID uuid.UUID, meta models.IdentityMetadata) (*models.IdentityRecord, error) {
	descriptors, err := s.rec.ListDescriptors(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("list descriptors: %w", err)
	}

	var descriptor *models.FaceDescriptor
	for i := range descriptors {
		if descriptors[i].FaceID == faceID {
			descriptor = &descriptors[i]
			break
		}
	}
	if descriptor == nil {
		return nil, faceerr.Newf(faceerr.NotFound, "descriptor %s not found in collection %q", faceID, collectionID)
	}

	rec := &models.IdentityRecord{
		FaceID:         faceID,
		Name:           meta.Name,
		ContactNumber:  meta.ContactNumber,
		DocumentNumber: meta.DocumentNumber,
		RequestType:    meta.RequestType,
		ImageID:        descriptor.ImageID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.records.PutRecord(ctx, rec); err != nil {
		if faceerr.IsKind(err, faceerr.Conflict) {
			return s.records.GetRecord(ctx, faceID)
		}
		return nil, fmt.Errorf("relink record: %w", err)
	}

	slog.Info("descriptor relinked", "collection_id", collectionID, "face_id", faceID)
	return rec, nil
}

// AbandonDescriptor deletes a dangling descriptor instead of relinking it.
// Refused if an identity record exists for the face ID.
func (s *EnrollmentService) AbandonDescriptor(ctx context.Context, collectionID string, faceID uuid.UUID) error {
	if _, err := s.records.GetRecord(ctx, faceID); err == nil {
		return faceerr.Newf(faceerr.Conflict, "descriptor %s has a linked identity record", faceID)
	} else if !faceerr.IsKind(err, faceerr.NotFound) {
		return fmt.Errorf("check record: %w", err)
	}

	if err := s.rec.DeleteDescriptor(ctx, collectionID, faceID); err != nil {
		return fmt.Errorf("delete descriptor: %w", err)
	}
	slog.Info("dangling descriptor deleted", "collection_id", collectionID, "face_id", faceID)
	return nil
}
