package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/google/uuid"

	"github.com/your-org/facegate/internal/faceerr"
	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/recognizer"
)

var collectionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.\-]{1,255}$`)

// CollectionService keeps the registry and the recognizer namespace for a
// collection in lockstep.
type CollectionService struct {
	registry CollectionRegistry
	rec      recognizer.Gateway
	records  RecordStore
}

func NewCollectionService(registry CollectionRegistry, rec recognizer.Gateway, records RecordStore) *CollectionService {
	return &CollectionService{registry: registry, rec: rec, records: records}
}

// Create registers the collection and provisions its recognizer namespace.
// Creating an ID that is already active is a conflict; an ID whose previous
// collection was deleted may be reused.
func (s *CollectionService) Create(ctx context.Context, id string) (*models.Collection, error) {
	if !collectionIDPattern.MatchString(id) {
		return nil, faceerr.Newf(faceerr.Validation, "invalid collection id %q", id)
	}

	col, err := s.registry.CreateCollection(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("register collection: %w", err)
	}

	if err := s.provisionNamespace(ctx, id); err != nil {
		// Roll the registry row back so a later create can start clean.
		if derr := s.registry.DeleteCollection(ctx, id); derr != nil {
			slog.Error("roll back collection registration", "collection_id", id, "error", derr)
		}
		return nil, fmt.Errorf("provision recognizer namespace: %w", err)
	}

	slog.Info("collection created", "collection_id", id)
	return col, nil
}

// provisionNamespace creates the recognizer namespace for a fresh collection.
// A Conflict means a namespace survived an earlier delete of the same ID; it is
// swept and recreated so stale descriptors cannot resurface under the new
// collection.
func (s *CollectionService) provisionNamespace(ctx context.Context, id string) error {
	err := s.rec.CreateCollection(ctx, id)
	if !faceerr.IsKind(err, faceerr.Conflict) {
		return err
	}

	slog.Warn("sweeping leftover recognizer namespace", "collection_id", id)
	if err := s.rec.DeleteCollection(ctx, id); err != nil && !faceerr.IsKind(err, faceerr.NotFound) {
		return fmt.Errorf("sweep leftover namespace: %w", err)
	}
	return s.rec.CreateCollection(ctx, id)
}

// Delete tears a collection down. Deletion is refused while any descriptor in
// the collection still has a linked identity record, so that records can never
// silently lose the descriptor they point at.
func (s *CollectionService) Delete(ctx context.Context, id string) error {
	exists, err := s.registry.CollectionExists(ctx, id)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return faceerr.Newf(faceerr.NotFound, "collection %q not found", id)
	}

	descriptors, err := s.rec.ListDescriptors(ctx, id)
	if err != nil && !faceerr.IsKind(err, faceerr.NotFound) {
		return fmt.Errorf("list descriptors: %w", err)
	}

	if len(descriptors) > 0 {
		faceIDs := make([]uuid.UUID, len(descriptors))
		for i, d := range descriptors {
			faceIDs[i] = d.FaceID
		}
		linked, err := s.records.ExistingFaceIDs(ctx, faceIDs)
		if err != nil {
			return fmt.Errorf("check linked records: %w", err)
		}
		if len(linked) > 0 {
			return faceerr.Newf(faceerr.HasDependents,
				"collection %q has %d descriptors with linked identity records", id, len(linked))
		}
	}

	// Deregister first: a half-failed delete must never leave an active
	// collection whose namespace is gone. A surviving namespace is harmless,
	// provisionNamespace sweeps it when the ID is next created.
	if err := s.registry.DeleteCollection(ctx, id); err != nil {
		return fmt.Errorf("deregister collection: %w", err)
	}
	if err := s.rec.DeleteCollection(ctx, id); err != nil && !faceerr.IsKind(err, faceerr.NotFound) {
		slog.Error("delete recognizer namespace", "collection_id", id, "error", err)
	}

	slog.Info("collection deleted", "collection_id", id, "descriptors", len(descriptors))
	return nil
}

func (s *CollectionService) Exists(ctx context.Context, id string) (bool, error) {
	return s.registry.CollectionExists(ctx, id)
}

func (s *CollectionService) List(ctx context.Context) ([]models.Collection, error) {
	return s.registry.ListCollections(ctx)
}

// ListFaces returns every descriptor currently indexed in the collection.
func (s *CollectionService) ListFaces(ctx context.Context, id string) ([]models.FaceDescriptor, error) {
	exists, err := s.registry.CollectionExists(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return nil, faceerr.Newf(faceerr.NotFound, "collection %q not found", id)
	}
	return s.rec.ListDescriptors(ctx, id)
}
