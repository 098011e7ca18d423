package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/your-org/facegate/internal/faceerr"
	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/recognizer"
)

type fakeRegistry struct {
	existing  map[string]bool
	createErr error
	deleted   []string
}

func newFakeRegistry(ids ...string) *fakeRegistry {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return &fakeRegistry{existing: m}
}

func (f *fakeRegistry) CreateCollection(_ context.Context, id string) (*models.Collection, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.existing[id] {
		return nil, faceerr.Newf(faceerr.Conflict, "collection %q already exists", id)
	}
	f.existing[id] = true
	return &models.Collection{ID: id, State: models.CollectionActive}, nil
}

func (f *fakeRegistry) DeleteCollection(_ context.Context, id string) error {
	if !f.existing[id] {
		return faceerr.Newf(faceerr.NotFound, "collection %q not found", id)
	}
	delete(f.existing, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRegistry) CollectionExists(_ context.Context, id string) (bool, error) {
	return f.existing[id], nil
}

func (f *fakeRegistry) ListCollections(_ context.Context) ([]models.Collection, error) {
	out := make([]models.Collection, 0, len(f.existing))
	for id := range f.existing {
		out = append(out, models.Collection{ID: id, State: models.CollectionActive})
	}
	return out, nil
}

type fakeGateway struct {
	enrollFaces []models.FaceDescriptor
	enrollErr   error

	searchHits    []recognizer.Match
	searchErrs    []error // consumed one per call before searchHits is returned
	searchN       int
	lastThreshold float64

	createColErrs []error // consumed one per CreateCollection call
	deleteColErr  error

	descriptors  []models.FaceDescriptor
	deletedFaces []uuid.UUID
	deletedCols  []string
}

func (f *fakeGateway) CreateCollection(_ context.Context, _ string) error {
	if len(f.createColErrs) > 0 {
		err := f.createColErrs[0]
		f.createColErrs = f.createColErrs[1:]
		return err
	}
	return nil
}

func (f *fakeGateway) DeleteCollection(_ context.Context, id string) error {
	if f.deleteColErr != nil {
		return f.deleteColErr
	}
	f.deletedCols = append(f.deletedCols, id)
	return nil
}

func (f *fakeGateway) Enroll(_ context.Context, _ string, _ []byte, _ string) ([]models.FaceDescriptor, error) {
	return f.enrollFaces, f.enrollErr
}

func (f *fakeGateway) Search(_ context.Context, _ string, _ []byte, threshold float64) ([]recognizer.Match, error) {
	f.searchN++
	f.lastThreshold = threshold
	if len(f.searchErrs) > 0 {
		err := f.searchErrs[0]
		f.searchErrs = f.searchErrs[1:]
		return nil, err
	}
	return f.searchHits, nil
}

func (f *fakeGateway) Compare(_ context.Context, _, _ []byte, _ float64) (*recognizer.CompareResult, error) {
	return &recognizer.CompareResult{}, nil
}

func (f *fakeGateway) ListDescriptors(_ context.Context, _ string) ([]models.FaceDescriptor, error) {
	return f.descriptors, nil
}

func (f *fakeGateway) DeleteDescriptor(_ context.Context, _ string, faceID uuid.UUID) error {
	f.deletedFaces = append(f.deletedFaces, faceID)
	return nil
}

type fakeRecords struct {
	mu      sync.Mutex
	records map[uuid.UUID]*models.IdentityRecord
	putErr  error
	// putCtxErr is the ctx.Err() observed by the last PutRecord call.
	putCtxErr error
	// getErrs is consumed one per Get call.
	getErrs []error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{records: make(map[uuid.UUID]*models.IdentityRecord)}
}

func (f *fakeRecords) PutRecord(ctx context.Context, rec *models.IdentityRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCtxErr = ctx.Err()
	if f.putErr != nil {
		return f.putErr
	}
	if _, ok := f.records[rec.FaceID]; ok {
		return faceerr.Newf(faceerr.Conflict, "record for face %s already exists", rec.FaceID)
	}
	f.records[rec.FaceID] = rec
	return nil
}

func (f *fakeRecords) GetRecord(_ context.Context, faceID uuid.UUID) (*models.IdentityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.getErrs) > 0 {
		err := f.getErrs[0]
		f.getErrs = f.getErrs[1:]
		return nil, err
	}
	rec, ok := f.records[faceID]
	if !ok {
		return nil, faceerr.Newf(faceerr.NotFound, "no record for face %s", faceID)
	}
	return rec, nil
}

func (f *fakeRecords) ExistingFaceIDs(_ context.Context, faceIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uuid.UUID]bool)
	for _, id := range faceIDs {
		if _, ok := f.records[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

type sentMessage struct {
	address string
	message string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	errs []error // consumed one per Send call
}

func (f *fakeNotifier) Send(_ context.Context, address, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	f.sent = append(f.sent, sentMessage{address: address, message: message})
	return nil
}

type fakePublisher struct {
	events []*models.MatchEvent
}

func (f *fakePublisher) PublishMatchEvent(_ context.Context, event *models.MatchEvent) error {
	f.events = append(f.events, event)
	return nil
}

func descriptor(collectionID string) models.FaceDescriptor {
	return models.FaceDescriptor{
		FaceID:       uuid.New(),
		CollectionID: collectionID,
		Confidence:   0.99,
	}
}
