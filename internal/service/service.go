// Package service holds the orchestration core: collection lifecycle,
// enrollment, match-and-resolve, and notification dispatch. Collaborators are
// injected as narrow interfaces so every flow is testable against fakes.
package service

import (
	"context"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/your-org/facegate/internal/faceerr"
	"github.com/your-org/facegate/internal/models"
)

// CollectionRegistry tracks known collection namespaces and their lifecycle
// state. Backed by Postgres in production.
type CollectionRegistry interface {
	CreateCollection(ctx context.Context, id string) (*models.Collection, error)
	DeleteCollection(ctx context.Context, id string) error
	CollectionExists(ctx context.Context, id string) (bool, error)
	ListCollections(ctx context.Context) ([]models.Collection, error)
}

// RecordStore is the durable identity record table keyed by face ID.
// Records are write-once.
type RecordStore interface {
	PutRecord(ctx context.Context, rec *models.IdentityRecord) error
	GetRecord(ctx context.Context, faceID uuid.UUID) (*models.IdentityRecord, error)
	ExistingFaceIDs(ctx context.Context, faceIDs []uuid.UUID) (map[uuid.UUID]bool, error)
}

// ImageArchiver stores uploaded images so descriptors can reference their
// source. Archival is best effort.
type ImageArchiver interface {
	StoreImage(ctx context.Context, folder string, data []byte, contentType string) (string, error)
}

// EventPublisher fans match events out to downstream consumers.
type EventPublisher interface {
	PublishMatchEvent(ctx context.Context, event *models.MatchEvent) error
}

const retryAttempts = 3

// retryTransient retries op with exponential backoff, but only for transient
// collaborator failures and only for idempotent operations (search, get).
// Anything else aborts immediately.
func retryTransient[T any](ctx context.Context, op func() (T, error)) (T, error) {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retryAttempts), ctx)
	return backoff.RetryWithData(func() (T, error) {
		v, err := op()
		if err != nil && !faceerr.Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, b)
}
