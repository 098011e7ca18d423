package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facegate/internal/faceerr"
	"github.com/your-org/facegate/internal/models"
)

func TestDispatchAtMostOncePerScope(t *testing.T) {
	notifier := &fakeNotifier{}
	rec := &models.IdentityRecord{FaceID: uuid.New(), Name: "Ana", ContactNumber: "3001234567"}

	scope := NewDispatcher(notifier, testTemplate).Begin()
	first := scope.Notify(context.Background(), rec)
	second := scope.Notify(context.Background(), rec)

	assert.Equal(t, models.DispatchSent, first.Status)
	assert.Equal(t, models.DispatchSkipped, second.Status)
	assert.Len(t, notifier.sent, 1)
}

func TestDispatchFailedSendIsNotRetriedInScope(t *testing.T) {
	notifier := &fakeNotifier{errs: []error{faceerr.New(faceerr.Transient, "provider timeout")}}
	rec := &models.IdentityRecord{FaceID: uuid.New(), Name: "Ana", ContactNumber: "3001234567"}

	scope := NewDispatcher(notifier, testTemplate).Begin()
	first := scope.Notify(context.Background(), rec)
	second := scope.Notify(context.Background(), rec)

	assert.Equal(t, models.DispatchFailed, first.Status)
	assert.Equal(t, models.DispatchSkipped, second.Status, "a failed send still consumes the face's one attempt")
	assert.Empty(t, notifier.sent)
}

func TestDispatchFreshScopeMayResend(t *testing.T) {
	notifier := &fakeNotifier{}
	rec := &models.IdentityRecord{FaceID: uuid.New(), Name: "Ana", ContactNumber: "3001234567"}
	d := NewDispatcher(notifier, testTemplate)

	require.Equal(t, models.DispatchSent, d.Begin().Notify(context.Background(), rec).Status)
	require.Equal(t, models.DispatchSent, d.Begin().Notify(context.Background(), rec).Status)
	assert.Len(t, notifier.sent, 2, "the guard is per match event, not global")
}

func TestDispatchSkipsWithoutContact(t *testing.T) {
	notifier := &fakeNotifier{}
	rec := &models.IdentityRecord{FaceID: uuid.New(), Name: "Ana"}

	result := NewDispatcher(notifier, testTemplate).Begin().Notify(context.Background(), rec)
	assert.Equal(t, models.DispatchSkipped, result.Status)
	assert.Empty(t, notifier.sent)
}

func TestDispatchHonorsCanceledContext(t *testing.T) {
	notifier := &fakeNotifier{}
	rec := &models.IdentityRecord{FaceID: uuid.New(), Name: "Ana", ContactNumber: "3001234567"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := NewDispatcher(notifier, testTemplate).Begin().Notify(ctx, rec)
	assert.Equal(t, models.DispatchSkipped, result.Status)
	assert.Empty(t, notifier.sent)
}
