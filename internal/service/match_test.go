package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facegate/internal/faceerr"
	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/recognizer"
)

const testTemplate = "Bienvenido {name}, su requerimiento será atendido en breve."

func newMatchService(gw *fakeGateway, records *fakeRecords, notifier *fakeNotifier, events EventPublisher) *MatchService {
	dispatcher := NewDispatcher(notifier, testTemplate)
	return NewMatchService(newFakeRegistry("lobby"), gw, records, dispatcher, events, 90)
}

func linkedRecord(records *fakeRecords, d models.FaceDescriptor, name, contact string) {
	records.records[d.FaceID] = &models.IdentityRecord{
		FaceID:        d.FaceID,
		Name:          name,
		ContactNumber: contact,
	}
}

func TestMatchAndNotifyResolvesBestHit(t *testing.T) {
	best := descriptor("lobby")
	worse := descriptor("lobby")
	gw := &fakeGateway{searchHits: []recognizer.Match{
		{Descriptor: worse, Similarity: 91.2},
		{Descriptor: best, Similarity: 97.5},
	}}
	records := newFakeRecords()
	linkedRecord(records, best, "Ana Torres", "3001234567")
	notifier := &fakeNotifier{}
	svc := newMatchService(gw, records, notifier, nil)

	outcome, err := svc.MatchAndNotify(context.Background(), "lobby", testImage, -1)
	require.NoError(t, err)

	assert.True(t, outcome.Matched)
	assert.Equal(t, best.FaceID, outcome.FaceID, "best similarity wins regardless of recognizer order")
	assert.InDelta(t, 97.5, outcome.Similarity, 0.001)
	require.NotNil(t, outcome.Record)
	assert.Equal(t, "Ana Torres", outcome.Record.Name)

	assert.Equal(t, models.DispatchSent, outcome.Notification.Status)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "3001234567", notifier.sent[0].address)
	assert.Equal(t, "Bienvenido Ana Torres, su requerimiento será atendido en breve.", notifier.sent[0].message)
}

func TestMatchAndNotifyDuplicateHitsSendOnce(t *testing.T) {
	d := descriptor("lobby")
	gw := &fakeGateway{searchHits: []recognizer.Match{
		{Descriptor: d, Similarity: 97.5},
		{Descriptor: d, Similarity: 95.0},
	}}
	records := newFakeRecords()
	linkedRecord(records, d, "Ana", "3001234567")
	notifier := &fakeNotifier{}
	svc := newMatchService(gw, records, notifier, nil)

	outcome, err := svc.MatchAndNotify(context.Background(), "lobby", testImage, -1)
	require.NoError(t, err)
	assert.True(t, outcome.NotificationSent())
	assert.Len(t, notifier.sent, 1, "same face surfacing twice must notify once")
}

func TestMatchAndNotifyNoMatch(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := newMatchService(&fakeGateway{}, newFakeRecords(), notifier, nil)

	outcome, err := svc.MatchAndNotify(context.Background(), "lobby", testImage, -1)
	require.NoError(t, err)

	assert.False(t, outcome.Matched)
	assert.Equal(t, models.DispatchSkipped, outcome.Notification.Status)
	assert.Empty(t, notifier.sent)
}

func TestMatchAndNotifyOrphanedMatch(t *testing.T) {
	d := descriptor("lobby")
	gw := &fakeGateway{searchHits: []recognizer.Match{{Descriptor: d, Similarity: 96.0}}}
	notifier := &fakeNotifier{}
	svc := newMatchService(gw, newFakeRecords(), notifier, nil)

	outcome, err := svc.MatchAndNotify(context.Background(), "lobby", testImage, -1)
	require.NoError(t, err, "an orphaned match is still a successful match")

	assert.True(t, outcome.Matched)
	assert.True(t, outcome.Orphaned)
	assert.Nil(t, outcome.Record)
	assert.Equal(t, models.DispatchSkipped, outcome.Notification.Status)
	assert.Empty(t, notifier.sent)
}

func TestMatchAndNotifyNotificationFailureDoesNotFailMatch(t *testing.T) {
	d := descriptor("lobby")
	gw := &fakeGateway{searchHits: []recognizer.Match{{Descriptor: d, Similarity: 96.0}}}
	records := newFakeRecords()
	linkedRecord(records, d, "Ana", "3001234567")
	notifier := &fakeNotifier{errs: []error{faceerr.New(faceerr.Transient, "sms provider timeout")}}
	svc := newMatchService(gw, records, notifier, nil)

	outcome, err := svc.MatchAndNotify(context.Background(), "lobby", testImage, -1)
	require.NoError(t, err)

	assert.True(t, outcome.Matched)
	assert.Equal(t, models.DispatchFailed, outcome.Notification.Status)
	assert.False(t, outcome.NotificationSent())
}

func TestMatchAndNotifySkipsRecordWithoutContact(t *testing.T) {
	d := descriptor("lobby")
	gw := &fakeGateway{searchHits: []recognizer.Match{{Descriptor: d, Similarity: 96.0}}}
	records := newFakeRecords()
	linkedRecord(records, d, "Ana", "")
	notifier := &fakeNotifier{}
	svc := newMatchService(gw, records, notifier, nil)

	outcome, err := svc.MatchAndNotify(context.Background(), "lobby", testImage, -1)
	require.NoError(t, err)

	assert.Equal(t, models.DispatchSkipped, outcome.Notification.Status)
	assert.Empty(t, notifier.sent)
}

func TestMatchAndNotifyRetriesTransientSearch(t *testing.T) {
	d := descriptor("lobby")
	gw := &fakeGateway{
		searchErrs: []error{faceerr.New(faceerr.Transient, "recognizer timeout")},
		searchHits: []recognizer.Match{{Descriptor: d, Similarity: 96.0}},
	}
	records := newFakeRecords()
	linkedRecord(records, d, "Ana", "3001234567")
	svc := newMatchService(gw, records, &fakeNotifier{}, nil)

	outcome, err := svc.MatchAndNotify(context.Background(), "lobby", testImage, -1)
	require.NoError(t, err)
	assert.True(t, outcome.Matched)
	assert.Equal(t, 2, gw.searchN, "transient search failure is retried")
}

func TestMatchAndNotifyDoesNotRetryValidationErrors(t *testing.T) {
	gw := &fakeGateway{
		searchErrs: []error{
			faceerr.New(faceerr.Validation, "undecodable image"),
			faceerr.New(faceerr.Validation, "undecodable image"),
		},
	}
	svc := newMatchService(gw, newFakeRecords(), &fakeNotifier{}, nil)

	_, err := svc.MatchAndNotify(context.Background(), "lobby", testImage, -1)
	require.Error(t, err)
	assert.Equal(t, 1, gw.searchN, "permanent failures abort immediately")
}

func TestMatchAndNotifyUnknownCollection(t *testing.T) {
	svc := newMatchService(&fakeGateway{}, newFakeRecords(), &fakeNotifier{}, nil)

	_, err := svc.MatchAndNotify(context.Background(), "ghost", testImage, -1)
	assert.Equal(t, faceerr.NotFound, faceerr.KindOf(err))
}

func TestMatchAndNotifyPublishesEvent(t *testing.T) {
	d := descriptor("lobby")
	gw := &fakeGateway{searchHits: []recognizer.Match{{Descriptor: d, Similarity: 96.0}}}
	records := newFakeRecords()
	linkedRecord(records, d, "Ana", "3001234567")
	events := &fakePublisher{}
	svc := newMatchService(gw, records, &fakeNotifier{}, events)

	_, err := svc.MatchAndNotify(context.Background(), "lobby", testImage, -1)
	require.NoError(t, err)

	require.Len(t, events.events, 1)
	ev := events.events[0]
	assert.Equal(t, "lobby", ev.CollectionID)
	assert.Equal(t, d.FaceID, ev.FaceID)
	assert.Equal(t, "Ana", ev.Name)
	assert.True(t, ev.NotificationSent)
}

func TestMatchAndNotifyThresholdZeroIsHonored(t *testing.T) {
	gw := &fakeGateway{}
	svc := newMatchService(gw, newFakeRecords(), &fakeNotifier{}, nil)

	_, err := svc.MatchAndNotify(context.Background(), "lobby", testImage, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, gw.lastThreshold, 0.001, "explicit zero is a real floor, not the default")

	_, err = svc.MatchAndNotify(context.Background(), "lobby", testImage, -1)
	require.NoError(t, err)
	assert.InDelta(t, 90.0, gw.lastThreshold, 0.001, "negative selects the configured default")
}

func TestRankHits(t *testing.T) {
	a := descriptor("lobby")
	b := descriptor("lobby")
	hits := rankHits([]recognizer.Match{
		{Descriptor: a, Similarity: 91.0},
		{Descriptor: b, Similarity: 95.0},
		{Descriptor: a, Similarity: 93.0},
	})

	require.Len(t, hits, 2)
	assert.Equal(t, b.FaceID, hits[0].Descriptor.FaceID)
	assert.Equal(t, a.FaceID, hits[1].Descriptor.FaceID)
	assert.InDelta(t, 93.0, hits[1].Similarity, 0.001, "duplicate keeps its best score")
}
