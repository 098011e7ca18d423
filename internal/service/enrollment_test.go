package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facegate/internal/faceerr"
	"github.com/your-org/facegate/internal/models"
)

var testImage = []byte{0xff, 0xd8, 0xff, 0xe0}

func TestEnrollLinksPrimaryDescriptor(t *testing.T) {
	gw := &fakeGateway{enrollFaces: []models.FaceDescriptor{
		descriptor("lobby"),
		descriptor("lobby"),
	}}
	records := newFakeRecords()
	svc := NewEnrollmentService(newFakeRegistry("lobby"), gw, records, nil)

	meta := models.IdentityMetadata{
		Name:           "Ana Torres",
		ContactNumber:  "3001234567",
		DocumentNumber: "CC-1001",
		RequestType:    "visit",
	}
	rec, err := svc.Enroll(context.Background(), "lobby", testImage, meta)
	require.NoError(t, err)

	assert.Equal(t, gw.enrollFaces[0].FaceID, rec.FaceID, "record must link the most prominent face")
	assert.Equal(t, "Ana Torres", rec.Name)
	assert.Equal(t, "3001234567", rec.ContactNumber)

	stored, err := records.GetRecord(context.Background(), rec.FaceID)
	require.NoError(t, err)
	assert.Equal(t, rec.FaceID, stored.FaceID)
}

func TestEnrollNoFaceDetected(t *testing.T) {
	svc := NewEnrollmentService(newFakeRegistry("lobby"), &fakeGateway{}, newFakeRecords(), nil)

	_, err := svc.Enroll(context.Background(), "lobby", testImage, models.IdentityMetadata{Name: "Ana"})
	require.ErrorIs(t, err, ErrNoFaceDetected)
	assert.Equal(t, faceerr.Validation, faceerr.KindOf(err))
}

func TestEnrollUnknownCollection(t *testing.T) {
	svc := NewEnrollmentService(newFakeRegistry(), &fakeGateway{}, newFakeRecords(), nil)

	_, err := svc.Enroll(context.Background(), "ghost", testImage, models.IdentityMetadata{Name: "Ana"})
	assert.Equal(t, faceerr.NotFound, faceerr.KindOf(err))
}

func TestEnrollValidatesInput(t *testing.T) {
	svc := NewEnrollmentService(newFakeRegistry("lobby"), &fakeGateway{}, newFakeRecords(), nil)

	_, err := svc.Enroll(context.Background(), "lobby", nil, models.IdentityMetadata{Name: "Ana"})
	assert.Equal(t, faceerr.Validation, faceerr.KindOf(err))

	_, err = svc.Enroll(context.Background(), "lobby", testImage, models.IdentityMetadata{})
	assert.Equal(t, faceerr.Validation, faceerr.KindOf(err))
}

func TestEnrollGatewayFailureCreatesNoRecord(t *testing.T) {
	gw := &fakeGateway{enrollErr: faceerr.New(faceerr.Internal, "index write aborted")}
	records := newFakeRecords()
	svc := NewEnrollmentService(newFakeRegistry("lobby"), gw, records, nil)

	_, err := svc.Enroll(context.Background(), "lobby", testImage, models.IdentityMetadata{Name: "Ana"})
	require.Error(t, err)

	// A failed gateway enroll is all-or-nothing: no descriptor survived, so
	// there is no face id to recover and no record to link.
	var dangling *faceerr.DanglingDescriptor
	assert.False(t, errors.As(err, &dangling))
	assert.Empty(t, records.records)
}

func TestEnrollLinkSurvivesCallerCancellation(t *testing.T) {
	gw := &fakeGateway{enrollFaces: []models.FaceDescriptor{descriptor("lobby")}}
	records := newFakeRecords()
	svc := NewEnrollmentService(newFakeRegistry("lobby"), gw, records, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec, err := svc.Enroll(ctx, "lobby", testImage, models.IdentityMetadata{Name: "Ana"})
	require.NoError(t, err)
	require.NoError(t, records.putCtxErr, "record write must not inherit caller cancellation")

	stored, err := records.GetRecord(context.Background(), rec.FaceID)
	require.NoError(t, err)
	assert.Equal(t, rec.FaceID, stored.FaceID)
}

func TestEnrollLinkFailureExposesDanglingDescriptor(t *testing.T) {
	gw := &fakeGateway{enrollFaces: []models.FaceDescriptor{descriptor("lobby")}}
	records := newFakeRecords()
	records.putErr = faceerr.New(faceerr.Transient, "record store timeout")
	svc := NewEnrollmentService(newFakeRegistry("lobby"), gw, records, nil)

	_, err := svc.Enroll(context.Background(), "lobby", testImage, models.IdentityMetadata{Name: "Ana"})
	require.Error(t, err)

	var dangling *faceerr.DanglingDescriptor
	require.True(t, errors.As(err, &dangling), "link failure must carry the face id")
	assert.Equal(t, gw.enrollFaces[0].FaceID, dangling.FaceID)
	assert.Equal(t, "lobby", dangling.CollectionID)
	assert.Equal(t, faceerr.Integrity, faceerr.KindOf(err))
}

func TestRetryLinkRecoversDanglingDescriptor(t *testing.T) {
	d := descriptor("lobby")
	gw := &fakeGateway{descriptors: []models.FaceDescriptor{d}}
	records := newFakeRecords()
	svc := NewEnrollmentService(newFakeRegistry("lobby"), gw, records, nil)

	rec, err := svc.RetryLink(context.Background(), "lobby", d.FaceID, models.IdentityMetadata{Name: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, d.FaceID, rec.FaceID)

	// A second retry finds the record already written and returns it.
	again, err := svc.RetryLink(context.Background(), "lobby", d.FaceID, models.IdentityMetadata{Name: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, rec.FaceID, again.FaceID)
}

func TestRetryLinkUnknownDescriptor(t *testing.T) {
	svc := NewEnrollmentService(newFakeRegistry("lobby"), &fakeGateway{}, newFakeRecords(), nil)

	_, err := svc.RetryLink(context.Background(), "lobby", descriptor("lobby").FaceID, models.IdentityMetadata{Name: "Ana"})
	assert.Equal(t, faceerr.NotFound, faceerr.KindOf(err))
}

func TestAbandonDescriptor(t *testing.T) {
	d := descriptor("lobby")
	gw := &fakeGateway{descriptors: []models.FaceDescriptor{d}}
	svc := NewEnrollmentService(newFakeRegistry("lobby"), gw, newFakeRecords(), nil)

	require.NoError(t, svc.AbandonDescriptor(context.Background(), "lobby", d.FaceID))
	require.Len(t, gw.deletedFaces, 1)
	assert.Equal(t, d.FaceID, gw.deletedFaces[0])
}

func TestAbandonDescriptorRefusedWhenLinked(t *testing.T) {
	d := descriptor("lobby")
	gw := &fakeGateway{descriptors: []models.FaceDescriptor{d}}
	records := newFakeRecords()
	records.records[d.FaceID] = &models.IdentityRecord{FaceID: d.FaceID, Name: "Ana"}
	svc := NewEnrollmentService(newFakeRegistry("lobby"), gw, records, nil)

	err := svc.AbandonDescriptor(context.Background(), "lobby", d.FaceID)
	assert.Equal(t, faceerr.Conflict, faceerr.KindOf(err))
	assert.Empty(t, gw.deletedFaces)
}
