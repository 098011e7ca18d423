package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facegate/internal/faceerr"
	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/observability"
	"github.com/your-org/facegate/internal/recognizer"
)

// MatchService runs match-and-resolve: search the collection, resolve the best
// hit to an identity record, dispatch at most one notification, and fan the
// event out.
type MatchService struct {
	registry         CollectionRegistry
	rec              recognizer.Gateway
	records          RecordStore
	dispatcher       *Dispatcher
	events           EventPublisher // optional
	defaultThreshold float64
}

func NewMatchService(registry CollectionRegistry, rec recognizer.Gateway, records RecordStore, dispatcher *Dispatcher, events EventPublisher, defaultThreshold float64) *MatchService {
	return &MatchService{
		registry:         registry,
		rec:              rec,
		records:          records,
		dispatcher:       dispatcher,
		events:           events,
		defaultThreshold: defaultThreshold,
	}
}

// MatchAndNotify matches the probe image against the collection and, when the
// best hit resolves to a contactable record, sends the welcome notification.
//
// A notification failure never fails the match: it is reported inside the
// outcome. A matched descriptor with no record is the orphaned case, also a
// successful match. A negative threshold selects the configured default;
// zero is a valid explicit floor.
func (s *MatchService) MatchAndNotify(ctx context.Context, collectionID string, image []byte, threshold float64) (*models.MatchOutcome, error) {
	if len(image) == 0 {
		return nil, faceerr.New(faceerr.Validation, "empty image")
	}

	exists, err := s.registry.CollectionExists(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return nil, faceerr.Newf(faceerr.NotFound, "collection %q not found", collectionID)
	}

	if threshold < 0 {
		threshold = s.defaultThreshold
	}

	hits, err := retryTransient(ctx, func() ([]recognizer.Match, error) {
		return s.rec.Search(ctx, collectionID, image, threshold)
	})
	if err != nil {
		return nil, fmt.Errorf("search collection: %w", err)
	}

	hits = rankHits(hits)
	if len(hits) == 0 {
		observability.Matches.WithLabelValues("no_match").Inc()
		return &models.MatchOutcome{
			Matched:      false,
			Notification: models.DispatchResult{Status: models.DispatchSkipped, Reason: "no match above threshold"},
		}, nil
	}

	top := hits[0]
	outcome := &models.MatchOutcome{
		Matched:    true,
		FaceID:     top.Descriptor.FaceID,
		Similarity: top.Similarity,
	}

	record, err := retryTransient(ctx, func() (*models.IdentityRecord, error) {
		return s.records.GetRecord(ctx, top.Descriptor.FaceID)
	})
	switch {
	case faceerr.IsKind(err, faceerr.NotFound):
		// The recognizer knows a face the record store has never heard of.
		outcome.Orphaned = true
		outcome.Notification = models.DispatchResult{
			Status: models.DispatchSkipped,
			Reason: "matched descriptor has no identity record",
		}
		observability.Matches.WithLabelValues("orphaned").Inc()
		observability.IntegrityErrors.WithLabelValues("orphaned_match").Inc()
		slog.Error("orphaned match",
			"collection_id", collectionID,
			"face_id", top.Descriptor.FaceID,
			"similarity", top.Similarity)
	case err != nil:
		return nil, fmt.Errorf("resolve identity record: %w", err)
	default:
		outcome.Record = record
		// One dispatch scope per match event. Duplicate hits were already
		// collapsed by rankHits; the scope enforces at-most-once regardless.
		outcome.Notification = s.dispatcher.Begin().Notify(ctx, record)
		observability.Matches.WithLabelValues("matched").Inc()
		slog.Info("match resolved",
			"collection_id", collectionID,
			"face_id", top.Descriptor.FaceID,
			"similarity", top.Similarity,
			"notification", outcome.Notification.Status)
	}

	s.publish(collectionID, outcome)
	return outcome, nil
}

// Compare scores the most prominent face in source against every face in
// target without touching any collection. A negative threshold selects the
// configured default.
func (s *MatchService) Compare(ctx context.Context, source, target []byte, threshold float64) (*recognizer.CompareResult, error) {
	if len(source) == 0 || len(target) == 0 {
		return nil, faceerr.New(faceerr.Validation, "source and target images are required")
	}
	if threshold < 0 {
		threshold = s.defaultThreshold
	}
	return s.rec.Compare(ctx, source, target, threshold)
}

// publish fans the outcome out on a detached context. Best effort: an event
// bus outage never fails a match.
func (s *MatchService) publish(collectionID string, outcome *models.MatchOutcome) {
	if s.events == nil || !outcome.Matched {
		return
	}

	event := &models.MatchEvent{
		CollectionID:     collectionID,
		FaceID:           outcome.FaceID,
		Similarity:       outcome.Similarity,
		Orphaned:         outcome.Orphaned,
		NotificationSent: outcome.NotificationSent(),
		Timestamp:        time.Now().UTC(),
	}
	if outcome.Record != nil {
		event.Name = outcome.Record.Name
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.events.PublishMatchEvent(ctx, event); err != nil {
		slog.Warn("publish match event", "collection_id", collectionID, "error", err)
	}
}

// rankHits re-sorts defensively by similarity descending and drops duplicate
// face IDs, keeping each face's best score.
func rankHits(hits []recognizer.Match) []recognizer.Match {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})

	seen := make(map[uuid.UUID]struct{}, len(hits))
	out := hits[:0]
	for _, h := range hits {
		if _, dup := seen[h.Descriptor.FaceID]; dup {
			continue
		}
		seen[h.Descriptor.FaceID] = struct{}{}
		out = append(out, h)
	}
	return out
}
