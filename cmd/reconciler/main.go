// The reconciler sweeps the recognizer index and the record store for
// cross-store drift: descriptors with no identity record (dangling, from
// enrollments that failed after indexing) and records whose descriptor is
// gone (orphaned). It reports both and can optionally delete dangling
// descriptors.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facegate/internal/config"
	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/observability"
	"github.com/your-org/facegate/internal/recognizer"
	"github.com/your-org/facegate/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single sweep and exit")
	interval := flag.Duration("interval", 15*time.Minute, "sweep interval")
	deleteDangling := flag.Bool("delete-dangling", false, "delete descriptors that have no identity record")
	grace := flag.Duration("grace", time.Minute, "minimum descriptor age before a dangling descriptor may be deleted")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting facegate reconciler",
		"interval", interval.String(),
		"delete_dangling", *deleteDangling,
		"grace", grace.String())

	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// The reconciler only lists and deletes; it never runs the detect/embed
	// pipeline, so no extractor is loaded.
	gateway := recognizer.NewVectorGateway(db.Pool(), nil, cfg.Recognizer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("shutting down reconciler...")
		cancel()
	}()

	r := &reconciler{db: db, gateway: gateway, deleteDangling: *deleteDangling, grace: *grace}

	if *once {
		if err := r.sweep(ctx); err != nil {
			slog.Error("sweep", "error", err)
			os.Exit(1)
		}
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		if err := r.sweep(ctx); err != nil && ctx.Err() == nil {
			slog.Error("sweep", "error", err)
		}
		select {
		case <-ctx.Done():
			slog.Info("reconciler stopped")
			return
		case <-ticker.C:
		}
	}
}

// recordSource is the slice of the record store the sweep reads.
type recordSource interface {
	ListCollections(ctx context.Context) ([]models.Collection, error)
	ExistingFaceIDs(ctx context.Context, faceIDs []uuid.UUID) (map[uuid.UUID]bool, error)
	ListRecords(ctx context.Context, limit, offset int) ([]models.IdentityRecord, error)
}

// descriptorIndex is the slice of the recognizer the sweep reads and prunes.
type descriptorIndex interface {
	ListDescriptors(ctx context.Context, collectionID string) ([]models.FaceDescriptor, error)
	DeleteDescriptor(ctx context.Context, collectionID string, faceID uuid.UUID) error
}

type reconciler struct {
	db             recordSource
	gateway        descriptorIndex
	deleteDangling bool
	// grace shields enrollments whose record link is still in flight: a
	// descriptor younger than this is never deleted, only reported.
	grace time.Duration
}

// sweep walks every active collection, reporting dangling descriptors and
// orphaned records.
func (r *reconciler) sweep(ctx context.Context) error {
	start := time.Now()

	collections, err := r.db.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}

	indexed := make(map[uuid.UUID]bool)
	var dangling, deleted int

	for _, col := range collections {
		descriptors, err := r.gateway.ListDescriptors(ctx, col.ID)
		if err != nil {
			slog.Error("list descriptors", "collection_id", col.ID, "error", err)
			continue
		}

		faceIDs := make([]uuid.UUID, len(descriptors))
		for i, d := range descriptors {
			faceIDs[i] = d.FaceID
			indexed[d.FaceID] = true
		}

		linked, err := r.db.ExistingFaceIDs(ctx, faceIDs)
		if err != nil {
			slog.Error("check linked records", "collection_id", col.ID, "error", err)
			continue
		}

		for _, d := range descriptors {
			if linked[d.FaceID] {
				continue
			}
			dangling++
			observability.IntegrityErrors.WithLabelValues("dangling_descriptor").Inc()
			slog.Warn("dangling descriptor", "collection_id", col.ID, "face_id", d.FaceID)

			if !r.deleteDangling {
				continue
			}
			// An enrollment that just indexed this face may still be writing
			// its record; within the grace window report only.
			if time.Since(d.CreatedAt) < r.grace {
				slog.Info("skipping dangling descriptor inside grace window",
					"collection_id", col.ID, "face_id", d.FaceID, "age", time.Since(d.CreatedAt).String())
				continue
			}
			if err := r.gateway.DeleteDescriptor(ctx, col.ID, d.FaceID); err != nil {
				slog.Error("delete dangling descriptor", "collection_id", col.ID, "face_id", d.FaceID, "error", err)
				continue
			}
			deleted++
		}
	}

	orphaned, err := r.countOrphanedRecords(ctx, indexed)
	if err != nil {
		return err
	}

	slog.Info("sweep complete",
		"collections", len(collections),
		"dangling_descriptors", dangling,
		"deleted_descriptors", deleted,
		"orphaned_records", orphaned,
		"duration", time.Since(start).String())
	return nil
}

// countOrphanedRecords pages through the record store looking for face IDs
// that no collection's index knows. Orphaned records are reported, never
// deleted: the record is the durable side.
func (r *reconciler) countOrphanedRecords(ctx context.Context, indexed map[uuid.UUID]bool) (int, error) {
	const pageSize = 500

	var orphaned int
	for offset := 0; ; offset += pageSize {
		records, err := r.db.ListRecords(ctx, pageSize, offset)
		if err != nil {
			return orphaned, fmt.Errorf("list records: %w", err)
		}

		for _, rec := range records {
			if !indexed[rec.FaceID] {
				orphaned++
				observability.IntegrityErrors.WithLabelValues("orphaned_record").Inc()
				slog.Warn("orphaned record", "face_id", rec.FaceID, "name", rec.Name)
			}
		}

		if len(records) < pageSize {
			return orphaned, nil
		}
	}
}
