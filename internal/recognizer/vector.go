package recognizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/facegate/internal/config"
	"github.com/your-org/facegate/internal/faceerr"
	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/observability"
)

// VectorGateway implements Gateway on top of an embedding extractor and a
// pgvector descriptor index. It owns its own tables (recognizer_collections,
// face_descriptors); the identity record store never touches them.
type VectorGateway struct {
	pool      *pgxpool.Pool
	extractor Extractor
	maxFaces  int
}

func NewVectorGateway(pool *pgxpool.Pool, extractor Extractor, cfg config.RecognizerConfig) *VectorGateway {
	if extractor != nil {
		extractor = SerializeExtractor(extractor)
	}
	return &VectorGateway{
		pool:      pool,
		extractor: extractor,
		maxFaces:  cfg.MaxFaces,
	}
}

// EnsureSchema creates the recognizer-side tables and the vector extension.
func (g *VectorGateway) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS recognizer_collections (
			collection_id TEXT PRIMARY KEY,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS face_descriptors (
			face_id       UUID PRIMARY KEY,
			collection_id TEXT NOT NULL REFERENCES recognizer_collections(collection_id) ON DELETE CASCADE,
			embedding     vector(%d) NOT NULL,
			bbox_x1       REAL NOT NULL,
			bbox_y1       REAL NOT NULL,
			bbox_x2       REAL NOT NULL,
			bbox_y2       REAL NOT NULL,
			confidence    REAL NOT NULL,
			image_id      TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, embeddingDim),
		`CREATE INDEX IF NOT EXISTS face_descriptors_collection_idx ON face_descriptors (collection_id)`,
	}
	for _, stmt := range stmts {
		if _, err := g.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure recognizer schema: %w", err)
		}
	}
	return nil
}

func (g *VectorGateway) CreateCollection(ctx context.Context, collectionID string) error {
	tag, err := g.pool.Exec(ctx,
		`INSERT INTO recognizer_collections (collection_id) VALUES ($1)
		 ON CONFLICT (collection_id) DO NOTHING`, collectionID)
	if err != nil {
		return wrapGateway("create collection", err)
	}
	if tag.RowsAffected() == 0 {
		return faceerr.Newf(faceerr.Conflict, "recognizer collection %q already exists", collectionID)
	}
	return nil
}

func (g *VectorGateway) DeleteCollection(ctx context.Context, collectionID string) error {
	tag, err := g.pool.Exec(ctx,
		`DELETE FROM recognizer_collections WHERE collection_id = $1`, collectionID)
	if err != nil {
		return wrapGateway("delete collection", err)
	}
	if tag.RowsAffected() == 0 {
		return faceerr.Newf(faceerr.NotFound, "recognizer collection %q not found", collectionID)
	}
	return nil
}

// Enroll detects and indexes every face in the image. Face IDs are assigned
// here: fresh per descriptor, never reused. All faces are indexed in one
// transaction: a failed enrollment leaves no descriptors behind.
func (g *VectorGateway) Enroll(ctx context.Context, collectionID string, image []byte, imageID string) ([]models.FaceDescriptor, error) {
	defer observe("enroll")()

	if err := g.requireCollection(ctx, collectionID); err != nil {
		return nil, err
	}

	faces, err := g.extractor.Extract(image)
	if err != nil {
		return nil, faceerr.Wrap(faceerr.Validation, "extract faces", err)
	}
	if len(faces) == 0 {
		return nil, nil
	}

	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return nil, wrapGateway("begin enroll", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	descriptors := make([]models.FaceDescriptor, 0, len(faces))
	for _, face := range faces {
		d := models.FaceDescriptor{
			FaceID:       uuid.New(),
			CollectionID: collectionID,
			BoundingBox:  face.BoundingBox,
			Confidence:   face.Confidence,
			ImageID:      imageID,
		}
		err := tx.QueryRow(ctx,
			`INSERT INTO face_descriptors (face_id, collection_id, embedding, bbox_x1, bbox_y1, bbox_x2, bbox_y2, confidence, image_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING created_at`,
			d.FaceID, d.CollectionID, pgvector.NewVector(face.Embedding),
			d.BoundingBox.X1, d.BoundingBox.Y1, d.BoundingBox.X2, d.BoundingBox.Y2,
			d.Confidence, d.ImageID,
		).Scan(&d.CreatedAt)
		if err != nil {
			return nil, wrapGateway("index face", err)
		}
		descriptors = append(descriptors, d)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapGateway("commit enroll", err)
	}
	return descriptors, nil
}

// Search embeds the most prominent face in the image and ranks collection
// descriptors by similarity, highest first.
func (g *VectorGateway) Search(ctx context.Context, collectionID string, image []byte, threshold float64) ([]Match, error) {
	defer observe("search")()

	if err := g.requireCollection(ctx, collectionID); err != nil {
		return nil, err
	}

	faces, err := g.extractor.Extract(image)
	if err != nil {
		return nil, faceerr.Wrap(faceerr.Validation, "extract probe face", err)
	}
	if len(faces) == 0 {
		return nil, nil
	}
	probe := pgvector.NewVector(faces[0].Embedding)

	// Cosine similarity calibrated onto [0,100]: distance 0 → 100,
	// orthogonal → 50, opposite → 0.
	rows, err := g.pool.Query(ctx,
		`SELECT face_id, collection_id, bbox_x1, bbox_y1, bbox_x2, bbox_y2, confidence, image_id, created_at,
		        (1 - (embedding <=> $1) / 2) * 100 AS similarity
		 FROM face_descriptors
		 WHERE collection_id = $2
		   AND (1 - (embedding <=> $1) / 2) * 100 >= $3
		 ORDER BY embedding <=> $1
		 LIMIT $4`,
		probe, collectionID, threshold, g.maxFaces)
	if err != nil {
		return nil, wrapGateway("search descriptors", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		d := &m.Descriptor
		if err := rows.Scan(&d.FaceID, &d.CollectionID,
			&d.BoundingBox.X1, &d.BoundingBox.Y1, &d.BoundingBox.X2, &d.BoundingBox.Y2,
			&d.Confidence, &d.ImageID, &d.CreatedAt, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Compare scores the source image's most prominent face against every face
// detected in the target image. No collection state is consulted.
func (g *VectorGateway) Compare(ctx context.Context, source, target []byte, threshold float64) (*CompareResult, error) {
	defer observe("compare")()

	srcFaces, err := g.extractor.Extract(source)
	if err != nil {
		return nil, faceerr.Wrap(faceerr.Validation, "extract source face", err)
	}
	if len(srcFaces) == 0 {
		return nil, faceerr.New(faceerr.Validation, "no face detected in source image")
	}
	src := srcFaces[0]

	tgtFaces, err := g.extractor.Extract(target)
	if err != nil {
		return nil, faceerr.Wrap(faceerr.Validation, "extract target faces", err)
	}

	result := &CompareResult{
		SourceFace:       src.BoundingBox,
		SourceConfidence: src.Confidence,
		Matches:          []CompareMatch{},
		Unmatched:        []models.BoundingBox{},
	}

	for _, tgt := range tgtFaces {
		similarity := SimilarityPercent(cosine(src.Embedding, tgt.Embedding))
		if similarity >= threshold {
			result.Matches = append(result.Matches, CompareMatch{
				BoundingBox: tgt.BoundingBox,
				Confidence:  tgt.Confidence,
				Similarity:  similarity,
			})
		} else {
			result.Unmatched = append(result.Unmatched, tgt.BoundingBox)
		}
	}

	return result, nil
}

func (g *VectorGateway) ListDescriptors(ctx context.Context, collectionID string) ([]models.FaceDescriptor, error) {
	if err := g.requireCollection(ctx, collectionID); err != nil {
		return nil, err
	}

	rows, err := g.pool.Query(ctx,
		`SELECT face_id, collection_id, bbox_x1, bbox_y1, bbox_x2, bbox_y2, confidence, image_id, created_at
		 FROM face_descriptors WHERE collection_id = $1 ORDER BY created_at LIMIT $2`,
		collectionID, g.maxFaces)
	if err != nil {
		return nil, wrapGateway("list descriptors", err)
	}
	defer rows.Close()

	var descriptors []models.FaceDescriptor
	for rows.Next() {
		var d models.FaceDescriptor
		if err := rows.Scan(&d.FaceID, &d.CollectionID,
			&d.BoundingBox.X1, &d.BoundingBox.Y1, &d.BoundingBox.X2, &d.BoundingBox.Y2,
			&d.Confidence, &d.ImageID, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan descriptor: %w", err)
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, rows.Err()
}

func (g *VectorGateway) DeleteDescriptor(ctx context.Context, collectionID string, faceID uuid.UUID) error {
	tag, err := g.pool.Exec(ctx,
		`DELETE FROM face_descriptors WHERE face_id = $1 AND collection_id = $2`,
		faceID, collectionID)
	if err != nil {
		return wrapGateway("delete descriptor", err)
	}
	if tag.RowsAffected() == 0 {
		return faceerr.Newf(faceerr.NotFound, "descriptor %s not found in %q", faceID, collectionID)
	}
	return nil
}

func (g *VectorGateway) requireCollection(ctx context.Context, collectionID string) error {
	var exists bool
	err := g.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM recognizer_collections WHERE collection_id = $1)`,
		collectionID,
	).Scan(&exists)
	if err != nil {
		return wrapGateway("check collection", err)
	}
	if !exists {
		return faceerr.Newf(faceerr.NotFound, "recognizer collection %q not found", collectionID)
	}
	return nil
}

// SimilarityPercent maps cosine similarity in [-1,1] onto the recognizer's
// [0,100] scale: identical embeddings score 100, orthogonal 50, opposite 0.
func SimilarityPercent(cos float64) float64 {
	p := (1 + cos) / 2 * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func wrapGateway(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return faceerr.Wrap(faceerr.Transient, op, err)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return faceerr.Wrap(faceerr.NotFound, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func observe(op string) func() {
	start := time.Now()
	return func() {
		observability.RecognizerDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
