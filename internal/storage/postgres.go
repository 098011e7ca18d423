package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/facegate/internal/config"
	"github.com/your-org/facegate/internal/faceerr"
	"github.com/your-org/facegate/internal/models"
)

const uniqueViolation = "23505"

// PostgresStore owns the collection registry and the identity record table.
// Identity records are write-once: inserted by the enrollment orchestrator,
// never updated.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Pool exposes the underlying connection pool so the recognizer can keep its
// descriptor index in the same database while remaining a separate subsystem.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// EnsureSchema creates the registry and record tables if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS collections (
			collection_id TEXT PRIMARY KEY,
			state         TEXT NOT NULL DEFAULT 'active',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			deleted_at    TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS identity_records (
			face_id         UUID PRIMARY KEY,
			name            TEXT NOT NULL,
			contact_number  TEXT NOT NULL DEFAULT '',
			document_number TEXT NOT NULL DEFAULT '',
			request_type    TEXT NOT NULL DEFAULT '',
			image_id        TEXT NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// --- Collection registry ---

// CreateCollection registers a new active collection. A previously deleted id
// may be re-created; an active id yields a conflict.
func (s *PostgresStore) CreateCollection(ctx context.Context, id string) (*models.Collection, error) {
	c := &models.Collection{ID: id, State: models.CollectionActive}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO collections (collection_id, state)
		 VALUES ($1, 'active')
		 ON CONFLICT (collection_id) DO UPDATE
		   SET state = 'active', created_at = now(), deleted_at = NULL
		   WHERE collections.state = 'deleted'
		 RETURNING created_at`,
		id,
	).Scan(&c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
			return nil, faceerr.Newf(faceerr.Conflict, "collection %q already exists", id)
		}
		return nil, wrapDB("create collection", err)
	}
	return c, nil
}

// DeleteCollection marks an active collection deleted. Dependency checks are
// the orchestrator's job; this is pure registry state.
func (s *PostgresStore) DeleteCollection(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE collections SET state = 'deleted', deleted_at = now()
		 WHERE collection_id = $1 AND state = 'active'`, id)
	if err != nil {
		return wrapDB("delete collection", err)
	}
	if tag.RowsAffected() == 0 {
		return faceerr.Newf(faceerr.NotFound, "collection %q not found", id)
	}
	return nil
}

func (s *PostgresStore) CollectionExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM collections WHERE collection_id = $1 AND state = 'active')`,
		id,
	).Scan(&exists)
	if err != nil {
		return false, wrapDB("collection exists", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListCollections(ctx context.Context) ([]models.Collection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT collection_id, state, created_at, deleted_at
		 FROM collections WHERE state = 'active' ORDER BY created_at DESC`)
	if err != nil {
		return nil, wrapDB("list collections", err)
	}
	defer rows.Close()

	var collections []models.Collection
	for rows.Next() {
		var c models.Collection
		if err := rows.Scan(&c.ID, &c.State, &c.CreatedAt, &c.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

// --- Identity records ---

// PutRecord inserts a write-once identity record. A duplicate face ID is a
// conflict, never an overwrite.
func (s *PostgresStore) PutRecord(ctx context.Context, rec *models.IdentityRecord) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO identity_records (face_id, name, contact_number, document_number, request_type, image_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (face_id) DO NOTHING`,
		rec.FaceID, rec.Name, rec.ContactNumber, rec.DocumentNumber, rec.RequestType, rec.ImageID, rec.CreatedAt)
	if err != nil {
		return wrapDB("put record", err)
	}
	if tag.RowsAffected() == 0 {
		return faceerr.Newf(faceerr.Conflict, "record for face %s already exists", rec.FaceID)
	}
	return nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, faceID uuid.UUID) (*models.IdentityRecord, error) {
	rec := &models.IdentityRecord{}
	err := s.pool.QueryRow(ctx,
		`SELECT face_id, name, contact_number, document_number, request_type, image_id, created_at
		 FROM identity_records WHERE face_id = $1`, faceID,
	).Scan(&rec.FaceID, &rec.Name, &rec.ContactNumber, &rec.DocumentNumber,
		&rec.RequestType, &rec.ImageID, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, faceerr.Newf(faceerr.NotFound, "no record for face %s", faceID)
		}
		return nil, wrapDB("get record", err)
	}
	return rec, nil
}

// ExistingFaceIDs reports which of the given face IDs have a linked record.
// Used for the collection-delete dependency check and by the reconciler.
func (s *PostgresStore) ExistingFaceIDs(ctx context.Context, faceIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	present := make(map[uuid.UUID]bool, len(faceIDs))
	if len(faceIDs) == 0 {
		return present, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT face_id FROM identity_records WHERE face_id = ANY($1)`, faceIDs)
	if err != nil {
		return nil, wrapDB("existing face ids", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan face id: %w", err)
		}
		present[id] = true
	}
	return present, rows.Err()
}

func (s *PostgresStore) ListRecords(ctx context.Context, limit, offset int) ([]models.IdentityRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT face_id, name, contact_number, document_number, request_type, image_id, created_at
		 FROM identity_records ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, wrapDB("list records", err)
	}
	defer rows.Close()

	var records []models.IdentityRecord
	for rows.Next() {
		var rec models.IdentityRecord
		if err := rows.Scan(&rec.FaceID, &rec.Name, &rec.ContactNumber, &rec.DocumentNumber,
			&rec.RequestType, &rec.ImageID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// wrapDB classifies a database error: deadline and cancellation failures are
// transient (retryable at the orchestrator boundary for idempotent reads),
// everything else stays internal.
func wrapDB(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return faceerr.Wrap(faceerr.Transient, op, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return faceerr.Wrap(faceerr.Conflict, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
