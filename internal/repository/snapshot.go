package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medstore/medstore/pkg/model"
	"go.uber.org/zap"
)

// storageVersion is written with every snapshot so a future layout change
// can migrate old rows.
const storageVersion = 1

// SnapshotRepository persists the full record list as a single versioned
// JSON document, one row per snapshot key.
type SnapshotRepository struct {
	db     *pgxpool.Pool
	key    string
	logger *zap.Logger
}

// NewSnapshotRepository creates a new SnapshotRepository
func NewSnapshotRepository(db *pgxpool.Pool, key string, logger *zap.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:     db,
		key:    key,
		logger: logger,
	}
}

// EnsureSchema creates the snapshot table if it does not exist yet.
func (r *SnapshotRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS med_snapshots (
			key        TEXT PRIMARY KEY,
			version    INT NOT NULL,
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`

	if _, err := r.db.Exec(ctx, query); err != nil {
		r.logger.Error("failed to ensure snapshot schema", zap.Error(err))
		return fmt.Errorf("failed to ensure snapshot schema: %w", err)
	}

	return nil
}

// Load retrieves the stored snapshot. Returns (nil, nil) when no snapshot
// has been saved yet.
func (r *SnapshotRepository) Load(ctx context.Context) (*model.Snapshot, error) {
	query := `SELECT data FROM med_snapshots WHERE key = $1`

	var data []byte
	err := r.db.QueryRow(ctx, query, r.key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("failed to load snapshot",
			zap.Error(err),
			zap.String("key", r.key),
		)
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		r.logger.Error("failed to decode snapshot",
			zap.Error(err),
			zap.String("key", r.key),
		)
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return &snap, nil
}

// Save upserts the snapshot document under the repository key.
func (r *SnapshotRepository) Save(ctx context.Context, snap *model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	query := `
		INSERT INTO med_snapshots (key, version, data, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE
		SET version = EXCLUDED.version, data = EXCLUDED.data, updated_at = NOW()
	`

	if _, err := r.db.Exec(ctx, query, r.key, storageVersion, data); err != nil {
		r.logger.Error("failed to save snapshot",
			zap.Error(err),
			zap.String("key", r.key),
		)
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}
