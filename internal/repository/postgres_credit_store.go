package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"CreditIntel/internal/domain/models"
	domrepo "CreditIntel/internal/domain/repository"
	"CreditIntel/pkg/postgres"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS credit_settings (
		id          SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		weights     JSONB NOT NULL,
		learning    JSONB NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL,
		updated_by  TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS credit_snapshots (
		client_id      BIGINT PRIMARY KEY,
		id             UUID NOT NULL,
		result         JSONB NOT NULL,
		weights        JSONB NOT NULL,
		weights_source TEXT NOT NULL,
		health_score   DOUBLE PRECISION NOT NULL,
		credit_limit   NUMERIC(14,2) NOT NULL,
		mode           TEXT NOT NULL,
		version        BIGINT NOT NULL DEFAULT 1,
		calculated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS credit_snapshot_history (
		id             UUID PRIMARY KEY,
		client_id      BIGINT NOT NULL,
		result         JSONB NOT NULL,
		weights        JSONB NOT NULL,
		weights_source TEXT NOT NULL,
		health_score   DOUBLE PRECISION NOT NULL,
		credit_limit   NUMERIC(14,2) NOT NULL,
		mode           TEXT NOT NULL,
		version        BIGINT NOT NULL,
		calculated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_credit_history_client ON credit_snapshot_history (client_id, calculated_at DESC)`,
}

// PostgresCreditStore keeps settings, current snapshots and history in PostgreSQL.
type PostgresCreditStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCreditStore creates the tables when missing.
func NewPostgresCreditStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresCreditStore, error) {
	if err := postgres.Migrate(ctx, pool, postgresSchema); err != nil {
		return nil, err
	}
	return &PostgresCreditStore{pool: pool}, nil
}

func (s *PostgresCreditStore) GetSettings(ctx context.Context) (models.CreditSettings, error) {
	var (
		weights, learning []byte
		updatedAt         time.Time
		updatedBy         string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT weights, learning, updated_at, updated_by FROM credit_settings WHERE id = 1
	`).Scan(&weights, &learning, &updatedAt, &updatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.CreditSettings{}, models.ErrSettingsNotFound
		}
		return models.CreditSettings{}, fmt.Errorf("query settings: %w", err)
	}
	return decodeSettings(weights, learning, updatedAt, updatedBy)
}

func (s *PostgresCreditStore) SaveSettings(ctx context.Context, set models.CreditSettings) error {
	weights, learning, err := encodeSettings(set)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO credit_settings (id, weights, learning, updated_at, updated_by)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			weights    = EXCLUDED.weights,
			learning   = EXCLUDED.learning,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by
	`, weights, learning, set.UpdatedAt.UTC(), set.UpdatedBy)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// SaveSnapshot replaces the client's current snapshot unless the stored one is
// newer. A stale write leaves the row untouched and returns the stored snapshot.
func (s *PostgresCreditStore) SaveSnapshot(ctx context.Context, snap models.CreditSnapshot) (models.CreditSnapshot, error) {
	row, err := encodeSnapshot(snap)
	if err != nil {
		return models.CreditSnapshot{}, err
	}

	var version int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO credit_snapshots (
			client_id, id, result, weights, weights_source,
			health_score, credit_limit, mode, version, calculated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,1,$9)
		ON CONFLICT (client_id) DO UPDATE SET
			id             = EXCLUDED.id,
			result         = EXCLUDED.result,
			weights        = EXCLUDED.weights,
			weights_source = EXCLUDED.weights_source,
			health_score   = EXCLUDED.health_score,
			credit_limit   = EXCLUDED.credit_limit,
			mode           = EXCLUDED.mode,
			version        = credit_snapshots.version + 1,
			calculated_at  = EXCLUDED.calculated_at
		WHERE credit_snapshots.calculated_at <= EXCLUDED.calculated_at
		RETURNING version
	`,
		row.ClientID, row.ID, row.Result, row.Weights, row.WeightsSource,
		row.HealthScore, decimal.NewFromFloat(row.CreditLimit), row.Mode, row.CalculatedAt,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.GetSnapshot(ctx, snap.ClientID)
	}
	if err != nil {
		return models.CreditSnapshot{}, fmt.Errorf("save snapshot: %w", err)
	}

	snap.ID = row.ID
	snap.Version = version
	snap.CalculatedAt = row.CalculatedAt
	return snap, nil
}

func (s *PostgresCreditStore) GetSnapshot(ctx context.Context, clientID int64) (models.CreditSnapshot, error) {
	var r snapshotRow
	err := s.pool.QueryRow(ctx, `
		SELECT id, client_id, result, weights, weights_source, version, calculated_at
		FROM credit_snapshots WHERE client_id = $1
	`, clientID).Scan(&r.ID, &r.ClientID, &r.Result, &r.Weights, &r.WeightsSource, &r.Version, &r.CalculatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.CreditSnapshot{}, models.ErrSnapshotNotFound
		}
		return models.CreditSnapshot{}, fmt.Errorf("query snapshot: %w", err)
	}
	return r.decode()
}

func (s *PostgresCreditStore) AppendSnapshot(ctx context.Context, snap models.CreditSnapshot) error {
	row, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO credit_snapshot_history (
			id, client_id, result, weights, weights_source,
			health_score, credit_limit, mode, version, calculated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO NOTHING
	`,
		row.ID, row.ClientID, row.Result, row.Weights, row.WeightsSource,
		row.HealthScore, decimal.NewFromFloat(row.CreditLimit), row.Mode, row.Version, row.CalculatedAt,
	)
	if err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	return nil
}

func (s *PostgresCreditStore) ListSnapshots(ctx context.Context, clientID int64, limit int) ([]models.CreditSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, client_id, result, weights, weights_source, version, calculated_at
		FROM credit_snapshot_history
		WHERE client_id = $1
		ORDER BY calculated_at DESC
		LIMIT $2
	`, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]models.CreditSnapshot, 0, limit)
	for rows.Next() {
		var r snapshotRow
		if err := rows.Scan(&r.ID, &r.ClientID, &r.Result, &r.Weights, &r.WeightsSource, &r.Version, &r.CalculatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		snap, err := r.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *PostgresCreditStore) Health(ctx context.Context) error {
	return postgres.HealthCheck(ctx, s.pool)
}

func (s *PostgresCreditStore) Close() error {
	s.pool.Close()
	return nil
}

var _ domrepo.CreditStore = (*PostgresCreditStore)(nil)
