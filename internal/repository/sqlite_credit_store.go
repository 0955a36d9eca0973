package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"CreditIntel/internal/domain/models"
	domrepo "CreditIntel/internal/domain/repository"
	"CreditIntel/pkg/sqlite"
)

// Timestamps are stored as unix nanoseconds so ordering and the
// last-write-wins comparison are plain integer comparisons.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS credit_settings (
		id          INTEGER PRIMARY KEY CHECK (id = 1),
		weights     TEXT NOT NULL,
		learning    TEXT NOT NULL,
		updated_at  INTEGER NOT NULL,
		updated_by  TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS credit_snapshots (
		client_id      INTEGER PRIMARY KEY,
		id             TEXT NOT NULL,
		result         TEXT NOT NULL,
		weights        TEXT NOT NULL,
		weights_source TEXT NOT NULL,
		health_score   REAL NOT NULL,
		credit_limit   REAL NOT NULL,
		mode           TEXT NOT NULL,
		version        INTEGER NOT NULL DEFAULT 1,
		calculated_at  INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS credit_snapshot_history (
		id             TEXT PRIMARY KEY,
		client_id      INTEGER NOT NULL,
		result         TEXT NOT NULL,
		weights        TEXT NOT NULL,
		weights_source TEXT NOT NULL,
		health_score   REAL NOT NULL,
		credit_limit   REAL NOT NULL,
		mode           TEXT NOT NULL,
		version        INTEGER NOT NULL,
		calculated_at  INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_credit_history_client ON credit_snapshot_history (client_id, calculated_at DESC)`,
}

// SQLiteCreditStore is the single-node CreditStore.
type SQLiteCreditStore struct {
	db *sql.DB
}

// NewSQLiteCreditStore opens the database at path and migrates it.
func NewSQLiteCreditStore(ctx context.Context, path string) (*SQLiteCreditStore, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(ctx, db, sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteCreditStore{db: db}, nil
}

func (s *SQLiteCreditStore) GetSettings(ctx context.Context) (models.CreditSettings, error) {
	var (
		weights, learning string
		updatedAt         int64
		updatedBy         string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT weights, learning, updated_at, updated_by FROM credit_settings WHERE id = 1`,
	).Scan(&weights, &learning, &updatedAt, &updatedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.CreditSettings{}, models.ErrSettingsNotFound
		}
		return models.CreditSettings{}, fmt.Errorf("query settings: %w", err)
	}
	return decodeSettings([]byte(weights), []byte(learning), time.Unix(0, updatedAt), updatedBy)
}

func (s *SQLiteCreditStore) SaveSettings(ctx context.Context, set models.CreditSettings) error {
	weights, learning, err := encodeSettings(set)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credit_settings (id, weights, learning, updated_at, updated_by)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			weights    = excluded.weights,
			learning   = excluded.learning,
			updated_at = excluded.updated_at,
			updated_by = excluded.updated_by
	`, string(weights), string(learning), set.UpdatedAt.UnixNano(), set.UpdatedBy)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// SaveSnapshot follows the same last-write-wins rule as PostgresCreditStore.
func (s *SQLiteCreditStore) SaveSnapshot(ctx context.Context, snap models.CreditSnapshot) (models.CreditSnapshot, error) {
	row, err := encodeSnapshot(snap)
	if err != nil {
		return models.CreditSnapshot{}, err
	}

	var version int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO credit_snapshots (
			client_id, id, result, weights, weights_source,
			health_score, credit_limit, mode, version, calculated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT (client_id) DO UPDATE SET
			id             = excluded.id,
			result         = excluded.result,
			weights        = excluded.weights,
			weights_source = excluded.weights_source,
			health_score   = excluded.health_score,
			credit_limit   = excluded.credit_limit,
			mode           = excluded.mode,
			version        = credit_snapshots.version + 1,
			calculated_at  = excluded.calculated_at
		WHERE credit_snapshots.calculated_at <= excluded.calculated_at
		RETURNING version
	`,
		row.ClientID, row.ID.String(), string(row.Result), string(row.Weights), row.WeightsSource,
		row.HealthScore, row.CreditLimit, row.Mode, row.CalculatedAt.UnixNano(),
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
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

func (s *SQLiteCreditStore) GetSnapshot(ctx context.Context, clientID int64) (models.CreditSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, result, weights, weights_source, version, calculated_at
		FROM credit_snapshots WHERE client_id = ?
	`, clientID)
	snap, err := scanSQLiteSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.CreditSnapshot{}, models.ErrSnapshotNotFound
		}
		return models.CreditSnapshot{}, fmt.Errorf("query snapshot: %w", err)
	}
	return snap, nil
}

func (s *SQLiteCreditStore) AppendSnapshot(ctx context.Context, snap models.CreditSnapshot) error {
	row, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credit_snapshot_history (
			id, client_id, result, weights, weights_source,
			health_score, credit_limit, mode, version, calculated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`,
		row.ID.String(), row.ClientID, string(row.Result), string(row.Weights), row.WeightsSource,
		row.HealthScore, row.CreditLimit, row.Mode, row.Version, row.CalculatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteCreditStore) ListSnapshots(ctx context.Context, clientID int64, limit int) ([]models.CreditSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, result, weights, weights_source, version, calculated_at
		FROM credit_snapshot_history
		WHERE client_id = ?
		ORDER BY calculated_at DESC
		LIMIT ?
	`, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]models.CreditSnapshot, 0, limit)
	for rows.Next() {
		snap, err := scanSQLiteSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSnapshot(sc rowScanner) (models.CreditSnapshot, error) {
	var (
		id, result, weights string
		calculatedAt        int64
		r                   snapshotRow
	)
	if err := sc.Scan(&id, &r.ClientID, &result, &weights, &r.WeightsSource, &r.Version, &calculatedAt); err != nil {
		return models.CreditSnapshot{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return models.CreditSnapshot{}, fmt.Errorf("parse snapshot id: %w", err)
	}
	r.ID = parsed
	r.Result = []byte(result)
	r.Weights = []byte(weights)
	r.CalculatedAt = time.Unix(0, calculatedAt)
	return r.decode()
}

func (s *SQLiteCreditStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteCreditStore) Close() error {
	return s.db.Close()
}

var _ domrepo.CreditStore = (*SQLiteCreditStore)(nil)
