package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"CreditIntel/internal/domain/models"
	domrepo "CreditIntel/internal/domain/repository"
	pkgch "CreditIntel/pkg/clickhouse"
	applogger "CreditIntel/pkg/logger"
)

// CHSnapshotHistory appends every persisted snapshot to a MergeTree table.
type CHSnapshotHistory struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewCHSnapshotHistory creates the history database and table when missing.
func NewCHSnapshotHistory(ctx context.Context, ch *pkgch.Client, database string) (*CHSnapshotHistory, error) {
	if database == "" {
		database = ch.Database()
	}
	h := &CHSnapshotHistory{db: ch.DB(), table: database + ".credit_snapshot_history", l: applogger.Nop()}

	stmts := []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id             UUID,
			client_id      Int64,
			calculated_at  DateTime64(3, 'UTC'),
			version        Int64,
			mode           LowCardinality(String),
			health_score   Float64,
			credit_limit   Float64,
			weights_source LowCardinality(String),
			weights        String,
			result         String
		) ENGINE = MergeTree
		PARTITION BY toYYYYMM(calculated_at)
		ORDER BY (client_id, calculated_at)`, h.table),
	}
	if err := ch.InitSchema(ctx, stmts); err != nil {
		return nil, fmt.Errorf("clickhouse history: %w", err)
	}
	return h, nil
}

// SetLogger injects a structured logger.
func (h *CHSnapshotHistory) SetLogger(l *applogger.Logger) { h.l = l }

func (h *CHSnapshotHistory) AppendSnapshot(ctx context.Context, snap models.CreditSnapshot) error {
	row, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, client_id, calculated_at, version, mode, health_score, credit_limit, weights_source, weights, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, h.table)
	_, err = h.db.ExecContext(ctx, q,
		row.ID.String(), row.ClientID, row.CalculatedAt, row.Version, row.Mode,
		row.HealthScore, row.CreditLimit, row.WeightsSource, string(row.Weights), string(row.Result),
	)
	if err != nil {
		h.l.Error("clickhouse history insert error", applogger.ClientID(snap.ClientID), applogger.Error(err))
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (h *CHSnapshotHistory) ListSnapshots(ctx context.Context, clientID int64, limit int) ([]models.CreditSnapshot, error) {
	q := fmt.Sprintf(`
		SELECT toString(id), client_id, calculated_at, version, weights_source, weights, result
		FROM %s
		WHERE client_id = ?
		ORDER BY calculated_at DESC
		LIMIT ?
	`, h.table)
	rows, err := h.db.QueryContext(ctx, q, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]models.CreditSnapshot, 0, limit)
	for rows.Next() {
		var (
			id, weights, result string
			calculatedAt        time.Time
			r                   snapshotRow
		)
		if err := rows.Scan(&id, &r.ClientID, &calculatedAt, &r.Version, &r.WeightsSource, &weights, &result); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse snapshot id: %w", err)
		}
		r.CalculatedAt = calculatedAt
		r.Weights = []byte(weights)
		r.Result = []byte(result)
		snap, err := r.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

var _ domrepo.SnapshotHistory = (*CHSnapshotHistory)(nil)
