package repository

import (
	"context"
	"time"

	"CreditIntel/internal/domain/models"
)

// SignalCollector gathers raw per-client metrics from the ERP.
// It returns models.ErrClientNotFound when the client does not exist.
type SignalCollector interface {
	Fetch(ctx context.Context, clientID int64, asOf time.Time) (*models.RawSignals, error)
}

// ClientLister enumerates clients that had activity since a point in time.
type ClientLister interface {
	ListActiveClientIDs(ctx context.Context, since time.Time) ([]int64, error)
}

// SignalSource is a collector that can also enumerate active clients.
type SignalSource interface {
	SignalCollector
	ClientLister
}

// SettingsStore persists the organisation-wide settings row.
// GetSettings returns models.ErrSettingsNotFound when no row exists.
type SettingsStore interface {
	GetSettings(ctx context.Context) (models.CreditSettings, error)
	SaveSettings(ctx context.Context, s models.CreditSettings) error
}

// SnapshotStore keeps the current snapshot per client.
// SaveSnapshot returns the stored row, which carries the bumped version.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap models.CreditSnapshot) (models.CreditSnapshot, error)
	GetSnapshot(ctx context.Context, clientID int64) (models.CreditSnapshot, error)
}

// SnapshotHistory is the append-only audit trail of calculations.
type SnapshotHistory interface {
	AppendSnapshot(ctx context.Context, snap models.CreditSnapshot) error
	ListSnapshots(ctx context.Context, clientID int64, limit int) ([]models.CreditSnapshot, error)
}

// CreditStore is a single backend serving settings, current snapshots and history.
type CreditStore interface {
	SettingsStore
	SnapshotStore
	SnapshotHistory
	Health(ctx context.Context) error
	Close() error
}

// SnapshotPublisher fans persisted snapshots out to downstream consumers.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snap models.CreditSnapshot) error
	Close() error
}

// Metrics records engine outcomes. Labels are kept low-cardinality: mode is
// LEARNING or ACTIVE, never a client id.
type Metrics interface {
	RecordCalculation(mode string, preview bool)
	RecordHealthScore(mode string, score float64)
	RecordCreditLimit(mode string, limit float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
