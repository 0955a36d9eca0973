package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CreditIntel/internal/domain/models"
	domrepo "CreditIntel/internal/domain/repository"
	domsvc "CreditIntel/internal/domain/service"
	applogger "CreditIntel/pkg/logger"
	"CreditIntel/pkg/metrics"
)

const (
	defaultCalcTimeout  = 10 * time.Second
	sideEffectTimeout   = 5 * time.Second
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// SettingsSource supplies the effective organisation settings.
type SettingsSource interface {
	Settings(ctx context.Context) (models.CreditSettings, error)
}

// CreditLimitService orchestrates collect, weigh, score and persist.
type CreditLimitService struct {
	collector domrepo.SignalCollector
	settings  SettingsSource
	scorer    domsvc.CreditScorer
	validator domsvc.WeightValidator
	store     domrepo.SnapshotStore
	history   domrepo.SnapshotHistory
	publisher domrepo.SnapshotPublisher
	metrics   domrepo.Metrics
	timeout   time.Duration
	now       func() time.Time
	l         *applogger.Logger
}

// ServiceOption configures CreditLimitService.
type ServiceOption func(*CreditLimitService)

// WithHistory appends every persisted snapshot to h.
func WithHistory(h domrepo.SnapshotHistory) ServiceOption {
	return func(s *CreditLimitService) { s.history = h }
}

// WithPublisher fans persisted snapshots out through p.
func WithPublisher(p domrepo.SnapshotPublisher) ServiceOption {
	return func(s *CreditLimitService) { s.publisher = p }
}

func WithMetrics(m domrepo.Metrics) ServiceOption {
	return func(s *CreditLimitService) { s.metrics = m }
}

// WithTimeout bounds every calculate and preview call.
func WithTimeout(d time.Duration) ServiceOption {
	return func(s *CreditLimitService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock replaces time.Now; the clock decides asOf and calculatedAt.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *CreditLimitService) { s.now = now }
}

func WithServiceLogger(l *applogger.Logger) ServiceOption {
	return func(s *CreditLimitService) { s.l = l }
}

func NewCreditLimitService(
	collector domrepo.SignalCollector,
	settings SettingsSource,
	scorer domsvc.CreditScorer,
	validator domsvc.WeightValidator,
	store domrepo.SnapshotStore,
	opts ...ServiceOption,
) *CreditLimitService {
	s := &CreditLimitService{
		collector: collector,
		settings:  settings,
		scorer:    scorer,
		validator: validator,
		store:     store,
		metrics:   metrics.Nop{},
		timeout:   defaultCalcTimeout,
		now:       time.Now,
		l:         applogger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Calculate scores the client and stores the result as its current snapshot.
// Custom weights, when given, are used for this calculation only.
func (s *CreditLimitService) Calculate(ctx context.Context, clientID int64, custom *models.SignalWeights) (models.CreditResult, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, weights, source, err := s.evaluate(ctx, clientID, custom)
	if err != nil {
		return models.CreditResult{}, err
	}

	snap := models.NewCreditSnapshot(res, weights, source, s.now())
	stored, err := s.store.SaveSnapshot(ctx, snap)
	if err != nil {
		s.metrics.RecordError("persist")
		s.l.Error("snapshot persist failed", applogger.ClientID(clientID), applogger.Error(err))
		return models.CreditResult{}, fmt.Errorf("persist snapshot: %w", err)
	}
	if stored.ID == snap.ID {
		snap = stored
		s.afterPersist(ctx, snap, true)
	} else {
		s.l.Warn("newer snapshot already stored, keeping it",
			applogger.ClientID(clientID),
			applogger.Int64("stored_version", stored.Version))
		s.afterPersist(ctx, snap, false)
	}

	s.observe(res, false, start)
	s.l.Info("credit calculated",
		applogger.ClientID(clientID),
		applogger.String("mode", string(res.Mode)),
		applogger.Float64("health", res.CreditHealthScore),
		applogger.Float64("limit", res.CreditLimit),
		applogger.String("weights", string(source)),
		applogger.Int64("version", snap.Version))
	return res, nil
}

// Preview scores the client with the given weights without persisting anything.
func (s *CreditLimitService) Preview(ctx context.Context, clientID int64, custom models.SignalWeights) (models.CreditResult, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, _, _, err := s.evaluate(ctx, clientID, &custom)
	if err != nil {
		return models.CreditResult{}, err
	}
	res.Preview = true
	s.observe(res, true, start)
	return res, nil
}

// CurrentSnapshot returns the last persisted snapshot without recomputing.
func (s *CreditLimitService) CurrentSnapshot(ctx context.Context, clientID int64) (models.CreditSnapshot, error) {
	snap, err := s.store.GetSnapshot(ctx, clientID)
	if err != nil {
		if !errors.Is(err, models.ErrSnapshotNotFound) {
			s.metrics.RecordError("snapshot_read")
		}
		return models.CreditSnapshot{}, err
	}
	return snap, nil
}

// History lists past snapshots of a client, newest first.
func (s *CreditLimitService) History(ctx context.Context, clientID int64, limit int) ([]models.CreditSnapshot, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if s.history == nil {
		return []models.CreditSnapshot{}, nil
	}
	list, err := s.history.ListSnapshots(ctx, clientID, limit)
	if err != nil {
		s.metrics.RecordError("history_read")
		return nil, fmt.Errorf("list history: %w", err)
	}
	return list, nil
}

// evaluate validates custom weights before any collaborator is called,
// then resolves settings, collects signals and scores.
func (s *CreditLimitService) evaluate(ctx context.Context, clientID int64, custom *models.SignalWeights) (models.CreditResult, models.SignalWeights, models.WeightsSource, error) {
	fail := func(kind string, err error) (models.CreditResult, models.SignalWeights, models.WeightsSource, error) {
		s.metrics.RecordError(kind)
		return models.CreditResult{}, models.SignalWeights{}, "", err
	}

	if custom != nil {
		if _, err := s.validator.ValidateWeights(*custom); err != nil {
			return fail("weights", err)
		}
	}
	if clientID <= 0 {
		return fail("not_found", fmt.Errorf("client %d: %w", clientID, models.ErrClientNotFound))
	}

	set, err := s.settings.Settings(ctx)
	if err != nil {
		return fail("settings", err)
	}
	weights, source := set.Weights, models.WeightsDefault
	if custom != nil {
		weights, source = *custom, models.WeightsOverride
	}

	raw, err := s.collector.Fetch(ctx, clientID, s.now())
	if err != nil {
		switch {
		case errors.Is(err, models.ErrClientNotFound):
			return fail("not_found", err)
		case errors.Is(err, context.DeadlineExceeded):
			return fail("timeout", fmt.Errorf("collect signals: %w", err))
		default:
			s.l.Error("signal collection failed", applogger.ClientID(clientID), applogger.Error(err))
			return fail("collect", fmt.Errorf("collect signals: %w", err))
		}
	}
	if raw != nil && raw.ClientID == 0 {
		raw.ClientID = clientID
	}

	res, err := s.scorer.Score(raw, weights, set.Learning)
	if err != nil {
		var incomplete *models.IncompleteSignalDataError
		if errors.As(err, &incomplete) {
			s.l.Warn("incomplete signal data", applogger.ClientID(clientID), applogger.String("field", incomplete.Field))
			return fail("incomplete_data", err)
		}
		return fail("score", err)
	}
	return res, weights, source, nil
}

// afterPersist appends to history and publishes. Failures are logged and
// counted; they never fail the calculation.
func (s *CreditLimitService) afterPersist(ctx context.Context, snap models.CreditSnapshot, current bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if s.history != nil {
		if err := s.history.AppendSnapshot(ctx, snap); err != nil {
			s.metrics.RecordError("history")
			s.l.Warn("history append failed", applogger.ClientID(snap.ClientID), applogger.Error(err))
		}
	}
	if current && s.publisher != nil {
		if err := s.publisher.PublishSnapshot(ctx, snap); err != nil {
			s.metrics.RecordError("publish")
			s.l.Warn("snapshot publish failed", applogger.ClientID(snap.ClientID), applogger.Error(err))
		}
	}
}

func (s *CreditLimitService) observe(res models.CreditResult, preview bool, start time.Time) {
	mode := string(res.Mode)
	s.metrics.RecordCalculation(mode, preview)
	s.metrics.RecordHealthScore(mode, res.CreditHealthScore)
	if !preview {
		s.metrics.RecordCreditLimit(mode, res.CreditLimit)
	}
	op := "calculate"
	if preview {
		op = "preview"
	}
	s.metrics.RecordLatency(op, time.Since(start).Seconds())
}
