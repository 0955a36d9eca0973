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
)

// SettingsProvider serves the organisation-wide weights and learning thresholds.
// Without a stored row it falls back to the canonical weights and the
// configured thresholds.
type SettingsProvider struct {
	store     domrepo.SettingsStore
	validator domsvc.WeightValidator
	fallback  models.LearningThresholds
	now       func() time.Time
	l         *applogger.Logger
}

func NewSettingsProvider(store domrepo.SettingsStore, validator domsvc.WeightValidator, fallback models.LearningThresholds) *SettingsProvider {
	return &SettingsProvider{
		store:     store,
		validator: validator,
		fallback:  fallback,
		now:       time.Now,
		l:         applogger.Nop(),
	}
}

// SetLogger injects a structured logger.
func (p *SettingsProvider) SetLogger(l *applogger.Logger) { p.l = l }

// Settings returns the effective settings. Stored weights go through the same
// validator as overrides; a stored set that fails it is replaced by the
// canonical defaults and logged.
func (p *SettingsProvider) Settings(ctx context.Context) (models.CreditSettings, error) {
	set, err := p.store.GetSettings(ctx)
	if errors.Is(err, models.ErrSettingsNotFound) {
		return models.CreditSettings{
			Weights:  models.DefaultSignalWeights(),
			Learning: p.fallback,
		}, nil
	}
	if err != nil {
		return models.CreditSettings{}, fmt.Errorf("load settings: %w", err)
	}

	if _, err := p.validator.ValidateWeights(set.Weights); err != nil {
		p.l.Error("stored weights rejected, using canonical defaults", applogger.Error(err))
		set.Weights = models.DefaultSignalWeights()
	}
	if set.Learning == (models.LearningThresholds{}) {
		set.Learning = p.fallback
	}
	return set, nil
}

// DefaultWeights returns only the effective default weights.
func (p *SettingsProvider) DefaultWeights(ctx context.Context) (models.SignalWeights, error) {
	set, err := p.Settings(ctx)
	if err != nil {
		return models.SignalWeights{}, err
	}
	return set.Weights, nil
}

// SaveWeights validates and stores a new default weight set, keeping the
// current thresholds.
func (p *SettingsProvider) SaveWeights(ctx context.Context, w models.SignalWeights, updatedBy string) (models.CreditSettings, error) {
	valid, err := p.validator.ValidateWeights(w)
	if err != nil {
		return models.CreditSettings{}, err
	}
	current, err := p.Settings(ctx)
	if err != nil {
		return models.CreditSettings{}, err
	}

	next := models.CreditSettings{
		Weights:   valid,
		Learning:  current.Learning,
		UpdatedAt: p.now().UTC(),
		UpdatedBy: updatedBy,
	}
	if err := p.store.SaveSettings(ctx, next); err != nil {
		return models.CreditSettings{}, fmt.Errorf("save settings: %w", err)
	}
	p.l.Info("default weights updated", applogger.String("updated_by", updatedBy))
	return next, nil
}
