package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CreditIntel/internal/domain/models"
	"CreditIntel/internal/services/scoring"
)

type failingSettings struct{ err error }

func (f failingSettings) GetSettings(context.Context) (models.CreditSettings, error) {
	return models.CreditSettings{}, f.err
}
func (f failingSettings) SaveSettings(context.Context, models.CreditSettings) error { return f.err }

func newProvider(t *testing.T, store *memSettings) *SettingsProvider {
	t.Helper()
	engine, err := scoring.NewEngine()
	require.NoError(t, err)
	return NewSettingsProvider(store, engine, fallbackThresholds)
}

func TestSettings_FallsBackWithoutStoredRow(t *testing.T) {
	p := newProvider(t, &memSettings{})

	set, err := p.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSignalWeights(), set.Weights)
	assert.Equal(t, fallbackThresholds, set.Learning)
}

func TestSettings_InvalidStoredWeightsUseDefaults(t *testing.T) {
	stored := models.CreditSettings{
		Weights:  models.SignalWeights{RevenueMomentum: 60, CashCollection: 60},
		Learning: models.LearningThresholds{MinOrders: 5, MinTenureDays: 30, MinRecentOrders: 1},
	}
	p := newProvider(t, &memSettings{set: &stored})

	set, err := p.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSignalWeights(), set.Weights)
	assert.Equal(t, stored.Learning, set.Learning)
}

func TestSettings_ZeroThresholdsUseFallback(t *testing.T) {
	stored := models.CreditSettings{Weights: models.DefaultSignalWeights()}
	p := newProvider(t, &memSettings{set: &stored})

	set, err := p.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fallbackThresholds, set.Learning)
}

func TestSettings_StoreErrorPropagates(t *testing.T) {
	engine, err := scoring.NewEngine()
	require.NoError(t, err)
	boom := errors.New("connection refused")
	p := NewSettingsProvider(failingSettings{err: boom}, engine, fallbackThresholds)

	_, err = p.Settings(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestSaveWeights(t *testing.T) {
	store := &memSettings{}
	p := newProvider(t, store)
	ctx := context.Background()

	w := models.SignalWeights{RevenueMomentum: 30, CashCollection: 30, Profitability: 20, DebtAging: 10, RepaymentVelocity: 5, Tenure: 5}
	saved, err := p.SaveWeights(ctx, w, "ops")
	require.NoError(t, err)
	assert.Equal(t, w, saved.Weights)
	assert.Equal(t, "ops", saved.UpdatedBy)
	assert.False(t, saved.UpdatedAt.IsZero())

	got, err := p.DefaultWeights(ctx)
	require.NoError(t, err)
	assert.Equal(t, w, got)
}

func TestSaveWeights_RejectsWithoutNormalizing(t *testing.T) {
	store := &memSettings{}
	p := newProvider(t, store)

	_, err := p.SaveWeights(context.Background(), models.SignalWeights{RevenueMomentum: 10, CashCollection: 10}, "ops")
	var sumErr *models.WeightSumError
	require.True(t, errors.As(err, &sumErr))
	assert.InDelta(t, 20, sumErr.Sum, 1e-9)
	assert.Nil(t, store.set)
}
