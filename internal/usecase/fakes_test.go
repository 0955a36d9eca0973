package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CreditIntel/internal/domain/models"
)

var testNow = time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func period(revenue, cogs float64, orders, payDays int, current float64) *models.PeriodSignals {
	p := &models.PeriodSignals{Revenue: revenue, CostOfGoods: cogs, OrderCount: orders, Aging: &models.AgingBuckets{Current: current}}
	if revenue > 0 {
		inv := testNow.AddDate(0, -1, 0)
		p.Payments = []models.PaymentRecord{{InvoicedAt: inv, PaidAt: inv.AddDate(0, 0, payDays), Amount: revenue}}
	}
	return p
}

// establishedClient has two years of tenure, pays in ten days and grows revenue.
func establishedClient(id int64) *models.RawSignals {
	return &models.RawSignals{
		ClientID:        id,
		AsOf:            testNow,
		WindowDays:      90,
		Baseline:        period(30000, 21000, 10, 10, 5000),
		Previous:        period(33000, 23100, 11, 10, 5000),
		Current:         period(45000, 31500, 12, 10, 5000),
		TenureDays:      730,
		LifetimeOrders:  60,
		CurrentExposure: 7000,
	}
}

func newClient(id int64) *models.RawSignals {
	return &models.RawSignals{
		ClientID:   id,
		AsOf:       testNow,
		WindowDays: 90,
		Baseline:   period(0, 0, 0, 0, 0),
		Previous:   period(0, 0, 0, 0, 0),
		Current:    period(0, 0, 0, 0, 0),
	}
}

type fakeCollector struct {
	mu      sync.Mutex
	clients map[int64]*models.RawSignals
	calls   int
	err     error
}

func (f *fakeCollector) Fetch(_ context.Context, clientID int64, _ time.Time) (*models.RawSignals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	raw, ok := f.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("client %d: %w", clientID, models.ErrClientNotFound)
	}
	cp := *raw
	return &cp, nil
}

func (f *fakeCollector) ListActiveClientIDs(context.Context, time.Time) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0, len(f.clients))
	for id := range f.clients {
		ids = append(ids, id)
	}
	return ids, nil
}

type memSettings struct {
	set *models.CreditSettings
}

func (m *memSettings) GetSettings(context.Context) (models.CreditSettings, error) {
	if m.set == nil {
		return models.CreditSettings{}, models.ErrSettingsNotFound
	}
	return *m.set, nil
}

func (m *memSettings) SaveSettings(_ context.Context, s models.CreditSettings) error {
	m.set = &s
	return nil
}

type memSnapshots struct {
	mu      sync.Mutex
	current map[int64]models.CreditSnapshot
	history []models.CreditSnapshot
	saves   int
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{current: map[int64]models.CreditSnapshot{}}
}

func (m *memSnapshots) SaveSnapshot(_ context.Context, s models.CreditSnapshot) (models.CreditSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if prev, ok := m.current[s.ClientID]; ok {
		if prev.CalculatedAt.After(s.CalculatedAt) {
			return prev, nil
		}
		s.Version = prev.Version + 1
	}
	m.current[s.ClientID] = s
	return s, nil
}

func (m *memSnapshots) GetSnapshot(_ context.Context, clientID int64) (models.CreditSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.current[clientID]
	if !ok {
		return models.CreditSnapshot{}, models.ErrSnapshotNotFound
	}
	return s, nil
}

func (m *memSnapshots) AppendSnapshot(_ context.Context, s models.CreditSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, s)
	return nil
}

func (m *memSnapshots) ListSnapshots(_ context.Context, clientID int64, limit int) ([]models.CreditSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CreditSnapshot
	for i := len(m.history) - 1; i >= 0 && len(out) < limit; i-- {
		if m.history[i].ClientID == clientID {
			out = append(out, m.history[i])
		}
	}
	return out, nil
}

type capturePublisher struct {
	mu   sync.Mutex
	got  []models.CreditSnapshot
	fail error
}

func (c *capturePublisher) PublishSnapshot(_ context.Context, s models.CreditSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, s)
	return c.fail
}

func (c *capturePublisher) Close() error { return nil }

type countingMetrics struct {
	mu     sync.Mutex
	calcs  map[string]int
	errors map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{calcs: map[string]int{}, errors: map[string]int{}}
}

func (c *countingMetrics) RecordCalculation(mode string, preview bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calcs[fmt.Sprintf("%s/%t", mode, preview)]++
}
func (c *countingMetrics) RecordHealthScore(string, float64) {}
func (c *countingMetrics) RecordCreditLimit(string, float64) {}
func (c *countingMetrics) RecordError(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors[kind]++
}
func (c *countingMetrics) RecordLatency(string, float64) {}

type fakeCalculator struct {
	mu    sync.Mutex
	calls []int64
	errs  map[int64]error
}

func (f *fakeCalculator) Calculate(_ context.Context, clientID int64, _ *models.SignalWeights) (models.CreditResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, clientID)
	if err := f.errs[clientID]; err != nil {
		return models.CreditResult{}, err
	}
	return models.CreditResult{ClientID: clientID}, nil
}
