package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"CreditIntel/internal/domain/models"
	domrepo "CreditIntel/internal/domain/repository"
	pkgch "CreditIntel/pkg/clickhouse"
	applogger "CreditIntel/pkg/logger"
	"CreditIntel/pkg/util"
)

// CHSignalCollector reads raw client metrics from the ERP analytics replica.
// Expected tables: clients(client_id, created_at),
// orders(client_id, created_at, status, total, cost) and
// invoices(client_id, issued_at, amount, paid_at Nullable, paid_amount).
type CHSignalCollector struct {
	db         *sql.DB
	database   string
	windowDays int
	l          *applogger.Logger
}

func NewCHSignalCollector(ch *pkgch.Client, windowDays int) *CHSignalCollector {
	if windowDays <= 0 {
		windowDays = domrepo.DefaultWindowDays
	}
	return &CHSignalCollector{db: ch.DB(), database: ch.Database(), windowDays: windowDays, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHSignalCollector) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHSignalCollector) table(name string) string {
	if s.database == "" {
		return name
	}
	return s.database + "." + name
}

func (s *CHSignalCollector) Fetch(ctx context.Context, clientID int64, asOf time.Time) (*models.RawSignals, error) {
	start := time.Now()
	createdAt, err := s.clientCreatedAt(ctx, clientID)
	if err != nil {
		return nil, err
	}

	cur, prev, base := domrepo.PeriodWindows(asOf, s.windowDays)
	raw := &models.RawSignals{
		ClientID:   clientID,
		AsOf:       asOf.UTC(),
		WindowDays: s.windowDays,
		TenureDays: max(0, util.DaysBetween(createdAt, asOf)),
	}

	periods := []struct {
		w   domrepo.Window
		dst **models.PeriodSignals
	}{
		{cur, &raw.Current},
		{prev, &raw.Previous},
		{base, &raw.Baseline},
	}
	for _, p := range periods {
		ps, err := s.period(ctx, clientID, p.w)
		if err != nil {
			return nil, err
		}
		*p.dst = ps
	}

	if raw.LifetimeOrders, err = s.lifetimeOrders(ctx, clientID, cur.To); err != nil {
		return nil, err
	}
	raw.CurrentExposure = raw.Current.Aging.Total()

	s.l.Debug("signals collected",
		applogger.ClientID(clientID),
		applogger.Int("lifetime_orders", raw.LifetimeOrders),
		applogger.Duration("took", time.Since(start)),
	)
	return raw, nil
}

func (s *CHSignalCollector) clientCreatedAt(ctx context.Context, clientID int64) (time.Time, error) {
	var createdAt time.Time
	q := fmt.Sprintf(`SELECT created_at FROM %s WHERE client_id = ? LIMIT 1`, s.table("clients"))
	err := s.db.QueryRowContext(ctx, q, clientID).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("client %d: %w", clientID, models.ErrClientNotFound)
	}
	if err != nil {
		s.l.Error("clickhouse client lookup error", applogger.ClientID(clientID), applogger.Error(err))
		return time.Time{}, fmt.Errorf("lookup client: %w", err)
	}
	return createdAt, nil
}

func (s *CHSignalCollector) period(ctx context.Context, clientID int64, w domrepo.Window) (*models.PeriodSignals, error) {
	ps := &models.PeriodSignals{}

	q := fmt.Sprintf(`
		SELECT toFloat64(sum(total)), toFloat64(sum(cost)), toInt64(count())
		FROM %s
		WHERE client_id = ? AND status != 'cancelled' AND created_at >= ? AND created_at < ?
	`, s.table("orders"))
	var orders int64
	if err := s.db.QueryRowContext(ctx, q, clientID, w.From, w.To).Scan(&ps.Revenue, &ps.CostOfGoods, &orders); err != nil {
		s.l.Error("clickhouse orders query error", applogger.ClientID(clientID), applogger.Error(err))
		return nil, fmt.Errorf("query orders: %w", err)
	}
	ps.OrderCount = int(orders)

	payments, err := s.payments(ctx, clientID, w)
	if err != nil {
		return nil, err
	}
	ps.Payments = payments

	open, err := s.openInvoices(ctx, clientID, w.To)
	if err != nil {
		return nil, err
	}
	aging := BucketAging(open, w.To)
	ps.Aging = &aging
	return ps, nil
}

func (s *CHSignalCollector) payments(ctx context.Context, clientID int64, w domrepo.Window) ([]models.PaymentRecord, error) {
	q := fmt.Sprintf(`
		SELECT issued_at, assumeNotNull(paid_at), toFloat64(paid_amount)
		FROM %s
		WHERE client_id = ? AND paid_at IS NOT NULL AND paid_at >= ? AND paid_at < ?
		ORDER BY paid_at
	`, s.table("invoices"))
	rows, err := s.db.QueryContext(ctx, q, clientID, w.From, w.To)
	if err != nil {
		s.l.Error("clickhouse payments query error", applogger.ClientID(clientID), applogger.Error(err))
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var out []models.PaymentRecord
	for rows.Next() {
		var p models.PaymentRecord
		if err := rows.Scan(&p.InvoicedAt, &p.PaidAt, &p.Amount); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// OpenInvoice is an invoice balance still unpaid at some point in time.
type OpenInvoice struct {
	IssuedAt time.Time
	Amount   float64
}

func (s *CHSignalCollector) openInvoices(ctx context.Context, clientID int64, at time.Time) ([]OpenInvoice, error) {
	q := fmt.Sprintf(`
		SELECT issued_at, toFloat64(amount)
		FROM %s
		WHERE client_id = ? AND issued_at < ? AND (paid_at IS NULL OR paid_at >= ?)
	`, s.table("invoices"))
	rows, err := s.db.QueryContext(ctx, q, clientID, at, at)
	if err != nil {
		s.l.Error("clickhouse open invoices query error", applogger.ClientID(clientID), applogger.Error(err))
		return nil, fmt.Errorf("query open invoices: %w", err)
	}
	defer rows.Close()

	var out []OpenInvoice
	for rows.Next() {
		var inv OpenInvoice
		if err := rows.Scan(&inv.IssuedAt, &inv.Amount); err != nil {
			return nil, fmt.Errorf("scan open invoice: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *CHSignalCollector) lifetimeOrders(ctx context.Context, clientID int64, before time.Time) (int, error) {
	q := fmt.Sprintf(`
		SELECT toInt64(count()) FROM %s
		WHERE client_id = ? AND status != 'cancelled' AND created_at < ?
	`, s.table("orders"))
	var n int64
	if err := s.db.QueryRowContext(ctx, q, clientID, before).Scan(&n); err != nil {
		s.l.Error("clickhouse lifetime orders query error", applogger.ClientID(clientID), applogger.Error(err))
		return 0, fmt.Errorf("query lifetime orders: %w", err)
	}
	return int(n), nil
}

// ListActiveClientIDs returns clients with at least one order since the given time.
func (s *CHSignalCollector) ListActiveClientIDs(ctx context.Context, since time.Time) ([]int64, error) {
	q := fmt.Sprintf(`
		SELECT DISTINCT toInt64(client_id) AS id FROM %s
		WHERE created_at >= ?
		ORDER BY id
	`, s.table("orders"))
	rows, err := s.db.QueryContext(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("list active clients: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan client id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// BucketAging splits open balances by invoice age at the given instant.
// Buckets are 0-30, 31-60, 61-90 and over 90 days.
func BucketAging(open []OpenInvoice, at time.Time) models.AgingBuckets {
	var b models.AgingBuckets
	for _, inv := range open {
		if inv.Amount <= 0 {
			continue
		}
		age := at.Sub(inv.IssuedAt).Hours() / 24
		switch {
		case age <= 30:
			b.Current += inv.Amount
		case age <= 60:
			b.Days31To60 += inv.Amount
		case age <= 90:
			b.Days61To90 += inv.Amount
		default:
			b.Over90 += inv.Amount
		}
	}
	return b
}

var (
	_ domrepo.SignalCollector = (*CHSignalCollector)(nil)
	_ domrepo.ClientLister    = (*CHSignalCollector)(nil)
)
