package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"CreditIntel/internal/domain/models"
	domrepo "CreditIntel/internal/domain/repository"
	xhttp "CreditIntel/pkg/http"
	applogger "CreditIntel/pkg/logger"
)

// HTTPCollector fetches raw client signals from the ERP's reporting API.
//
//  GET {base}/api/clients/{id}/credit-signals?asOf=RFC3339&windowDays=N -> models.RawSignals
//  GET {base}/api/clients/active?since=RFC3339                          -> {"clientIds": [...]}
type HTTPCollector struct {
	baseURL    string
	windowDays int
	attempts   int
	client     *xhttp.Client
	l          *applogger.Logger
}

// Option configures HTTPCollector.
type Option func(*HTTPCollector)

// WithRetries sets how many extra attempts are made for transient failures.
func WithRetries(n int) Option {
	return func(c *HTTPCollector) {
		if n >= 0 {
			c.attempts = n + 1
		}
	}
}

// WithClient replaces the HTTP client.
func WithClient(cl *xhttp.Client) Option {
	return func(c *HTTPCollector) { c.client = cl }
}

// WithLogger sets the logger.
func WithLogger(l *applogger.Logger) Option {
	return func(c *HTTPCollector) { c.l = l }
}

func NewHTTPCollector(baseURL string, windowDays int, timeout time.Duration, opts ...Option) *HTTPCollector {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if windowDays <= 0 {
		windowDays = domrepo.DefaultWindowDays
	}
	c := &HTTPCollector{
		baseURL:    strings.TrimRight(baseURL, "/"),
		windowDays: windowDays,
		attempts:   1,
		client:     xhttp.NewClient(xhttp.WithTimeout(timeout)),
		l:          applogger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPCollector) Fetch(ctx context.Context, clientID int64, asOf time.Time) (*models.RawSignals, error) {
	var raw models.RawSignals
	err := c.getWithRetry(ctx, fmt.Sprintf("/api/clients/%d/credit-signals", clientID), map[string][]string{
		"asOf":       {asOf.UTC().Format(time.RFC3339)},
		"windowDays": {strconv.Itoa(c.windowDays)},
	}, &raw)
	if err != nil {
		if xhttp.IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("client %d: %w", clientID, models.ErrClientNotFound)
		}
		return nil, fmt.Errorf("fetch signals for client %d: %w", clientID, err)
	}
	if raw.ClientID == 0 {
		raw.ClientID = clientID
	}
	if raw.AsOf.IsZero() {
		raw.AsOf = asOf.UTC()
	}
	if raw.WindowDays == 0 {
		raw.WindowDays = c.windowDays
	}
	return &raw, nil
}

type activeClientsResponse struct {
	ClientIDs []int64 `json:"clientIds"`
}

func (c *HTTPCollector) ListActiveClientIDs(ctx context.Context, since time.Time) ([]int64, error) {
	var resp activeClientsResponse
	err := c.getWithRetry(ctx, "/api/clients/active", map[string][]string{
		"since": {since.UTC().Format(time.RFC3339)},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("list active clients: %w", err)
	}
	return resp.ClientIDs, nil
}

func (c *HTTPCollector) get(ctx context.Context, path string, query map[string][]string, dest interface{}) error {
	if c.baseURL == "" {
		return fmt.Errorf("erp base url not configured")
	}
	return c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: query,
	}, dest)
}

// getWithRetry retries transport errors and retryable statuses with a linear backoff.
func (c *HTTPCollector) getWithRetry(ctx context.Context, path string, query map[string][]string, dest interface{}) error {
	var err error
	for i := 1; i <= c.attempts; i++ {
		err = c.get(ctx, path, query, dest)
		if err == nil || !retryable(err) || i == c.attempts {
			return err
		}
		c.l.Warn("erp request failed, retrying",
			applogger.String("path", path),
			applogger.Int("attempt", i),
			applogger.Error(err))
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}

var (
	_ domrepo.SignalCollector = (*HTTPCollector)(nil)
	_ domrepo.ClientLister    = (*HTTPCollector)(nil)
)
