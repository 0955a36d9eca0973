package collector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CreditIntel/internal/domain/models"
)

func TestHTTPCollectorFetch(t *testing.T) {
	asOf := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/clients/42/credit-signals", r.URL.Path)
		assert.Equal(t, "2026-06-30T00:00:00Z", r.URL.Query().Get("asOf"))
		assert.Equal(t, "90", r.URL.Query().Get("windowDays"))
		_ = json.NewEncoder(w).Encode(models.RawSignals{
			TenureDays:     400,
			LifetimeOrders: 30,
			Current:        &models.PeriodSignals{Revenue: 9000, Aging: &models.AgingBuckets{}},
		})
	}))
	defer srv.Close()

	c := NewHTTPCollector(srv.URL+"/", 90, time.Second)
	raw, err := c.Fetch(context.Background(), 42, asOf)
	require.NoError(t, err)
	assert.Equal(t, int64(42), raw.ClientID)
	assert.True(t, raw.AsOf.Equal(asOf))
	assert.Equal(t, 90, raw.WindowDays)
	assert.Equal(t, 400, raw.TenureDays)
	assert.Equal(t, 9000.0, raw.Current.Revenue)
}

func TestHTTPCollectorNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewHTTPCollector(srv.URL, 90, time.Second, WithRetries(3))
	_, err := c.Fetch(context.Background(), 7, time.Now())
	assert.ErrorIs(t, err, models.ErrClientNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPCollectorRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"clientIds": []int64{3, 5}})
	}))
	defer srv.Close()

	c := NewHTTPCollector(srv.URL, 90, time.Second, WithRetries(2))
	ids, err := c.ListActiveClientIDs(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 5}, ids)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPCollectorGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPCollector(srv.URL, 90, time.Second, WithRetries(1))
	_, err := c.Fetch(context.Background(), 1, time.Now())
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrClientNotFound)
}
