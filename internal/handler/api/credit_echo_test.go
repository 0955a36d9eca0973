package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CreditIntel/internal/domain/models"
	"CreditIntel/internal/service/ratelimit"
	xhttp "CreditIntel/pkg/http"
)

type stubCredit struct {
	calcWeights *models.SignalWeights
	previewed   bool
	snapshots   map[int64]models.CreditSnapshot
	historyArgs []int
}

func (s *stubCredit) Calculate(_ context.Context, clientID int64, custom *models.SignalWeights) (models.CreditResult, error) {
	s.calcWeights = custom
	if custom != nil && custom.Sum() != 100 {
		return models.CreditResult{}, &models.WeightSumError{Sum: custom.Sum()}
	}
	if clientID == 404 {
		return models.CreditResult{}, fmt.Errorf("client %d: %w", clientID, models.ErrClientNotFound)
	}
	if clientID == 422 {
		return models.CreditResult{}, &models.IncompleteSignalDataError{Field: "current.aging", Reason: "missing"}
	}
	if clientID == 500 {
		return models.CreditResult{}, fmt.Errorf("collect signals: connection reset")
	}
	return models.CreditResult{ClientID: clientID, Mode: models.ModeActive, CreditLimit: 28000}, nil
}

func (s *stubCredit) Preview(_ context.Context, clientID int64, custom models.SignalWeights) (models.CreditResult, error) {
	s.previewed = true
	if custom.RevenueMomentum < 0 {
		return models.CreditResult{}, &models.InvalidWeightsError{Signal: models.SignalRevenueMomentum, Value: custom.RevenueMomentum}
	}
	return models.CreditResult{ClientID: clientID, Preview: true}, nil
}

func (s *stubCredit) CurrentSnapshot(_ context.Context, clientID int64) (models.CreditSnapshot, error) {
	snap, ok := s.snapshots[clientID]
	if !ok {
		return models.CreditSnapshot{}, models.ErrSnapshotNotFound
	}
	return snap, nil
}

func (s *stubCredit) History(_ context.Context, clientID int64, limit int) ([]models.CreditSnapshot, error) {
	s.historyArgs = append(s.historyArgs, limit)
	return []models.CreditSnapshot{{ClientID: clientID, Version: 2}, {ClientID: clientID, Version: 1}}, nil
}

type stubSettings struct {
	saved *models.SignalWeights
	by    string
}

func (s *stubSettings) Settings(context.Context) (models.CreditSettings, error) {
	return models.CreditSettings{Weights: models.DefaultSignalWeights()}, nil
}

func (s *stubSettings) SaveWeights(_ context.Context, w models.SignalWeights, by string) (models.CreditSettings, error) {
	if w.Sum() != 100 {
		return models.CreditSettings{}, &models.WeightSumError{Sum: w.Sum()}
	}
	s.saved, s.by = &w, by
	return models.CreditSettings{Weights: w, UpdatedBy: by}, nil
}

type stubDispatcher struct {
	ids    []int64
	reason string
	wait   bool
}

func (d *stubDispatcher) Dispatch(_ context.Context, ids []int64, reason string, wait bool) (models.RecalcReport, error) {
	d.ids, d.reason, d.wait = ids, reason, wait
	return models.RecalcReport{Requested: len(ids), Succeeded: ids, Failed: []int64{}, Queued: !wait}, nil
}

type testEnv struct {
	e        *echo.Echo
	credit   *stubCredit
	settings *stubSettings
	dispatch *stubDispatcher
	h        *CreditEchoHandler
}

func newEnv() *testEnv {
	env := &testEnv{
		e:        echo.New(),
		credit:   &stubCredit{snapshots: map[int64]models.CreditSnapshot{7: {ClientID: 7, Version: 3}}},
		settings: &stubSettings{},
		dispatch: &stubDispatcher{},
	}
	env.h = NewCreditEchoHandler(nil, env.credit, env.settings, env.dispatch)
	env.h.RegisterRoutes(env.e)
	return env
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func (env *testEnv) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	var out envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func errorCode(t *testing.T, env envelope) string {
	t.Helper()
	var errs []xhttp.AppError
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.NotEmpty(t, errs)
	return errs[0].Code
}

func TestCalculateWithoutBody(t *testing.T) {
	env := newEnv()

	rec, out := env.do(t, http.MethodPost, "/api/credit/12/calculate", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var res models.CreditResult
	require.NoError(t, json.Unmarshal(out.Data, &res))
	assert.Equal(t, int64(12), res.ClientID)
	assert.Equal(t, 28000.0, res.CreditLimit)
	assert.Nil(t, env.credit.calcWeights)
}

func TestCalculateWithOverride(t *testing.T) {
	env := newEnv()

	body := `{"weights":{"revenueMomentum":30,"cashCollection":30,"profitability":20,"debtAging":10,"repaymentVelocity":5,"tenure":5}}`
	rec, _ := env.do(t, http.MethodPost, "/api/credit/12/calculate", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.credit.calcWeights)
	assert.Equal(t, 30.0, env.credit.calcWeights.CashCollection)
}

func TestCalculateErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		target string
		body   string
		status int
		code   string
	}{
		{"weight sum", "/api/credit/12/calculate", `{"weights":{"revenueMomentum":50,"cashCollection":60}}`, http.StatusBadRequest, "ERR_WEIGHT_SUM"},
		{"unknown client", "/api/credit/404/calculate", "", http.StatusNotFound, "ERR_CLIENT_NOT_FOUND"},
		{"incomplete data", "/api/credit/422/calculate", "", http.StatusUnprocessableEntity, "ERR_INCOMPLETE_SIGNAL_DATA"},
		{"internal", "/api/credit/500/calculate", "", http.StatusInternalServerError, "ERR_INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newEnv()
			rec, out := env.do(t, http.MethodPost, tc.target, tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, errorCode(t, out))
		})
	}
}

func TestCalculateRejectsBadClientID(t *testing.T) {
	env := newEnv()

	rec, _ := env.do(t, http.MethodPost, "/api/credit/0/calculate", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, env.credit.calcWeights)
}

func TestPreviewRequiresWeights(t *testing.T) {
	env := newEnv()

	rec, _ := env.do(t, http.MethodPost, "/api/credit/12/preview", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.credit.previewed)
}

func TestPreview(t *testing.T) {
	env := newEnv()

	body := `{"weights":{"revenueMomentum":20,"cashCollection":25,"profitability":20,"debtAging":15,"repaymentVelocity":10,"tenure":10}}`
	rec, out := env.do(t, http.MethodPost, "/api/credit/12/preview", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	var res models.CreditResult
	require.NoError(t, json.Unmarshal(out.Data, &res))
	assert.True(t, res.Preview)

	rec, out = env.do(t, http.MethodPost, "/api/credit/12/preview", `{"weights":{"revenueMomentum":-5,"cashCollection":105}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ERR_INVALID_WEIGHTS", errorCode(t, out))
}

func TestSnapshot(t *testing.T) {
	env := newEnv()

	rec, out := env.do(t, http.MethodGet, "/api/credit/7", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "private, max-age=15", rec.Header().Get(echo.HeaderCacheControl))
	var snap models.CreditSnapshot
	require.NoError(t, json.Unmarshal(out.Data, &snap))
	assert.Equal(t, int64(3), snap.Version)

	rec, out = env.do(t, http.MethodGet, "/api/credit/8", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ERR_SNAPSHOT_NOT_FOUND", errorCode(t, out))
}

func TestHistoryLimit(t *testing.T) {
	env := newEnv()

	rec, _ := env.do(t, http.MethodGet, "/api/credit/7/history", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = env.do(t, http.MethodGet, "/api/credit/7/history?limit=5", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = env.do(t, http.MethodGet, "/api/credit/7/history?limit=501", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, []int{20, 5}, env.credit.historyArgs)
}

func TestSettingsRoutes(t *testing.T) {
	env := newEnv()

	rec, out := env.do(t, http.MethodGet, "/api/credit/settings", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var set models.CreditSettings
	require.NoError(t, json.Unmarshal(out.Data, &set))
	assert.Equal(t, models.DefaultSignalWeights(), set.Weights)

	body := `{"weights":{"revenueMomentum":30,"cashCollection":30,"profitability":20,"debtAging":10,"repaymentVelocity":5,"tenure":5}}`
	rec, _ = env.do(t, http.MethodPut, "/api/credit/settings/weights", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.settings.saved)
	assert.Equal(t, "api", env.settings.by)

	rec, out = env.do(t, http.MethodPut, "/api/credit/settings/weights", `{"weights":{"tenure":10}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ERR_WEIGHT_SUM", errorCode(t, out))
}

func TestRecalculate(t *testing.T) {
	env := newEnv()

	_, out := env.do(t, http.MethodPost, "/api/credit/recalculate", `{"clientIds":[1,2]}`)
	assert.Equal(t, http.StatusAccepted, out.Status)
	assert.Equal(t, []int64{1, 2}, env.dispatch.ids)
	assert.Equal(t, "manual", env.dispatch.reason)
	assert.False(t, env.dispatch.wait)

	rec, out := env.do(t, http.MethodPost, "/api/credit/recalculate?wait=true", `{"clientIds":[3],"reason":"backfill"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, out.Status)
	assert.True(t, env.dispatch.wait)
	assert.Equal(t, "backfill", env.dispatch.reason)

	rec, _ = env.do(t, http.MethodPost, "/api/credit/recalculate?wait=maybe", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, out = env.do(t, http.MethodPost, "/api/credit/recalculate?ids=4,5", `{}`)
	assert.Equal(t, http.StatusAccepted, out.Status)
	assert.Equal(t, []int64{4, 5}, env.dispatch.ids)

	rec, _ = env.do(t, http.MethodPost, "/api/credit/recalculate?ids=4,x", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit(t *testing.T) {
	env := newEnv()
	env.h.SetRateLimiter(ratelimit.New(1, 0))

	rec, _ := env.do(t, http.MethodPost, "/api/credit/12/calculate", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, out := env.do(t, http.MethodPost, "/api/credit/12/calculate", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "ERR_RATE_LIMITED", errorCode(t, out))

	rec, _ = env.do(t, http.MethodGet, "/api/credit/7", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
