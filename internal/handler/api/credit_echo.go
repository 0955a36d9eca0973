package api

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"CreditIntel/internal/domain/models"
	"CreditIntel/internal/service/metrics"
	"CreditIntel/internal/service/ratelimit"
	xhttp "CreditIntel/pkg/http"
	xlogger "CreditIntel/pkg/logger"
	xutil "CreditIntel/pkg/util"
)

// CreditService is the calculation surface used by the HTTP layer.
type CreditService interface {
	Calculate(ctx context.Context, clientID int64, custom *models.SignalWeights) (models.CreditResult, error)
	Preview(ctx context.Context, clientID int64, custom models.SignalWeights) (models.CreditResult, error)
	CurrentSnapshot(ctx context.Context, clientID int64) (models.CreditSnapshot, error)
	History(ctx context.Context, clientID int64, limit int) ([]models.CreditSnapshot, error)
}

type SettingsService interface {
	Settings(ctx context.Context) (models.CreditSettings, error)
	SaveWeights(ctx context.Context, w models.SignalWeights, updatedBy string) (models.CreditSettings, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, ids []int64, reason string, wait bool) (models.RecalcReport, error)
}

// CreditEchoHandler exposes the credit engine over Echo.
type CreditEchoHandler struct {
	logger   *xlogger.Logger
	credit   CreditService
	settings SettingsService
	dispatch Dispatcher
	rl       *ratelimit.Limiter
}

func NewCreditEchoHandler(logger *xlogger.Logger, credit CreditService, settings SettingsService, dispatch Dispatcher) *CreditEchoHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &CreditEchoHandler{logger: logger, credit: credit, settings: settings, dispatch: dispatch}
}

// SetRateLimiter limits calculate, preview and recalculate per caller IP.
func (h *CreditEchoHandler) SetRateLimiter(rl *ratelimit.Limiter) { h.rl = rl }

func (h *CreditEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/credit")
	g.GET("/settings", h.GetSettings)
	g.PUT("/settings/weights", h.SaveWeights)
	g.POST("/recalculate", h.Recalculate)
	g.GET("/:clientId", h.Snapshot)
	g.GET("/:clientId/history", h.History)
	g.POST("/:clientId/calculate", h.Calculate)
	g.POST("/:clientId/preview", h.Preview)
}

func (h *CreditEchoHandler) Calculate(c echo.Context) error {
	const endpoint = "calculate"
	defer observe(endpoint, time.Now())
	if !h.allow(c, endpoint) {
		return h.fail(c, endpoint, xhttp.TooManyRequestsError("too many calculation requests"))
	}
	req := &models.CalculateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.credit.Calculate(c.Request().Context(), req.ClientID, req.Weights)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *CreditEchoHandler) Preview(c echo.Context) error {
	const endpoint = "preview"
	defer observe(endpoint, time.Now())
	if !h.allow(c, endpoint) {
		return h.fail(c, endpoint, xhttp.TooManyRequestsError("too many preview requests"))
	}
	req := &models.PreviewRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.credit.Preview(c.Request().Context(), req.ClientID, *req.Weights)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *CreditEchoHandler) Snapshot(c echo.Context) error {
	const endpoint = "snapshot"
	defer observe(endpoint, time.Now())
	req := &models.SnapshotRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	snap, err := h.credit.CurrentSnapshot(c.Request().Context(), req.ClientID)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, snap)
}

func (h *CreditEchoHandler) History(c echo.Context) error {
	const endpoint = "history"
	defer observe(endpoint, time.Now())
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	list, err := h.credit.History(c.Request().Context(), req.ClientID, req.Limit)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return xhttp.ListResponse(c, list, int64(len(list)))
}

func (h *CreditEchoHandler) GetSettings(c echo.Context) error {
	const endpoint = "settings"
	defer observe(endpoint, time.Now())

	set, err := h.settings.Settings(c.Request().Context())
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return xhttp.SuccessResponse(c, set)
}

func (h *CreditEchoHandler) SaveWeights(c echo.Context) error {
	const endpoint = "save_weights"
	defer observe(endpoint, time.Now())
	req := &models.SaveWeightsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	set, err := h.settings.SaveWeights(c.Request().Context(), *req.Weights, req.UpdatedBy)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return xhttp.SuccessResponse(c, set)
}

// Recalculate queues per-client jobs; ?wait=true runs the batch inline and
// returns its report. Client ids come from the body or ?ids=1,2,3.
func (h *CreditEchoHandler) Recalculate(c echo.Context) error {
	const endpoint = "recalculate"
	defer observe(endpoint, time.Now())
	if !h.allow(c, endpoint) {
		return h.fail(c, endpoint, xhttp.TooManyRequestsError("too many recalculation requests"))
	}
	req := &models.RecalculateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	wait := false
	if v := c.QueryParam("wait"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("wait must be a boolean"))
		}
		wait = b
	}
	if v := c.QueryParam("ids"); v != "" && len(req.ClientIDs) == 0 {
		ids, err := xutil.ParseIDList(v)
		if err != nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		}
		req.ClientIDs = ids
	}

	report, err := h.dispatch.Dispatch(c.Request().Context(), req.ClientIDs, req.Reason, wait)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	if report.Queued {
		return xhttp.AcceptedResponse(c, report)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *CreditEchoHandler) allow(c echo.Context, endpoint string) bool {
	if h.rl == nil || h.rl.Allow(c.RealIP()+":"+endpoint) {
		return true
	}
	metrics.RateLimited.WithLabelValues(endpoint).Inc()
	h.logger.Warn("rate limited", xlogger.String("endpoint", endpoint), xlogger.String("remote", c.RealIP()))
	return false
}

func (h *CreditEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := toAppError(err)
	metrics.EndpointErrors.WithLabelValues(endpoint, appErr.Code).Inc()
	if appErr.Status >= 500 {
		h.logger.Error(endpoint+" failed", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func observe(endpoint string, start time.Time) {
	metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
