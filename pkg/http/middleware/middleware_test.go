package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	applogger "CreditIntel/pkg/logger"
)

func serve(e *echo.Echo, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/x", nil)
	if origin != "" {
		req.Header.Set(echo.HeaderOrigin, origin)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCORSAllowList(t *testing.T) {
	e := echo.New()
	e.Use(CORS(CORSConfig{AllowOrigins: []string{"https://ops.example"}, AllowMethods: []string{"GET", "PUT"}, MaxAge: 600}))
	e.Any("/x", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	rec := serve(e, http.MethodGet, "https://ops.example")
	assert.Equal(t, "https://ops.example", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "GET, PUT", rec.Header().Get(echo.HeaderAccessControlAllowMethods))

	rec = serve(e, http.MethodGet, "https://evil.example")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))

	rec = serve(e, http.MethodOptions, "https://ops.example")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "600", rec.Header().Get(echo.HeaderAccessControlMaxAge))
}

func TestRecoverReturnsEnvelope(t *testing.T) {
	e := echo.New()
	e.Use(Recover(applogger.Nop()))
	e.GET("/x", func(echo.Context) error { panic("boom") })

	rec := serve(e, http.MethodGet, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"status":500,"message":"Internal Server Error"}`, rec.Body.String())
}
