package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"digitalMenu/internal/middleware"
	"digitalMenu/pkg/config"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestTableOrderLimiterIsPerTable(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.POST("/orders", func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	}, TableOrderLimiter(config.RateLimitConfig{TableOrdersPerSecond: 0.001, TableOrdersBurst: 1, ExpiresIn: time.Minute}))

	post := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/orders", nil)
		req.Header.Set(middleware.HeaderTableToken, token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, post("table-a"))
	assert.Equal(t, http.StatusTooManyRequests, post("table-a"))
	assert.Equal(t, http.StatusCreated, post("table-b"))
}
