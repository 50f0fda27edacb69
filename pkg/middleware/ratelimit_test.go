package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"strategy-lab/config"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiterDeniesBurstOverflow(t *testing.T) {
	e := echo.New()
	e.Use(NewRateLimiterMiddleware(config.API{RateLimit: 0.001, RateBurst: 2, RateExpiresIn: time.Minute}))
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
