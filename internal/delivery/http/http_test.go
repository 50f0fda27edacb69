package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"strategy-lab/config"
	"strategy-lab/internal/codec"
	"strategy-lab/internal/dto"
	"strategy-lab/internal/repository"
	"strategy-lab/internal/service"
	"strategy-lab/pkg/cache"
	"strategy-lab/pkg/logger"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleKey = "SM_0.0_1_0.500_-7.0_1_4.5"

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	cfg := &config.Config{
		Storage:     config.Storage{Backend: "file", Path: filepath.Join(t.TempDir(), "exclusions.json")},
		Market:      config.Market{Seed: 1, Days: 30},
		Simulation:  config.Simulation{Workers: 2},
		Catalog:     config.Catalog{Seed: 1, AttemptFactor: 10},
		Exploration: config.Exploration{Mode: "sample", SampleSize: 5, DropoutReasons: []string{"stop-loss"}},
		Scheduler:   config.Scheduler{MaxConcurrency: 1},
	}
	validator := goValidator.New()
	keys := codec.NewCodec(validator)
	c := cache.NewCache(0, 0)
	repo, err := repository.NewRepository(cfg, c, nil, keys, logger.NewNop())
	require.NoError(t, err)

	e := echo.New()
	handler := NewHttpAPIHandler(context.Background(), e, validator, service.NewService(cfg, logger.NewNop(), repo, c, keys), logger.NewNop())
	handler.SetupRoutes()
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestEncodeStrategy(t *testing.T) {
	e := newTestServer(t)

	tests := []struct {
		name string
		body string
		code int
		key  string
	}{
		{
			name: "valid",
			body: `{"buy_rule":"SM","purchase_mode":1,"purchase_quantity":0.5,"stop_loss_threshold":-7,"sell_rule":1,"profit":{"kind":1,"target":4.5}}`,
			code: http.StatusOK,
			key:  sampleKey,
		},
		{
			name: "positive stop loss",
			body: `{"buy_rule":"SM","purchase_mode":1,"purchase_quantity":0.5,"stop_loss_threshold":7,"sell_rule":1,"profit":{"kind":1,"target":4.5}}`,
			code: http.StatusBadRequest,
		},
		{name: "malformed", body: `{"buy_rule":`, code: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := do(t, e, http.MethodPost, "/api/v1/strategies/encode", tt.body)

			assert.Equal(t, tt.code, rec.Code)
			if tt.key != "" {
				data := resp["data"].(map[string]interface{})
				assert.Equal(t, tt.key, data["key"])
				assert.NotEmpty(t, data["description"])
			}
		})
	}
}

func TestGetStrategy(t *testing.T) {
	e := newTestServer(t)

	rec, resp := do(t, e, http.MethodGet, "/api/v1/strategies/"+sampleKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, sampleKey, data["key"])

	rec, _ = do(t, e, http.MethodGet, "/api/v1/strategies/not-a-key", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExclusionEndpoints(t *testing.T) {
	e := newTestServer(t)

	rec, resp := do(t, e, http.MethodPost, "/api/v1/exclusions", `{"key":"`+sampleKey+`","condition":"bear"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, []interface{}{"bear"}, data["excluded_in_market"])

	rec, _ = do(t, e, http.MethodPost, "/api/v1/exclusions", `{"key":"`+sampleKey+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = do(t, e, http.MethodPost, "/api/v1/exclusions", `{"key":"`+sampleKey+`","condition":"crash"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = do(t, e, http.MethodGet, "/api/v1/exclusions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := resp["data"].(map[string]interface{})
	assert.Equal(t, 1.0, stats["total_permanent"])
	assert.Equal(t, 1.0, stats["total_market"])

	rec, _ = do(t, e, http.MethodPost, "/api/v1/exclusions/checkpoint", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExplorationEndpoint(t *testing.T) {
	e := newTestServer(t)

	rec, resp := do(t, e, http.MethodPost, "/api/v1/explorations", `{"sample_size":5,"condition":"bull"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "bull", data["condition"])
	assert.NotEmpty(t, data["run_id"])

	rec, _ = do(t, e, http.MethodPost, "/api/v1/explorations", `{"mode":"grid"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCatalogAndJobs(t *testing.T) {
	e := newTestServer(t)

	rec, resp := do(t, e, http.MethodGet, "/api/v1/catalog", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, 666900.0, data["theoretical_total"])

	rec, _ = do(t, e, http.MethodPost, "/api/v1/jobs/reporting/run", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, e, http.MethodGet, "/api/v1/jobs/executions/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorResponseCodes(t *testing.T) {
	e := echo.New()
	h := &HttpAPIHandler{echo: e, log: logger.NewNop()}

	tests := []struct {
		err  error
		code int
	}{
		{&dto.ValidationError{Reason: "bad"}, http.StatusBadRequest},
		{dto.NewParseError("x", "bad"), http.StatusBadRequest},
		{service.ErrSchedulerBusy, http.StatusConflict},
		{&dto.PersistenceError{Op: "save", Err: context.Canceled}, http.StatusServiceUnavailable},
		{&dto.PersistenceError{Op: "save", Err: assert.AnError}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

		require.NoError(t, h.errorResponse(c, tt.err))
		assert.Equal(t, tt.code, rec.Code, tt.err.Error())
	}
}
