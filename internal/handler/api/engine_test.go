package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	models "FinSqueeze/internal/domain/models"
	domrepo "FinSqueeze/internal/domain/repository"
	svccache "FinSqueeze/internal/service/cache"
	"FinSqueeze/internal/service/ratelimit"
	"FinSqueeze/internal/usecase"
	pkgcache "FinSqueeze/pkg/cache"
	"FinSqueeze/pkg/config"
	xhttp "FinSqueeze/pkg/http"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	bars []models.Bar
	err  error
}

func (s stubStore) GetBars(context.Context, string, time.Time, time.Time, domrepo.Timeframe) ([]models.Bar, error) {
	return s.bars, s.err
}

func (s stubStore) GetLatestNBars(_ context.Context, _ string, n int, _ domrepo.Timeframe) ([]models.Bar, error) {
	if s.err != nil {
		return nil, s.err
	}
	if n < len(s.bars) {
		return s.bars[len(s.bars)-n:], nil
	}
	return s.bars, nil
}

func tightBars(n int) []models.Bar {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	for i := range bars {
		c := 50 * (1 + float64(i%5)*0.002)
		bars[i] = models.Bar{Time: t0.AddDate(0, 0, i), Open: c, High: c + 0.1, Low: c - 0.1, Close: c, Volume: 500}
	}
	return bars
}

func newTestServer(store domrepo.BarStore, limiter *ratelimit.Limiter) *echo.Echo {
	memo := svccache.NewAnalysisMemo(pkgcache.NewMemoryCache(pkgcache.WithMemoryCleanup(0)), time.Minute)
	engine := usecase.NewEngineUseCase(usecase.NewBarsUseCase(store), config.Default().Engine, memo, nil, nil)
	agg := usecase.NewAggregateUseCase(engine, nil)

	e := echo.New()
	NewEngineHandler(nil, engine, agg, limiter).RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestConsolidationsEndpoint(t *testing.T) {
	e := newTestServer(stubStore{bars: tightBars(120)}, nil)

	rec := do(e, http.MethodGet, "/api/consolidations?symbol=abc&window=120&ranked=true")
	require.Equal(t, http.StatusOK, rec.Code)

	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "ABC", data["symbol"])
	assert.Equal(t, float64(20), data["min_duration"])
	assert.NotEmpty(t, data["periods"])
	assert.NotNil(t, data["most_recent"])
}

func TestValidationErrors(t *testing.T) {
	e := newTestServer(stubStore{bars: tightBars(120)}, nil)

	rec := do(e, http.MethodGet, "/api/squeeze")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/api/squeeze?symbol=ABC&tf=2d")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/api/squeeze?symbol=ABC&span=later")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInsufficientHistoryIs422(t *testing.T) {
	e := newTestServer(stubStore{bars: tightBars(120)}, nil)

	rec := do(e, http.MethodGet, "/api/backtest?symbol=ABC")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errs := decode(t, rec)["data"].([]interface{})
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_INSUFFICIENT_HISTORY", errs[0].(map[string]interface{})["code"])

	rec = do(e, http.MethodGet, "/api/consolidations?symbol=ABC&window=30&min_duration=100")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDataUnavailableIs503(t *testing.T) {
	store := stubStore{err: &models.DataUnavailableError{Symbol: "ABC", Err: errors.New("timeout")}}
	e := newTestServer(store, nil)

	rec := do(e, http.MethodGet, "/api/indicators?symbol=ABC")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAnalysisEndpointReportsPartialFailures(t *testing.T) {
	e := newTestServer(stubStore{bars: tightBars(120)}, nil)

	rec := do(e, http.MethodGet, "/api/analysis?symbol=ABC&window=120")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "private, max-age=15", rec.Header().Get(echo.HeaderCacheControl))

	data := decode(t, rec)["data"].(map[string]interface{})
	assert.NotEmpty(t, data["id"])
	assert.NotNil(t, data["squeeze"])
	assert.NotNil(t, data["confidence"])
	errs := data["errors"].(map[string]interface{})
	assert.Contains(t, errs, "backtest")
	assert.Contains(t, errs, "quote")
}

func TestConfidenceEndpoint(t *testing.T) {
	e := newTestServer(stubStore{bars: tightBars(120)}, nil)

	rec := do(e, http.MethodGet, "/api/confidence?symbol=ABC&window=120")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]interface{})
	base := data["base"].(map[string]interface{})
	assert.LessOrEqual(t, base["score"].(float64), 95.0)
	assert.NotEmpty(t, base["rating"])
}

func TestInvalidateMemoEndpoint(t *testing.T) {
	e := newTestServer(stubStore{bars: tightBars(120)}, nil)

	require.Equal(t, http.StatusOK, do(e, http.MethodGet, "/api/squeeze?symbol=ABC&window=120").Code)

	rec := do(e, http.MethodDelete, "/api/memo/abc")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "ABC", data["symbol"])
	assert.Equal(t, float64(1), data["invalidated"])
}

func TestRateLimited(t *testing.T) {
	e := newTestServer(stubStore{bars: tightBars(120)}, ratelimit.New(1, 0.001))

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/api/indicators?symbol=ABC").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(e, http.MethodGet, "/api/indicators?symbol=ABC").Code)
}

func TestToAppError(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, toAppError(context.DeadlineExceeded).Status)
	assert.Equal(t, http.StatusInternalServerError, toAppError(errors.New("boom")).Status)

	ih := toAppError(&models.InsufficientHistoryError{Symbol: "X", Window: 10, Required: 20})
	assert.Equal(t, http.StatusUnprocessableEntity, ih.Status)
	assert.Equal(t, 20, ih.Params["required"])

	var appErr *xhttp.AppError
	assert.True(t, errors.As(error(ih), &appErr))
}
