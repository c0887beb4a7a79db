package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Symbol string `query:"symbol" validate:"required"`
	Window int    `query:"window" default:"100" validate:"gte=20,lte=5000"`
}

func newContext(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestReadAndValidateRequest(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/?symbol=AAPL")
	var req sampleRequest
	require.Nil(t, ReadAndValidateRequest(c, &req))
	assert.Equal(t, "AAPL", req.Symbol)
	assert.Equal(t, 100, req.Window)

	c, _ = newContext(http.MethodGet, "/?window=5")
	req = sampleRequest{}
	errs, ok := ReadAndValidateRequest(c, &req).([]ValidationError)
	require.True(t, ok)
	require.Len(t, errs, 2)
	assert.Equal(t, "ERR_REQUIRED", errs[0].Code)
	assert.Equal(t, "symbol", errs[0].Field)
	assert.Equal(t, "window must be greater than or equal to 20", errs[1].Message)
}

func TestAppErrorResponse(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/")
	wrapped := UnprocessableError("ERR_INSUFFICIENT_HISTORY", "not enough bars").WithError(errors.New("boom"))
	require.NoError(t, AppErrorResponse(c, wrapped))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusUnprocessableEntity, body.Status)
	assert.Contains(t, rec.Body.String(), "ERR_INSUFFICIENT_HISTORY")

	c, rec = newContext(http.MethodGet, "/")
	require.NoError(t, AppErrorResponse(c, errors.New("plain")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestClientBaseURLAndStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		if r.URL.Path == "/v1/bars" {
			assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
			_, _ = w.Write([]byte(`{"count":3}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing\n"))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL+"/"), WithHeader("X-API-Key", "secret"))

	var out struct {
		Count int `json:"count"`
	}
	require.NoError(t, client.Get(context.Background(), "/v1/bars", map[string][]string{"symbol": {"AAPL"}}, &out))
	assert.Equal(t, 3, out.Count)

	err := client.Get(context.Background(), "v1/nope", nil, &out)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, "missing", se.Body)
}

func TestHealthz(t *testing.T) {
	s := NewServer(nil, WithHealthCheck("redis", func(echo.Context) error { return errors.New("down") }))
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "down"))
}
