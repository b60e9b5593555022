package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleLiveness(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	c := srv.echo.NewContext(req, rec)

	require.NoError(t, srv.handleLiveness(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
}

func TestHandleReadiness_AllChecksPass(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.healthChecks = []HealthCheck{
		{Name: "always-ok", Check: func(context.Context) error { return nil }},
	}

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	c := srv.echo.NewContext(req, rec)

	require.NoError(t, srv.handleReadiness(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleReadiness_FailingCheck(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.healthChecks = []HealthCheck{
		{Name: "redis", Check: func(context.Context) error { return fmt.Errorf("connection refused") }},
	}

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	c := srv.echo.NewContext(req, rec)

	require.NoError(t, srv.handleReadiness(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "redis", body["failed_check"])
}
