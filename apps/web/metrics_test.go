package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendOutcome(t *testing.T) {
	tests := []struct {
		status int
		err    error
		want   string
	}{
		{0, errors.New("dial tcp: refused"), "transport_error"},
		{502, errors.New("bad gateway"), "server_error"},
		{404, errors.New("not found"), "client_error"},
		{200, errors.New("decode"), "decode_error"},
		{200, nil, "ok"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backendOutcome(tt.status, tt.err), "%d %v", tt.status, tt.err)
	}
}

func TestMetricsEndpointExposesRequestsAndBackendCalls(t *testing.T) {
	ta := newTestApp(t)
	ta.backend.respond("GET /api/location/districts", http.StatusOK, `[]`)

	rec := ta.serve(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ta.serve(httptest.NewRequest(http.MethodGet, "/api/location/districts", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ta.serve(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `sambodhan_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
	assert.Contains(t, body, `sambodhan_backend_calls_total{method="GET",outcome="ok",route="/location/districts"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestRequestIDMiddleware(t *testing.T) {
	ta := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec := ta.serve(req)
	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))

	rec = ta.serve(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Len(t, rec.Header().Get(requestIDHeader), 36)
}
