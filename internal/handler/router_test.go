package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouter_UnknownRoute(t *testing.T) {
	r := newTestRouter(t, new(MockOTPService), new(MockAuthService), nil)

	w := doJSON(r, http.MethodGet, "/api/nope", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	body := decode(t, w)
	assert.Contains(t, body["detail"], "/api/nope")
	assert.NotEmpty(t, body["request_id"])
}

func TestRouter_OperationalEndpoints(t *testing.T) {
	r := newTestRouter(t, new(MockOTPService), new(MockAuthService), nil)

	for _, path := range []string{"/health", "/health/ready", "/metrics"} {
		w := doJSON(r, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouter_SecurityHeaders(t *testing.T) {
	r := newTestRouter(t, new(MockOTPService), new(MockAuthService), nil)

	w := doJSON(r, http.MethodGet, "/health", nil)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
