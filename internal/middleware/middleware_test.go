package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	svcerrors "github.com/R3E-Network/keyledger/internal/errors"
	"github.com/R3E-Network/keyledger/pkg/logger"
)

func TestRateLimiter_PerCaller(t *testing.T) {
	rl := NewRateLimiter(1, 2, logger.Discard())
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	require.NoError(t, rl.Allow("alice"))
	require.NoError(t, rl.Allow("alice"))
	err := rl.Allow("alice")
	require.ErrorIs(t, err, svcerrors.ErrRateLimited)

	require.NoError(t, rl.Allow("bob"), "buckets are per caller")

	now = now.Add(time.Second)
	assert.NoError(t, rl.Allow("alice"))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1, logger.Discard())
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	require.NoError(t, rl.Allow("alice"))
	now = now.Add(5 * time.Minute)
	require.NoError(t, rl.Allow("bob"))

	assert.Equal(t, 1, rl.Cleanup(time.Minute))
	assert.Equal(t, 1, rl.Len())
}

func TestRateLimiter_Handler(t *testing.T) {
	rl := NewRateLimiter(1, 1, logger.Discard())
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
}

func TestOriginPolicy(t *testing.T) {
	p := NewOriginPolicy([]string{"https://app.example.com", ".trusted.dev"})

	cases := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://app.example.com", true},
		{"https://chat.trusted.dev", true},
		{"http://keyledger.local", true},
		{"https://evil.example.com", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "http://keyledger.local/ws", nil)
		if tc.origin != "" {
			req.Header.Set("Origin", tc.origin)
		}
		assert.Equal(t, tc.want, p.Allowed(req), tc.origin)
	}

	assert.True(t, NewOriginPolicy([]string{"*"}).Allowed(func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Origin", "https://anything")
		return r
	}()))
}

func TestCORS_Preflight(t *testing.T) {
	p := NewOriginPolicy([]string{"https://app.example.com"})
	h := p.CORS(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("preflight must not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/v1/keys/1/account", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLogging_SetsTraceID(t *testing.T) {
	var seen string
	r := mux.NewRouter()
	r.Use(Logging(logger.Discard()))
	r.HandleFunc("/ping", func(w http.ResponseWriter, req *http.Request) {
		seen = TraceID(req.Context())
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(TraceHeader))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(TraceHeader, "trace-123")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "trace-123", seen)
}
