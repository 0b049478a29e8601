package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	domain "github.com/bryanwahyu/horusec-scan/internal/domain/scans"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAPIKeyAuth(t *testing.T) {
	h := APIKeyAuth([]string{"k1", "k2"})(okHandler)

	tests := []struct {
		name   string
		path   string
		auth   string
		status int
	}{
		{"health is open", "/health", "", http.StatusOK},
		{"missing header", "/scan", "", http.StatusUnauthorized},
		{"bearer", "/scan", "Bearer k2", http.StatusOK},
		{"bare key", "/v1/scans", "k1", http.StatusOK},
		{"wrong key", "/scan", "Bearer nope", http.StatusUnauthorized},
		{"empty bearer", "/scan", "Bearer ", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.auth != "" {
				header.Set("Authorization", tt.auth)
			}
			assert.Equal(t, tt.status, serve(h, http.MethodPost, tt.path, header).Code)
		})
	}
}

func TestAPIKeyAuthRejectionUsesEnvelope(t *testing.T) {
	h := APIKeyAuth([]string{"k1"})(okHandler)
	rec := serve(h, http.MethodPost, "/scan", http.Header{"Authorization": {"Bearer nope"}})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"success":false,"error":"invalid API key"}`, rec.Body.String())
}

func TestAPIKeyAuthDisabled(t *testing.T) {
	h := APIKeyAuth(nil)(okHandler)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/scan", nil).Code)
}

func TestRateLimit(t *testing.T) {
	h := RateLimitMiddleware(0.001, 2)(okHandler)

	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/scan", nil).Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/scan", nil).Code)
	rec := serve(h, http.MethodPost, "/scan", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"success":false,"error":"rate limit exceeded, please try again later"}`, rec.Body.String())

	// health never limited
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/health", nil).Code)
}

func TestRateLimitDisabled(t *testing.T) {
	h := RateLimitMiddleware(0, 0)(okHandler)
	for i := 0; i < 20; i++ {
		require.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/scan", nil).Code)
	}
}

func TestRateLimiterPrune(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.Allow("a")
	rl.Allow("b")

	now = now.Add(idleBucketTTL + time.Second)
	rl.Allow("b")
	assert.Equal(t, 1, rl.Prune())
	assert.Len(t, rl.buckets, 1)
}

func TestLiveness(t *testing.T) {
	rec := serve(http.HandlerFunc(LivenessHandler), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestReadiness(t *testing.T) {
	ok := CheckFunc(func(context.Context) error { return nil })
	bad := CheckFunc(func(context.Context) error { return errors.New("connection refused") })

	rec := serve(ReadinessHandler(map[string]HealthChecker{"database": ok}), http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(ReadinessHandler(map[string]HealthChecker{"database": ok, "minio": bad}), http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Checks["minio"].Status)
	assert.Equal(t, "connection refused", body.Checks["minio"].Message)
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	serve(h, http.MethodGet, "/ok", nil)
	serve(h, http.MethodGet, "/fail", nil)

	m.ScanStarted()
	m.ScanFinished("")
	m.ScanStarted()
	m.ScanFinished(domain.KindCloneFailed)

	rec := serve(http.HandlerFunc(m.Handler), http.MethodGet, "/metrics", nil)
	var snap struct {
		RequestsTotal   uint64            `json:"requests_total"`
		RequestsFailed  uint64            `json:"requests_failed"`
		ScansTotal      uint64            `json:"scans_total"`
		ScansRunning    int64             `json:"scans_running"`
		ScansFailed     uint64            `json:"scans_failed"`
		ScansFailedKind map[string]uint64 `json:"scans_failed_by_kind"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, uint64(2), snap.RequestsTotal)
	assert.Equal(t, uint64(1), snap.RequestsFailed)
	assert.Equal(t, uint64(2), snap.ScansTotal)
	assert.Zero(t, snap.ScansRunning)
	assert.Equal(t, uint64(1), snap.ScansFailed)
	assert.Equal(t, uint64(1), snap.ScansFailedKind["clone_failed"])
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
	}))
	serve(h, http.MethodGet, "/x", nil)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "/x", fields["path"])
	assert.EqualValues(t, http.StatusTeapot, fields["status"])
	assert.EqualValues(t, 2, fields["bytes"])
}

func TestValidators(t *testing.T) {
	assert.NoError(t, ValidateScanID("6f1e63d0-a8ea-48df-ab8b-92334cec7626"))
	assert.Error(t, ValidateScanID(""))
	assert.Error(t, ValidateScanID("../etc/passwd"))

	assert.Equal(t, 20, ValidateLimit(0))
	assert.Equal(t, 100, ValidateLimit(1000))
	assert.Equal(t, 7, ValidateDays(-1))
	assert.Equal(t, 365, ValidateDays(9999))
	assert.Equal(t, "abc", SanitizeString(" a\x00b\x01c "))
}
