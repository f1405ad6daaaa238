package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.Verification("viewer", OutcomeFailure)
	m.Verification("viewer", OutcomeFailure)
	m.Verification("admin", OutcomeSuccess)
	m.Lockout()
	m.Upload("shared")
	m.Evicted(2, 1)
	m.Swept(5)
	m.ObserveHTTP(http.MethodPost, "/api/download-resume", 401, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.verifications.WithLabelValues("viewer", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues("admin", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lockouts))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.evictions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evictionFailures))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.swept))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/api/download-resume", "401")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Lockout()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), "resumegate_lockouts_total 1"))
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.Verification("viewer", OutcomeSuccess)
	m.Lockout()
	m.Upload("tenant")
	m.Evicted(1, 0)
	m.Swept(1)
	m.ObserveHTTP("GET", "/", 200, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
