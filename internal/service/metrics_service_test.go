package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceCounters(t *testing.T) {
	m := NewMetricsService()

	m.RecordTransition("document.approved")
	m.RecordTransition("document.approved")
	m.RecordOracleCall(false, 20*time.Millisecond)
	m.RecordDegradedFetch("store")
	m.RecordEventPublish(true)
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/students/:studentId/compliance", http.StatusOK, time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.transitions.WithLabelValues("document.approved")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.oracleCalls.WithLabelValues("error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.degradedFetches.WithLabelValues("store")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.eventsPublished.WithLabelValues("ok")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "compliance_degraded_fetches_total")
	assert.Contains(t, rec.Body.String(), `path="/api/v1/students/:studentId/compliance"`)
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.RecordTransition("document.submitted")
		m.RecordCacheOperation(true, time.Millisecond)
		m.RecordDegradedFetch("catalog")
		m.RecordEventPublish(false)
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
