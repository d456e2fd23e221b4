package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-records/pkg/errors"
)

func TestMetricsServiceRecordsOutcomes(t *testing.T) {
	m := NewMetricsService()

	m.ObserveRecordOperation("delete", "course", time.Millisecond, nil)
	m.ObserveRecordOperation("delete", "course", time.Millisecond, appErrors.NotFound("course", "x"))
	m.ObserveRecordOperation("create", "student", time.Millisecond, errors.New("boom"))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.recordOps.WithLabelValues("delete", "course", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.recordOps.WithLabelValues("delete", "course", "not_found")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.recordOps.WithLabelValues("create", "student", "internal_error")))

	snap := m.Snapshot()
	assert.Equal(t, uint64(3), snap.RecordOperations)
	assert.Equal(t, uint64(2), snap.RecordFailures)
}

func TestMetricsServiceCacheRatioAndHandler(t *testing.T) {
	m := NewMetricsService()
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.ObserveDBQuery("select_students", time.Millisecond)
	m.ObserveTransfer("export", "table:csv", 128)

	snap := m.Snapshot()
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 0.0001)
	assert.Equal(t, uint64(1), snap.DBQueryCount)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "records_transfer_bytes_total")
}

func TestMetricsServiceNilIsSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveRecordOperation("create", "student", time.Millisecond, nil)
	m.ObserveTransfer("export", "csv", 1)
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())
}
