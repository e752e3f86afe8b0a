package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	require.NotPanics(t, func() {
		Init("v1.0.0", "abc123", "2026-01-30")
		Init("v1.0.1", "def456", "2026-02-01")
	})
	assert.Equal(t, float64(1), testutil.ToFloat64(AppInfo.WithLabelValues("v1.0.1", "def456", "2026-02-01")))
}

func TestHTTPMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/participants/{id}", "200"))

	rec := httptest.NewRecorder()
	HTTPMiddleware(handler).ServeHTTP(rec, httptest.NewRequest("GET", "/participants/42", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/participants/{id}", "200"))
	assert.Equal(t, before+1, after)
}

func TestHTTPMiddlewareStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"OK", http.StatusOK},
		{"Not Found", http.StatusNotFound},
		{"Forbidden", http.StatusForbidden},
		{"Internal Server Error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			})

			rec := httptest.NewRecorder()
			HTTPMiddleware(handler).ServeHTTP(rec, httptest.NewRequest("GET", "/events", nil))

			assert.Equal(t, tt.statusCode, rec.Code)
		})
	}
}

func TestDBCollector_NilPool(t *testing.T) {
	collector := NewDBCollector(nil)
	assert.Equal(t, 0, testutil.CollectAndCount(collector))
}

func TestRecordQuery(t *testing.T) {
	RecordQuery("test_select", time.Now(), nil)
	assert.NotZero(t, testutil.CollectAndCount(DBQueryDuration))

	before := testutil.ToFloat64(DBErrors.WithLabelValues("test_failed", "canceled"))
	RecordQuery("test_failed", time.Now(), context.Canceled)
	assert.Equal(t, before+1, testutil.ToFloat64(DBErrors.WithLabelValues("test_failed", "canceled")))

	RecordQuery("test_missing", time.Now(), pgx.ErrNoRows)
	assert.Equal(t, float64(0), testutil.ToFloat64(DBErrors.WithLabelValues("test_missing", "query_error")))
}

func TestResponseWriterStatusCode(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	_, _ = rw.Write([]byte("test"))
	assert.Equal(t, http.StatusOK, rw.statusCode)
}

func TestResponseWriterBytesWritten(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	content := []byte("Hello, World!")
	_, _ = rw.Write(content)
	assert.Equal(t, len(content), rw.bytesWritten)
}
