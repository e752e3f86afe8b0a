package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outreach-portal/server/internal/metrics"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	Healthz().ServeHTTP(rec, getRequest("/healthz"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name   string
		db     Pinger
		status int
		body   string
		gauge  float64
	}{
		{"healthy", pingFunc(func(context.Context) error { return nil }), http.StatusOK, "healthy", 1},
		{"database down", pingFunc(func(context.Context) error { return errors.New("refused") }), http.StatusServiceUnavailable, "unhealthy", 0},
		{"no pool", nil, http.StatusServiceUnavailable, "unhealthy", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthChecker(tt.db, "v1.2.3").Readyz().ServeHTTP(rec, getRequest("/readyz"))

			require.Equal(t, tt.status, rec.Code)
			var body HealthCheck
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.body, body.Status)
			assert.Equal(t, "v1.2.3", body.Version)
			assert.Contains(t, body.Checks, "database")
			assert.Equal(t, tt.gauge, testutil.ToFloat64(metrics.HealthCheckStatus.WithLabelValues("database")))
		})
	}
}

func TestReadyz_ShuttingDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	NewHealthChecker(pingFunc(func(context.Context) error { return nil }), "dev").Readyz().ServeHTTP(rec, getRequest("/readyz").WithContext(ctx))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "shutting_down")
}
