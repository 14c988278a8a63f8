package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infra-monitor/internal/config"
	"infra-monitor/internal/model"
)

func newTestHealthCollector(retries int) *HealthCollector {
	return NewHealthCollector(&config.HealthCollectorConfig{
		Timeout:    time.Second,
		Retries:    retries,
		RetryDelay: 5 * time.Millisecond,
	}, zerolog.Nop())
}

func healthNode(t *testing.T, server *httptest.Server) *model.Node {
	node := nodeFor(t, server, model.NodeTypeLaravelApp)
	node.Credentials.Health = &model.HealthCredentials{HealthEndpoint: "/api/health", HealthToken: "tok"}
	return node
}

func TestHealthCollector_Healthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "healthy",
			"checks": {"database": true, "cache": false, "queue": {"size": 4, "failed": 1}},
			"response_time_ms": 120
		}`))
	}))
	defer server.Close()

	samples, err := newTestHealthCollector(2).Collect(context.Background(), healthNode(t, server))
	require.NoError(t, err)

	require.Len(t, samples, 7)
	assert.Equal(t, model.MetricResponseTime, samples[0].Type)
	assert.GreaterOrEqual(t, samples[0].Value, 0.0)

	byType := samplesByType(samples)
	assert.Equal(t, 1.0, byType[model.MetricStatus].Value)
	assert.Equal(t, "healthy", byType[model.MetricStatus].Metadata["status_text"])
	assert.NotContains(t, byType[model.MetricStatus].Metadata, "recent_errors")
	assert.Equal(t, 1.0, byType[model.MetricDatabaseConnected].Value)
	assert.Equal(t, 0.0, byType[model.MetricCacheConnected].Value)
	assert.Equal(t, 4.0, byType[model.MetricQueueSize].Value)
	assert.Equal(t, 1.0, byType[model.MetricFailedJobs].Value)
	assert.InDelta(t, 0.12, byType[model.MetricInternalResponseTime].Value, 1e-9)
}

func TestHealthCollector_EmptyArrayChecksStayHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "healthy", "checks": {"database": true, "queue": []}}`))
	}))
	defer server.Close()

	samples, err := newTestHealthCollector(2).Collect(context.Background(), healthNode(t, server))
	require.NoError(t, err)

	byType := samplesByType(samples)
	assert.Equal(t, 1.0, byType[model.MetricStatus].Value)
	assert.Equal(t, "healthy", byType[model.MetricStatus].Metadata["status_text"])
	assert.Equal(t, 1.0, byType[model.MetricDatabaseConnected].Value)
	assert.NotContains(t, byType, model.MetricQueueSize)
	assert.NotContains(t, byType, model.MetricFailedJobs)
	assert.Len(t, samples, 3)
}

func TestHealthCollector_DegradedWithoutChecks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "degraded", "recent_errors": ["queue stalled"]}`))
	}))
	defer server.Close()

	samples, err := newTestHealthCollector(2).Collect(context.Background(), healthNode(t, server))
	require.NoError(t, err)

	require.Len(t, samples, 2)
	status := samples[1]
	assert.Equal(t, 0.5, status.Value)
	assert.Equal(t, `["queue stalled"]`, status.Metadata["recent_errors"])
}

func TestHealthCollector_RecoversAfterRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status": "healthy"}`))
	}))
	defer server.Close()

	samples, err := newTestHealthCollector(2).Collect(context.Background(), healthNode(t, server))
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, 1.0, samplesByType(samples)[model.MetricStatus].Value)
}

func TestHealthCollector_UnreachableYieldsTwoSamples(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	node := healthNode(t, server)
	server.Close()

	samples, err := newTestHealthCollector(2).Collect(context.Background(), node)
	require.NoError(t, err, "unreachability is reported as a metric")

	require.Len(t, samples, 2)
	assert.Equal(t, model.MetricResponseTime, samples[0].Type)

	status := samples[1]
	assert.Equal(t, model.MetricStatus, status.Type)
	assert.Equal(t, 0.0, status.Value)
	assert.Equal(t, "unreachable", status.Metadata["status_text"])
	assert.NotEmpty(t, status.Metadata["error"])
}

func TestHealthCollector_AttemptCount(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	samples, err := newTestHealthCollector(2).Collect(context.Background(), healthNode(t, server))
	require.NoError(t, err)

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "one attempt plus two retries")
	require.Len(t, samples, 2)
	assert.Equal(t, "health endpoint returned HTTP 500", samples[1].Metadata["error"])
}

func TestHealthCollector_ResponseTimeSpansAttempts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestHealthCollector(1)
	base := time.Date(2025, 1, 25, 12, 0, 0, 0, time.UTC)
	ticks := []time.Time{base, base.Add(1500 * time.Millisecond)}
	c.now = func() time.Time {
		next := ticks[0]
		if len(ticks) > 1 {
			ticks = ticks[1:]
		}
		return next
	}

	samples, err := c.Collect(context.Background(), healthNode(t, server))
	require.NoError(t, err)
	assert.InDelta(t, 1.5, samples[0].Value, 1e-9)
}

func TestHealthCollector_TestConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	ok, err := newTestHealthCollector(2).TestConnection(context.Background(), healthNode(t, server))
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestSleepCtx_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, sleepCtx(ctx, time.Hour))
	assert.False(t, sleepCtx(ctx, 0))
	assert.True(t, sleepCtx(context.Background(), time.Millisecond))
}
