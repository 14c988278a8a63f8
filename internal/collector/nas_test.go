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

	"infra-monitor/internal/client/dsm"
	"infra-monitor/internal/config"
	"infra-monitor/internal/model"
)

// fakeDSM serves the DSM endpoints used by the collector.
type fakeDSM struct {
	loginBody   string
	loginStatus int
	failStorage bool
	logouts     int32
}

func (f *fakeDSM) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		q := r.URL.Query()

		switch r.URL.Path {
		case "/webapi/auth.cgi":
			switch q.Get("method") {
			case "login":
				if f.loginStatus != 0 {
					w.WriteHeader(f.loginStatus)
					return
				}
				w.Write([]byte(f.loginBody))
			case "logout":
				atomic.AddInt32(&f.logouts, 1)
				w.Write([]byte(`{"success": true}`))
			}
		case "/webapi/entry.cgi":
			if q.Get("_sid") != "sid-42" {
				t.Errorf("unexpected sid %q", q.Get("_sid"))
			}
			switch q.Get("api") {
			case "SYNO.Core.System":
				w.Write([]byte(`{"success": true, "data": {"temperature": 41, "uptime": 3600}}`))
			case "SYNO.Core.System.Utilization":
				w.Write([]byte(`{"success": true, "data": {
					"cpu": {"user_load": 20, "system_load": 5},
					"memory": {"real_usage": 63},
					"network": [{"device": "eth0", "rx": 4096, "tx": 2048}, {"device": "eth1", "rx": 1024, "tx": 0}]
				}}`))
			case "SYNO.Storage.CGI.Storage":
				if f.failStorage {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				w.Write([]byte(`{"success": true, "data": {"volumes": [
					{"id": "volume_1", "size": {"used": "250", "total": "1000"}},
					{"size": {"used": "10", "total": "40"}},
					{"id": "volume_3", "size": {"used": "0", "total": "0"}}
				]}}`))
			}
		}
	}
}

func newTestNASCollector() *NASCollector {
	return NewNASCollector(&config.NASCollectorConfig{
		Timeout:       2 * time.Second,
		LogoutTimeout: time.Second,
		APIVersion:    6,
	}, zerolog.Nop())
}

func nasNode(t *testing.T, server *httptest.Server) *model.Node {
	node := nodeFor(t, server, model.NodeTypeSynology)
	node.Credentials.NAS = &model.NASCredentials{Username: "monitor", Password: "pw"}
	return node
}

func TestNASCollector_Collect(t *testing.T) {
	fake := &fakeDSM{loginBody: `{"success": true, "data": {"sid": "sid-42"}}`}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	samples, err := newTestNASCollector().Collect(context.Background(), nasNode(t, server))
	require.NoError(t, err)

	byType := samplesByType(samples)
	assert.Equal(t, 25.0, byType[model.MetricCPU].Value)
	assert.Equal(t, 63.0, byType[model.MetricMemory].Value)
	assert.Equal(t, 5.0, byType[model.MetricNetworkIn].Value)
	assert.Equal(t, 2.0, byType[model.MetricNetworkOut].Value)
	assert.Equal(t, 41.0, byType[model.MetricTemperature].Value)
	assert.Equal(t, 3600.0, byType[model.MetricUptime].Value)

	var disks []model.MetricSample
	for _, s := range samples {
		if s.Type == model.MetricDisk {
			disks = append(disks, s)
		}
	}
	require.Len(t, disks, 2, "zero-sized volume is skipped")
	assert.Equal(t, 25.0, disks[0].Value)
	assert.Equal(t, "volume_1", disks[0].Metadata["volume"])
	assert.Equal(t, "unknown", disks[1].Metadata["volume"])

	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.logouts))
}

func TestNASCollector_PartialReadFailure(t *testing.T) {
	fake := &fakeDSM{
		loginBody:   `{"success": true, "data": {"sid": "sid-42"}}`,
		failStorage: true,
	}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	samples, err := newTestNASCollector().Collect(context.Background(), nasNode(t, server))
	require.NoError(t, err)

	assert.Equal(t, 0, countType(samples, model.MetricDisk))
	assert.Equal(t, 1, countType(samples, model.MetricCPU))
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.logouts), "session released after partial failure")
}

func TestNASCollector_LoginFailures(t *testing.T) {
	tests := []struct {
		name string
		dsm  *fakeDSM
		want ErrorKind
	}{
		{"rejected", &fakeDSM{loginBody: `{"success": false, "error": {"code": 400}}`}, KindAuthFailed},
		{"http error", &fakeDSM{loginStatus: http.StatusBadGateway}, KindRefused},
		{"garbage", &fakeDSM{loginBody: `not json`}, KindAPIError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.dsm.handler(t))
			defer server.Close()

			samples, err := newTestNASCollector().Collect(context.Background(), nasNode(t, server))
			assert.Nil(t, samples)
			assert.Equal(t, tt.want, KindOf(err))
			assert.Equal(t, int32(0), atomic.LoadInt32(&tt.dsm.logouts))
		})
	}
}

func TestNASCollector_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	node := nasNode(t, server)
	server.Close()

	_, err := newTestNASCollector().Collect(context.Background(), node)
	assert.Equal(t, KindRefused, KindOf(err))
}

func TestNASCollector_TestConnection(t *testing.T) {
	fake := &fakeDSM{loginBody: `{"success": true, "data": {"sid": "sid-42"}}`}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	ok, err := newTestNASCollector().TestConnection(context.Background(), nasNode(t, server))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.logouts))
}

func TestDerivations_NilPayloads(t *testing.T) {
	assert.Empty(t, utilizationSamples(nil))
	assert.Empty(t, systemSamples(nil))
	assert.Empty(t, diskSamples(nil))
}

func TestUtilizationSamples_NoUserLoad(t *testing.T) {
	load := dsm.Number(7)
	samples := utilizationSamples(&dsm.Utilization{
		CPU: &dsm.CPUUtilization{SystemLoad: &load},
	})
	assert.Empty(t, samples, "cpu needs user_load")
}
