package collector

import (
	"context"
	"errors"
	"net"
	"syscall"
	"testing"
	"time"

	containertypes "github.com/docker/docker/api/types/container"
	systemtypes "github.com/docker/docker/api/types/system"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infra-monitor/internal/config"
	"infra-monitor/internal/model"
)

func newTestDockerCollector(fake *fakeDockerClient) (*DockerCollector, *string) {
	var gotHost string
	c := NewDockerCollector(&config.DockerCollectorConfig{Timeout: time.Second}, zerolog.Nop())
	c.newClient = func(host string, timeout time.Duration) (dockerClient, error) {
		gotHost = host
		return fake, nil
	}
	return c, &gotHost
}

func dockerNode() *model.Node {
	return &model.Node{ID: 7, Name: "docker-1", Type: model.NodeTypeDocker, Host: "10.0.0.7", Active: true}
}

// runningStats reports Δcpu=400, Δsystem=1000 over 2 online cpus, i.e. 80%.
func runningStats() containertypes.StatsResponse {
	return containertypes.StatsResponse{
		CPUStats: containertypes.CPUStats{
			CPUUsage:    containertypes.CPUUsage{TotalUsage: 1400},
			SystemUsage: 3000,
			OnlineCPUs:  2,
		},
		PreCPUStats: containertypes.CPUStats{
			CPUUsage:    containertypes.CPUUsage{TotalUsage: 1000},
			SystemUsage: 2000,
		},
		MemoryStats: containertypes.MemoryStats{
			Usage: 256,
			Limit: 1024,
		},
	}
}

// =============================================================================
// Collect Tests
// =============================================================================

func TestDockerCollector_Collect(t *testing.T) {
	fake := &fakeDockerClient{
		containerListFunc: func(ctx context.Context, opts containertypes.ListOptions) ([]containertypes.Summary, error) {
			assert.True(t, opts.All, "list must include stopped containers")
			return []containertypes.Summary{
				{ID: "0123456789abcdef0123", Names: []string{"/web"}, State: "running"},
				{ID: "fedcba9876543210fedc", Names: []string{"/worker"}, State: "exited"},
			}, nil
		},
		containerStatsFunc: func(ctx context.Context, id string) (containertypes.StatsResponseReader, error) {
			require.Equal(t, "0123456789abcdef0123", id, "stats only for running containers")
			return statsReader(t, runningStats()), nil
		},
		containerInspectFunc: func(ctx context.Context, id string) (containertypes.InspectResponse, error) {
			if id == "0123456789abcdef0123" {
				return inspectWithRestarts(3), nil
			}
			return inspectWithRestarts(0), nil
		},
	}
	c, host := newTestDockerCollector(fake)

	samples, err := c.Collect(context.Background(), dockerNode())
	require.NoError(t, err)

	assert.Equal(t, "tcp://10.0.0.7:2375", *host)
	assert.True(t, fake.closed)
	assert.Len(t, samples, 6)
	assert.Equal(t, 2, countType(samples, model.MetricContainerStatus))
	assert.Equal(t, 2, countType(samples, model.MetricContainerRestarts))

	web := samples[0]
	assert.Equal(t, model.MetricContainerStatus, web.Type)
	assert.Equal(t, 1.0, web.Value)
	assert.Equal(t, map[string]string{
		"container_id":   "0123456789ab",
		"container_name": "web",
		"state":          "running",
	}, web.Metadata)

	cpu := samples[1]
	assert.Equal(t, model.MetricContainerCPU, cpu.Type)
	assert.InDelta(t, 80.0, cpu.Value, 1e-9)
	assert.Equal(t, "web", cpu.Metadata["container_name"])

	mem := samples[2]
	assert.Equal(t, model.MetricContainerMemory, mem.Type)
	assert.InDelta(t, 25.0, mem.Value, 1e-9)

	restarts := samples[3]
	assert.Equal(t, model.MetricContainerRestarts, restarts.Type)
	assert.Equal(t, 3.0, restarts.Value)

	worker := samples[4]
	assert.Equal(t, 0.0, worker.Value)
	assert.Equal(t, "exited", worker.Metadata["state"])
	assert.Equal(t, "worker", worker.Metadata["container_name"])
}

func TestDockerCollector_StatsAndInspectFailuresSkipped(t *testing.T) {
	fake := &fakeDockerClient{
		containerListFunc: func(context.Context, containertypes.ListOptions) ([]containertypes.Summary, error) {
			return []containertypes.Summary{
				{ID: "aaaaaaaaaaaaaaaa", Names: []string{"/a"}, State: "running"},
				{ID: "bbbbbbbbbbbbbbbb", Names: []string{"/b"}, State: "running"},
			}, nil
		},
		containerStatsFunc: func(_ context.Context, id string) (containertypes.StatsResponseReader, error) {
			if id == "aaaaaaaaaaaaaaaa" {
				return containertypes.StatsResponseReader{}, errors.New("stats failed")
			}
			return statsReader(t, runningStats()), nil
		},
		containerInspectFunc: func(_ context.Context, id string) (containertypes.InspectResponse, error) {
			if id == "bbbbbbbbbbbbbbbb" {
				return containertypes.InspectResponse{}, errors.New("inspect failed")
			}
			return inspectWithRestarts(1), nil
		},
	}
	c, _ := newTestDockerCollector(fake)

	samples, err := c.Collect(context.Background(), dockerNode())
	require.NoError(t, err)

	// a: status + restarts; b: status + cpu + memory
	assert.Len(t, samples, 5)
	assert.Equal(t, 1, countType(samples, model.MetricContainerCPU))
	assert.Equal(t, 1, countType(samples, model.MetricContainerRestarts))
}

func TestDockerCollector_ListFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"refused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, KindRefused},
		{"timeout", context.DeadlineExceeded, KindTimeout},
		{"daemon error", errors.New("Error response from daemon: server error"), KindAPIError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeDockerClient{
				containerListFunc: func(context.Context, containertypes.ListOptions) ([]containertypes.Summary, error) {
					return nil, tt.err
				},
			}
			c, _ := newTestDockerCollector(fake)

			samples, err := c.Collect(context.Background(), dockerNode())
			assert.Nil(t, samples)

			var connErr *ConnectionError
			require.ErrorAs(t, err, &connErr)
			assert.Equal(t, tt.want, connErr.Kind)
			assert.Equal(t, model.NodeTypeDocker, connErr.NodeType)
			assert.Equal(t, "10.0.0.7", connErr.Host)
		})
	}
}

func TestDockerCollector_TestConnection(t *testing.T) {
	fake := &fakeDockerClient{
		infoFunc: func(context.Context) (systemtypes.Info, error) {
			return systemtypes.Info{ServerVersion: "28.5.2"}, nil
		},
	}
	c, host := newTestDockerCollector(fake)

	node := dockerNode()
	node.Port = 2376
	ok, err := c.TestConnection(context.Background(), node)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tcp://10.0.0.7:2376", *host)
}

// =============================================================================
// Derivation Tests
// =============================================================================

func TestCPUPercent(t *testing.T) {
	stats := runningStats()
	value, ok := cpuPercent(stats)
	require.True(t, ok)
	assert.InDelta(t, 80.0, value, 1e-9)

	// online_cpus missing falls back to the per-cpu list
	stats.CPUStats.OnlineCPUs = 0
	stats.CPUStats.CPUUsage.PercpuUsage = []uint64{1, 2, 3, 4}
	value, ok = cpuPercent(stats)
	require.True(t, ok)
	assert.InDelta(t, 160.0, value, 1e-9)

	// neither reported: one cpu
	stats.CPUStats.CPUUsage.PercpuUsage = nil
	value, ok = cpuPercent(stats)
	require.True(t, ok)
	assert.InDelta(t, 40.0, value, 1e-9)

	// no cpu progress
	stats = runningStats()
	stats.CPUStats.CPUUsage.TotalUsage = stats.PreCPUStats.CPUUsage.TotalUsage
	_, ok = cpuPercent(stats)
	assert.False(t, ok)

	// system counter went backwards
	stats = runningStats()
	stats.CPUStats.SystemUsage = 1000
	_, ok = cpuPercent(stats)
	assert.False(t, ok)
}

func TestMemoryPercent(t *testing.T) {
	stats := runningStats()
	value, ok := memoryPercent(stats)
	require.True(t, ok)
	assert.InDelta(t, 25.0, value, 1e-9)

	stats.MemoryStats.Limit = 0
	_, ok = memoryPercent(stats)
	assert.False(t, ok)
}

func TestContainerName(t *testing.T) {
	assert.Equal(t, "web", containerName([]string{"/web", "/alias"}))
	assert.Equal(t, "unknown", containerName(nil))
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "0123456789ab", shortID("0123456789abcdef"))
}
