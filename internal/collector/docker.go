package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	containertypes "github.com/docker/docker/api/types/container"
	systemtypes "github.com/docker/docker/api/types/system"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog"

	"infra-monitor/internal/config"
	"infra-monitor/internal/model"
)

// dockerClient is the subset of the Docker Engine API used by the collector.
type dockerClient interface {
	Info(ctx context.Context) (systemtypes.Info, error)
	ContainerList(ctx context.Context, opts containertypes.ListOptions) ([]containertypes.Summary, error)
	ContainerStatsOneShot(ctx context.Context, id string) (containertypes.StatsResponseReader, error)
	ContainerInspect(ctx context.Context, id string) (containertypes.InspectResponse, error)
	Close() error
}

// DockerCollector collects container metrics from a Docker Engine endpoint.
type DockerCollector struct {
	config    *config.DockerCollectorConfig
	newClient func(host string, timeout time.Duration) (dockerClient, error)
	logger    zerolog.Logger
}

// NewDockerCollector creates a new DockerCollector instance.
func NewDockerCollector(cfg *config.DockerCollectorConfig, logger zerolog.Logger) *DockerCollector {
	return &DockerCollector{
		config:    cfg,
		newClient: newEngineClient,
		logger:    logger.With().Str("component", "docker-collector").Logger(),
	}
}

func newEngineClient(host string, timeout time.Duration) (dockerClient, error) {
	return client.NewClientWithOpts(
		client.WithHost(host),
		client.WithTimeout(timeout),
		client.WithAPIVersionNegotiation(),
	)
}

// Supports implements Collector.
func (c *DockerCollector) Supports() []model.NodeType {
	return []model.NodeType{model.NodeTypeDocker}
}

// TestConnection queries the daemon info endpoint.
func (c *DockerCollector) TestConnection(ctx context.Context, node *model.Node) (bool, error) {
	cli, err := c.connect(node)
	if err != nil {
		return false, err
	}
	defer cli.Close()

	if _, err := cli.Info(ctx); err != nil {
		c.logger.Warn().Err(err).Str("node", node.Name).Msg("Docker connection test failed")
		return false, c.classify(node, err)
	}
	return true, nil
}

// Collect lists every container and emits status, cpu, memory and restart
// samples. A failed list is a connection error; a failed stats or inspect
// call only skips that container's derived samples.
func (c *DockerCollector) Collect(ctx context.Context, node *model.Node) ([]model.MetricSample, error) {
	cli, err := c.connect(node)
	if err != nil {
		return nil, err
	}
	defer cli.Close()

	containers, err := cli.ContainerList(ctx, containertypes.ListOptions{All: true})
	if err != nil {
		c.logger.Error().Err(err).Str("node", node.Name).Msg("failed to list containers")
		return nil, c.classify(node, err)
	}

	var samples []model.MetricSample
	for _, summary := range containers {
		id := shortID(summary.ID)
		name := containerName(summary.Names)
		state := string(summary.State)
		if state == "" {
			state = "unknown"
		}

		running := 0.0
		if state == "running" {
			running = 1
		}
		samples = append(samples, model.NewSample(model.MetricContainerStatus, running).
			WithMeta("container_id", id).
			WithMeta("container_name", name).
			WithMeta("state", state))

		if state == "running" {
			stats, err := c.stats(ctx, cli, summary.ID)
			if err != nil {
				c.logger.Debug().Err(err).Str("container_id", id).Msg("failed to get container stats")
			} else {
				if cpu, ok := cpuPercent(stats); ok {
					samples = append(samples, containerSample(model.MetricContainerCPU, cpu, id, name))
				}
				if mem, ok := memoryPercent(stats); ok {
					samples = append(samples, containerSample(model.MetricContainerMemory, mem, id, name))
				}
			}
		}

		inspect, err := cli.ContainerInspect(ctx, summary.ID)
		if err != nil {
			c.logger.Debug().Err(err).Str("container_id", id).Msg("failed to inspect container")
			continue
		}
		if inspect.ContainerJSONBase != nil {
			samples = append(samples, containerSample(model.MetricContainerRestarts, float64(inspect.RestartCount), id, name))
		}
	}

	c.logger.Debug().
		Str("node", node.Name).
		Int("containers", len(containers)).
		Int("samples", len(samples)).
		Msg("Docker collection finished")
	return samples, nil
}

func (c *DockerCollector) connect(node *model.Node) (dockerClient, error) {
	timeout := c.config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	host := fmt.Sprintf("tcp://%s:%d", node.Host, node.PortOr(2375))
	cli, err := c.newClient(host, timeout)
	if err != nil {
		return nil, newConnError(node, KindAPIError, err)
	}
	return cli, nil
}

func (c *DockerCollector) stats(ctx context.Context, cli dockerClient, id string) (containertypes.StatsResponse, error) {
	var stats containertypes.StatsResponse

	resp, err := cli.ContainerStatsOneShot(ctx, id)
	if err != nil {
		return stats, fmt.Errorf("stats: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return stats, fmt.Errorf("decode stats: %w", err)
	}
	return stats, nil
}

// classify maps a daemon call failure to timeout, refused or api_error.
func (c *DockerCollector) classify(node *model.Node, err error) error {
	if kind, ok := classifyTransportError(err); ok {
		return newConnError(node, kind, err)
	}
	if client.IsErrConnectionFailed(err) {
		return newConnError(node, KindRefused, err)
	}
	return newConnError(node, KindAPIError, err)
}

// cpuPercent computes (Δcpu / Δsystem) × online cpus × 100. Both deltas
// must be positive.
func cpuPercent(stats containertypes.StatsResponse) (float64, bool) {
	cpu := float64(stats.CPUStats.CPUUsage.TotalUsage) - float64(stats.PreCPUStats.CPUUsage.TotalUsage)
	system := float64(stats.CPUStats.SystemUsage) - float64(stats.PreCPUStats.SystemUsage)
	if cpu <= 0 || system <= 0 {
		return 0, false
	}

	cpus := int(stats.CPUStats.OnlineCPUs)
	if cpus == 0 {
		cpus = len(stats.CPUStats.CPUUsage.PercpuUsage)
	}
	if cpus == 0 {
		cpus = 1
	}

	return cpu / system * float64(cpus) * 100, true
}

// memoryPercent computes usage / limit × 100 when a limit is reported.
func memoryPercent(stats containertypes.StatsResponse) (float64, bool) {
	if stats.MemoryStats.Limit == 0 {
		return 0, false
	}
	return float64(stats.MemoryStats.Usage) / float64(stats.MemoryStats.Limit) * 100, true
}

func containerSample(metricType string, value float64, id, name string) model.MetricSample {
	return model.NewSample(metricType, value).
		WithMeta("container_id", id).
		WithMeta("container_name", name)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func containerName(names []string) string {
	if len(names) == 0 {
		return "unknown"
	}
	return strings.TrimLeft(names[0], "/")
}
