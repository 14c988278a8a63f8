package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"infra-monitor/internal/model"
)

const defaultScrapeTimeout = 10 * time.Second

// NodeSource is the read side of the metric store used by the exposition.
type NodeSource interface {
	ActiveNodes(ctx context.Context, filter model.NodeFilter) ([]*model.Node, error)
	Latest(ctx context.Context, nodeID int64, window time.Duration) ([]model.MetricSample, error)
}

// gauge describes one exported metric name.
type gauge struct {
	name      string
	help      string
	extraMeta string // metadata key exported as an extra label
	extraName string
}

var baseLabels = []string{"node", "type", "host"}

// exportedGauges maps node type and metric type to the exported gauge.
// Unmapped samples are not exported.
var exportedGauges = map[model.NodeType]map[string]gauge{
	model.NodeTypeSynology: {
		model.MetricCPU:         {name: "nas_cpu_usage", help: "CPU usage percentage"},
		model.MetricMemory:      {name: "nas_memory_usage", help: "Memory usage percentage"},
		model.MetricDisk:        {name: "nas_disk_usage", help: "Disk usage percentage", extraMeta: "volume", extraName: "volume"},
		model.MetricTemperature: {name: "nas_temperature", help: "Temperature in Celsius"},
		model.MetricNetworkIn:   {name: "nas_network_in", help: "Network incoming traffic KB/s"},
		model.MetricNetworkOut:  {name: "nas_network_out", help: "Network outgoing traffic KB/s"},
	},
	model.NodeTypeGalera: {
		model.MetricClusterSize:       {name: "galera_cluster_size", help: "Number of nodes in Galera cluster"},
		model.MetricReady:             {name: "galera_ready", help: "Galera node ready status (1=ready)"},
		model.MetricConnected:         {name: "galera_connected", help: "Galera node connected status (1=connected)"},
		model.MetricLocalState:        {name: "galera_local_state", help: "Galera local state (4=Synced)"},
		model.MetricFlowControlPaused: {name: "galera_flow_control_paused", help: "Galera flow control paused ratio"},
	},
	model.NodeTypeLaravelApp: {
		model.MetricResponseTime: {name: "laravel_response_time", help: "Laravel app response time in seconds"},
		model.MetricStatus:       {name: "laravel_status", help: "Laravel app health status (1=healthy, 0.5=degraded, 0=unhealthy)"},
		model.MetricQueueSize:    {name: "laravel_queue_size", help: "Laravel queue size"},
		model.MetricFailedJobs:   {name: "laravel_failed_jobs", help: "Laravel failed jobs count"},
	},
	model.NodeTypeDocker: {
		model.MetricContainerStatus: {name: "docker_container_status", help: "Docker container status (1=running)", extraMeta: "container_name", extraName: "container"},
		model.MetricContainerCPU:    {name: "docker_container_cpu", help: "Docker container CPU usage percentage", extraMeta: "container_name", extraName: "container"},
		model.MetricContainerMemory: {name: "docker_container_memory", help: "Docker container memory usage percentage", extraMeta: "container_name", extraName: "container"},
	},
}

// Exposition is a prometheus.Collector that exports the fresh latest samples
// of every active node on each scrape.
type Exposition struct {
	source  NodeSource
	window  time.Duration
	timeout time.Duration
	descs   map[string]*prometheus.Desc
	logger  zerolog.Logger
}

// NewExposition creates a new Exposition over source. window is the
// freshness window for latest samples.
func NewExposition(source NodeSource, window time.Duration, logger zerolog.Logger) *Exposition {
	descs := make(map[string]*prometheus.Desc)
	for _, byMetric := range exportedGauges {
		for _, g := range byMetric {
			labels := baseLabels
			if g.extraName != "" {
				labels = append(append([]string{}, baseLabels...), g.extraName)
			}
			descs[g.name] = prometheus.NewDesc(g.name, g.help, labels, nil)
		}
	}

	return &Exposition{
		source:  source,
		window:  window,
		timeout: defaultScrapeTimeout,
		descs:   descs,
		logger:  logger.With().Str("component", "exposition").Logger(),
	}
}

// Describe implements prometheus.Collector.
func (e *Exposition) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range e.descs {
		ch <- d
	}
}

// Collect implements prometheus.Collector. Store errors are logged and the
// affected nodes are left out of the scrape.
func (e *Exposition) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	nodes, err := e.source.ActiveNodes(ctx, model.NodeFilter{})
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to list nodes for exposition")
		return
	}

	for _, node := range nodes {
		samples, err := e.source.Latest(ctx, node.ID, e.window)
		if err != nil {
			e.logger.Warn().Err(err).Str("node", node.Name).Msg("failed to read latest metrics")
			continue
		}

		for _, sample := range samples {
			g, ok := exportedGauges[node.Type][sample.Type]
			if !ok {
				continue
			}

			values := []string{node.Name, string(node.Type), node.Host}
			if g.extraName != "" {
				values = append(values, sample.Metadata[g.extraMeta])
			}

			m, err := prometheus.NewConstMetric(e.descs[g.name], prometheus.GaugeValue, sample.Value, values...)
			if err != nil {
				e.logger.Warn().Err(err).Str("metric", g.name).Msg("failed to build metric")
				continue
			}
			ch <- m
		}
	}
}
