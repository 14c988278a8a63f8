// Package service provides the collection, alert evaluation and retention
// sweeps of the monitor.
package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"infra-monitor/internal/collector"
	"infra-monitor/internal/config"
	"infra-monitor/internal/model"
	"infra-monitor/internal/telemetry"
)

const (
	defaultConcurrency = 10
	defaultNodeTimeout = 30 * time.Second

	// FailureKindStore marks a node whose samples could not be persisted.
	FailureKindStore = "store"
	// FailureKindNoCollector marks a node whose type has no collector.
	FailureKindNoCollector = "no_collector"
)

// SampleStore is the store surface used by the collection sweep.
type SampleStore interface {
	ActiveNodes(ctx context.Context, filter model.NodeFilter) ([]*model.Node, error)
	InsertBatch(ctx context.Context, samples []model.MetricSample) error
}

// CollectorSource resolves the collector for a node type.
type CollectorSource interface {
	Get(t model.NodeType) (collector.Collector, error)
}

// NodeFailure describes a node whose collection failed.
type NodeFailure struct {
	NodeID int64          // 节点 ID
	Name   string         // 节点名称
	Type   model.NodeType // 节点类型
	Kind   string         // 错误类别
	Error  string         // 错误信息
}

// SweepResult is the outcome of one collection sweep.
type SweepResult struct {
	RunID     string        // 本次采集 ID
	StartedAt time.Time     // 开始时间
	Duration  time.Duration // 耗时
	Total     int           // 节点总数
	Succeeded int           // 成功节点数
	Failed    int           // 失败节点数
	Empty     int           // 无指标节点数
	Samples   int           // 写入样本数
	Failures  []NodeFailure // 失败明细（按节点 ID 排序）
}

// Sweeper runs collection sweeps over the active nodes.
type Sweeper struct {
	store      SampleStore
	collectors CollectorSource
	config     *config.CollectionConfig
	metrics    *telemetry.Metrics
	now        func() time.Time
	logger     zerolog.Logger
}

// SweeperOption is a functional option for configuring a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweeperMetrics records sweep outcomes on m.
func WithSweeperMetrics(m *telemetry.Metrics) SweeperOption {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

// WithSweeperClock overrides the clock used to stamp samples.
func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		s.now = now
	}
}

// NewSweeper creates a new Sweeper.
func NewSweeper(
	cfg *config.CollectionConfig,
	store SampleStore,
	collectors CollectorSource,
	logger zerolog.Logger,
	opts ...SweeperOption,
) *Sweeper {
	s := &Sweeper{
		store:      store,
		collectors: collectors,
		config:     cfg,
		now:        time.Now,
		logger:     logger.With().Str("component", "sweeper").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CollectAll collects every active node matching filter. Nodes run
// concurrently up to the configured limit; a failing node never cancels the
// others. The returned error is set only when the node list cannot be read.
func (s *Sweeper) CollectAll(ctx context.Context, filter model.NodeFilter) (*SweepResult, error) {
	started := s.now()
	result := &SweepResult{
		RunID:     uuid.NewString(),
		StartedAt: started,
	}
	logger := s.logger.With().Str("run_id", result.RunID).Logger()

	nodes, err := s.store.ActiveNodes(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list active nodes: %w", err)
	}
	result.Total = len(nodes)

	if len(nodes) == 0 {
		logger.Warn().Msg("no active nodes found")
		return result, nil
	}

	logger.Info().Int("nodes", len(nodes)).Msg("starting collection sweep")

	ctx, cancel := context.WithTimeout(ctx, s.sweepTimeout(len(nodes)))
	defer cancel()

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency())

	for _, node := range nodes {
		g.Go(func() error {
			samples, kind, err := s.collectNode(ctx, node)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err != nil:
				result.Failed++
				result.Failures = append(result.Failures, NodeFailure{
					NodeID: node.ID,
					Name:   node.Name,
					Type:   node.Type,
					Kind:   kind,
					Error:  err.Error(),
				})
				logger.Error().
					Err(err).
					Int64("node_id", node.ID).
					Str("node", node.Name).
					Str("kind", kind).
					Msg("metric collection failed")
			case samples == 0:
				result.Empty++
				logger.Warn().Str("node", node.Name).Msg("no metrics collected")
			default:
				result.Succeeded++
				result.Samples += samples
				logger.Debug().Str("node", node.Name).Int("samples", samples).Msg("node collected")
			}

			s.metrics.RecordNodeCollected(string(node.Type), kind)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(result.Failures, func(i, j int) bool {
		return result.Failures[i].NodeID < result.Failures[j].NodeID
	})
	result.Duration = s.now().Sub(started)
	s.metrics.ObserveSweep("collect", result.Duration)

	logger.Info().
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Int("empty", result.Empty).
		Int("samples", result.Samples).
		Dur("duration", result.Duration).
		Msg("collection sweep completed")

	return result, nil
}

// collectNode collects and persists one node. It returns the number of
// samples written, or a failure kind and error.
func (s *Sweeper) collectNode(ctx context.Context, node *model.Node) (int, string, error) {
	c, err := s.collectors.Get(node.Type)
	if err != nil {
		return 0, FailureKindNoCollector, err
	}

	nodeCtx, cancel := context.WithTimeout(ctx, s.nodeTimeout())
	defer cancel()

	samples, err := c.Collect(nodeCtx, node)
	if err != nil {
		return 0, string(collector.KindOf(err)), err
	}
	if len(samples) == 0 {
		return 0, "", nil
	}

	recordedAt := s.now()
	for i := range samples {
		samples[i].NodeID = node.ID
		samples[i].RecordedAt = recordedAt
	}

	// the node deadline covers collection only
	if err := s.store.InsertBatch(ctx, samples); err != nil {
		return 0, FailureKindStore, err
	}
	return len(samples), "", nil
}

func (s *Sweeper) concurrency() int {
	if s.config == nil || s.config.Concurrency <= 0 {
		return defaultConcurrency
	}
	return s.config.Concurrency
}

func (s *Sweeper) nodeTimeout() time.Duration {
	if s.config == nil || s.config.NodeTimeout <= 0 {
		return defaultNodeTimeout
	}
	return s.config.NodeTimeout
}

// sweepTimeout is the configured sweep timeout, or node timeout × nodes.
func (s *Sweeper) sweepTimeout(nodes int) time.Duration {
	if s.config != nil && s.config.SweepTimeout > 0 {
		return s.config.SweepTimeout
	}
	return s.nodeTimeout() * time.Duration(nodes)
}

// TestResult is the outcome of a single connection test.
type TestResult struct {
	NodeID  int64  `json:"node_id"`         // 节点 ID
	Name    string `json:"name"`            // 节点名称
	Success bool   `json:"success"`         // 是否成功
	Kind    string `json:"kind,omitempty"`  // 错误类别
	Error   string `json:"error,omitempty"` // 错误信息
}

// TestConnection runs the collector connection test for one node.
func (s *Sweeper) TestConnection(ctx context.Context, node *model.Node) *TestResult {
	res := &TestResult{NodeID: node.ID, Name: node.Name}

	c, err := s.collectors.Get(node.Type)
	if err != nil {
		res.Kind, res.Error = FailureKindNoCollector, err.Error()
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, s.nodeTimeout())
	defer cancel()

	ok, err := c.TestConnection(ctx, node)
	res.Success = ok && err == nil
	if err != nil {
		res.Kind, res.Error = string(collector.KindOf(err)), err.Error()
	}

	s.logger.Info().
		Str("node", node.Name).
		Bool("success", res.Success).
		Str("kind", res.Kind).
		Msg("connection test finished")
	return res
}
