package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"infra-monitor/internal/model"
	"infra-monitor/internal/notify"
	"infra-monitor/internal/store"
)

var testNow = time.Date(2025, 1, 25, 12, 0, 0, 0, time.UTC)

// clock is a settable test clock.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, now func() time.Time) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "monitor.db"), time.Second, zerolog.Nop(), store.WithNow(now))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedNode(t *testing.T, s *store.Store, name string, nodeType model.NodeType) *model.Node {
	t.Helper()
	node := &model.Node{Name: name, Type: nodeType, Host: name + ".local", Active: true}
	id, err := s.UpsertNode(context.Background(), node)
	require.NoError(t, err)
	node.ID = id
	return node
}

func seedRule(t *testing.T, s *store.Store, rule *model.AlertRule) *model.AlertRule {
	t.Helper()
	rule.Active = true
	_, err := s.UpsertRule(context.Background(), rule)
	require.NoError(t, err)
	return rule
}

func seedValue(t *testing.T, s *store.Store, nodeID int64, metricType string, value float64, at time.Time) {
	t.Helper()
	require.NoError(t, s.InsertBatch(context.Background(), []model.MetricSample{
		{NodeID: nodeID, Type: metricType, Value: value, RecordedAt: at},
	}))
}

// fakeCollector serves the given node types with a collect func.
type fakeCollector struct {
	types   []model.NodeType
	collect func(ctx context.Context, node *model.Node) ([]model.MetricSample, error)
	test    func(ctx context.Context, node *model.Node) (bool, error)
}

func (f *fakeCollector) Supports() []model.NodeType { return f.types }

func (f *fakeCollector) TestConnection(ctx context.Context, node *model.Node) (bool, error) {
	if f.test != nil {
		return f.test(ctx, node)
	}
	return true, nil
}

func (f *fakeCollector) Collect(ctx context.Context, node *model.Node) ([]model.MetricSample, error) {
	return f.collect(ctx, node)
}

// recordingDispatcher captures dispatched events.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, event notify.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return d.err
}
