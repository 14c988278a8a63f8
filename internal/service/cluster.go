package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"infra-monitor/internal/model"
)

// SnapshotStore is the read surface used by summaries and reports.
type SnapshotStore interface {
	ListNodes(ctx context.Context) ([]*model.Node, error)
	Latest(ctx context.Context, nodeID int64, window time.Duration) ([]model.MetricSample, error)
}

// ClusterSummary rolls up the latest state of every galera node, active or
// not, ordered by name.
func ClusterSummary(ctx context.Context, store SnapshotStore, window time.Duration) (*model.GaleraCluster, error) {
	nodes, err := store.ListNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	snapshots := make([]*model.NodeSnapshot, 0, len(nodes))
	for _, node := range nodes {
		if node.Type != model.NodeTypeGalera {
			continue
		}
		samples, err := store.Latest(ctx, node.ID, window)
		if err != nil {
			return nil, fmt.Errorf("failed to read latest metrics for %s: %w", node.Name, err)
		}
		snapshots = append(snapshots, &model.NodeSnapshot{Node: node, Metrics: samples})
	}

	return summarizeGalera(snapshots), nil
}

// summarizeGalera builds the cluster roll-up from galera snapshots.
func summarizeGalera(snapshots []*model.NodeSnapshot) *model.GaleraCluster {
	cluster := &model.GaleraCluster{Members: make([]*model.GaleraMember, 0, len(snapshots))}

	for _, snap := range snapshots {
		m := galeraMember(snap)
		if m.Status == model.GaleraStatusHealthy {
			cluster.HealthyCount++
		}
		if m.ClusterSize > cluster.ExpectedSize {
			cluster.ExpectedSize = m.ClusterSize
		}
		cluster.Members = append(cluster.Members, m)
	}

	sort.SliceStable(cluster.Members, func(i, j int) bool {
		return cluster.Members[i].Name < cluster.Members[j].Name
	})

	if cluster.ExpectedSize == 0 {
		cluster.ExpectedSize = len(cluster.Members)
	}

	switch {
	case cluster.HealthyCount == 0:
		cluster.Status = model.GaleraStatusCritical
	case cluster.HealthyCount < cluster.ExpectedSize:
		cluster.Status = model.GaleraStatusWarning
	default:
		cluster.Status = model.GaleraStatusHealthy
	}
	return cluster
}

func galeraMember(snap *model.NodeSnapshot) *model.GaleraMember {
	value := func(metricType string) float64 {
		if s, ok := snap.Metric(metricType); ok {
			return s.Value
		}
		return 0
	}

	m := &model.GaleraMember{
		NodeID:      snap.Node.ID,
		Name:        snap.Node.Name,
		Host:        snap.Node.Host,
		ClusterSize: int(value(model.MetricClusterSize)),
		Ready:       value(model.MetricReady) == 1,
		Connected:   value(model.MetricConnected) == 1,
		LocalState:  int(value(model.MetricLocalState)),
		FlowControl: decimal.NewFromFloat(value(model.MetricFlowControlPaused)).Round(4).InexactFloat64(),
		HasData:     !snap.Stale(),
	}

	m.StateComment = model.LocalStateComment(m.LocalState)
	if s, ok := snap.Metric(model.MetricLocalState); ok && s.Metadata["comment"] != "" {
		m.StateComment = s.Metadata["comment"]
	}
	if s, ok := snap.Metric(model.MetricClusterStatus); ok {
		m.ClusterStatus = s.Metadata["status"]
	}

	m.Status = m.Classify()
	return m
}
