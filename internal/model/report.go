package model

import "time"

// NodeSnapshot is a node with its fresh latest samples.
type NodeSnapshot struct {
	Node    *Node          `json:"node"`    // 节点
	Metrics []MetricSample `json:"metrics"` // 新鲜窗口内的最新指标
}

// Stale reports whether the node has no sample inside the freshness window.
func (s *NodeSnapshot) Stale() bool {
	return len(s.Metrics) == 0
}

// Metric returns the latest sample of the given type.
func (s *NodeSnapshot) Metric(metricType string) (MetricSample, bool) {
	for _, m := range s.Metrics {
		if m.Type == metricType {
			return m, true
		}
	}
	return MetricSample{}, false
}

// StatusSummary holds the headline counters of a status report.
type StatusSummary struct {
	TotalNodes    int `json:"total_nodes"`    // 节点总数
	StaleNodes    int `json:"stale_nodes"`    // 无新鲜数据节点数
	ActiveRules   int `json:"active_rules"`   // 启用规则数
	Triggered24h  int `json:"triggered_24h"`  // 24 小时内触发次数
	RecentEntries int `json:"recent_entries"` // 报告中的告警日志条数
}

// StatusReport is a point-in-time snapshot of nodes, latest metrics and the
// recent alert log.
type StatusReport struct {
	GeneratedAt time.Time        `json:"generated_at"`     // 生成时间
	Version     string           `json:"version"`          // 工具版本
	Summary     StatusSummary    `json:"summary"`          // 汇总
	Nodes       []*NodeSnapshot  `json:"nodes"`            // 节点快照
	AlertLogs   []*AlertLogEntry `json:"alert_logs"`       // 最近告警日志
	Galera      *GaleraCluster   `json:"galera,omitempty"` // Galera 集群汇总
}

// NodeName resolves a node id to its name within the report.
func (r *StatusReport) NodeName(id int64) string {
	for _, s := range r.Nodes {
		if s.Node != nil && s.Node.ID == id {
			return s.Node.Name
		}
	}
	return ""
}
