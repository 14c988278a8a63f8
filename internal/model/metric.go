// Package model provides data models for the monitor.
package model

import (
	"fmt"
	"time"
)

// Well-known metric types produced by the collectors.
const (
	MetricCPU                  = "cpu"
	MetricMemory               = "memory"
	MetricDisk                 = "disk"
	MetricNetworkIn            = "network_in"
	MetricNetworkOut           = "network_out"
	MetricTemperature          = "temperature"
	MetricUptime               = "uptime"
	MetricContainerStatus      = "container_status"
	MetricContainerCPU         = "container_cpu"
	MetricContainerMemory      = "container_memory"
	MetricContainerRestarts    = "container_restart_count"
	MetricClusterSize          = "wsrep_cluster_size"
	MetricClusterStatus        = "wsrep_cluster_status"
	MetricReady                = "wsrep_ready"
	MetricConnected            = "wsrep_connected"
	MetricLocalState           = "wsrep_local_state"
	MetricFlowControlPaused    = "wsrep_flow_control_paused"
	MetricRecvQueueAvg         = "wsrep_recv_queue_avg"
	MetricSendQueueAvg         = "wsrep_send_queue_avg"
	MetricResponseTime         = "response_time"
	MetricStatus               = "status"
	MetricDatabaseConnected    = "database_connected"
	MetricCacheConnected       = "cache_connected"
	MetricQueueSize            = "queue_size"
	MetricFailedJobs           = "failed_jobs"
	MetricInternalResponseTime = "internal_response_time"
)

// MetricSample is a single recorded value. Samples are write-once.
type MetricSample struct {
	ID         int64             `json:"id,omitempty"`       // 存储 ID
	NodeID     int64             `json:"node_id"`            // 节点 ID
	Type       string            `json:"type"`               // 指标类型
	Value      float64           `json:"value"`              // 指标值
	Metadata   map[string]string `json:"metadata,omitempty"` // 采集器附加信息（卷 ID、容器名等）
	RecordedAt time.Time         `json:"recorded_at"`        // 记录时间
}

// NewSample creates a sample candidate. Node id and timestamp are stamped by
// the collection sweep.
func NewSample(metricType string, value float64) MetricSample {
	return MetricSample{Type: metricType, Value: value}
}

// WithMeta returns a copy of the sample with the metadata key set.
func (s MetricSample) WithMeta(key, value string) MetricSample {
	meta := make(map[string]string, len(s.Metadata)+1)
	for k, v := range s.Metadata {
		meta[k] = v
	}
	meta[key] = value
	s.Metadata = meta
	return s
}

// Bucket is the granularity for ranged aggregation.
type Bucket string

const (
	BucketMinute Bucket = "minute" // 按分钟
	BucketHour   Bucket = "hour"   // 按小时
	BucketDay    Bucket = "day"    // 按天
)

// ParseBucket converts a string into a Bucket.
func ParseBucket(s string) (Bucket, error) {
	switch Bucket(s) {
	case BucketMinute, BucketHour, BucketDay:
		return Bucket(s), nil
	default:
		return "", fmt.Errorf("unknown bucket %q, supported: minute, hour, day", s)
	}
}

// Step returns the bucket width.
func (b Bucket) Step() time.Duration {
	switch b {
	case BucketMinute:
		return time.Minute
	case BucketDay:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// AggregatePoint is one bucket of a ranged aggregation.
type AggregatePoint struct {
	BucketStart time.Time `json:"bucket_start"` // 桶起始时间
	Avg         float64   `json:"avg"`          // 平均值
	Min         float64   `json:"min"`          // 最小值
	Max         float64   `json:"max"`          // 最大值
	Count       int       `json:"count"`        // 样本数
}
