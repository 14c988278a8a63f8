package collector

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"

	"infra-monitor/internal/model"
)

func galeraNode() *model.Node {
	return &model.Node{ID: 3, Name: "db-1", Type: model.NodeTypeGalera, Host: "10.0.0.3", Active: true}
}

func TestWsrepSamples(t *testing.T) {
	vars := map[string]string{
		"wsrep_cluster_size":         "3",
		"wsrep_cluster_status":       "Primary",
		"wsrep_ready":                "ON",
		"wsrep_connected":            "OFF",
		"wsrep_local_state":          "4",
		"wsrep_local_state_comment":  "Synced",
		"wsrep_flow_control_paused":  "0.0125",
		"wsrep_local_recv_queue_avg": "0.5",
		"wsrep_local_send_queue_avg": "0",
		"wsrep_provider_name":        "Galera",
	}

	samples := wsrepSamples(vars)
	assert.Len(t, samples, 8)

	byType := samplesByType(samples)
	assert.Equal(t, 3.0, byType[model.MetricClusterSize].Value)
	assert.Equal(t, 1.0, byType[model.MetricClusterStatus].Value)
	assert.Equal(t, "Primary", byType[model.MetricClusterStatus].Metadata["status"])
	assert.Equal(t, 1.0, byType[model.MetricReady].Value)
	assert.Equal(t, 0.0, byType[model.MetricConnected].Value)
	assert.Equal(t, 4.0, byType[model.MetricLocalState].Value)
	assert.Equal(t, "Synced", byType[model.MetricLocalState].Metadata["comment"])
	assert.Equal(t, 0.0125, byType[model.MetricFlowControlPaused].Value)
	assert.Equal(t, 0.5, byType[model.MetricRecvQueueAvg].Value)
	assert.Equal(t, 0.0, byType[model.MetricSendQueueAvg].Value)
}

func TestWsrepSamples_MissingKeys(t *testing.T) {
	samples := wsrepSamples(map[string]string{"wsrep_cluster_status": "non-Primary"})

	assert.Len(t, samples, 1)
	assert.Equal(t, 0.0, samples[0].Value)
	assert.Empty(t, wsrepSamples(map[string]string{}))
}

func TestClassifyGaleraError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"access denied code", &mysql.MySQLError{Number: 1045, Message: "Access denied for user 'monitor'@'10.0.0.1'"}, KindAuthFailed},
		{"access denied text", errors.New("Error 1045: Access denied for user"), KindAuthFailed},
		{"refused", errors.New("dial tcp 10.0.0.3:3306: connect: connection refused"), KindRefused},
		{"unknown host", errors.New("dial tcp: lookup db-9: no such host"), KindRefused},
		{"io timeout", errors.New("dial tcp 10.0.0.3:3306: i/o timeout"), KindTimeout},
		{"bad connection", mysql.ErrInvalidConn, KindAPIError},
		{"unknown table", &mysql.MySQLError{Number: 1146, Message: "Table doesn't exist"}, KindAPIError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyGaleraError(galeraNode(), fmt.Errorf("ping: %w", tt.err))
			assert.Equal(t, tt.want, err.Kind)
			assert.Equal(t, model.NodeTypeGalera, err.NodeType)
			assert.Equal(t, "10.0.0.3", err.Host)
		})
	}
}

func TestParseFloat(t *testing.T) {
	assert.Equal(t, 3.0, parseFloat(" 3 "))
	assert.Equal(t, 0.0, parseFloat("Primary"))
}
