package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infra-monitor/internal/model"
)

const testInventory = `
nodes:
  - name: nas-01
    type: synology
    host: 10.0.0.5
    port: 5001
    credentials:
      username: admin
      password: secret
  - name: docker-01
    type: docker
    host: 10.0.0.6
  - name: db-01
    type: galera
    host: 10.0.0.7
    active: false
    credentials:
      username: monitor
      password: pw
  - name: app
    type: laravel_app
    host: app.example.com
    port: 443
    credentials:
      health_endpoint: /api/health
      health_token: token
rules:
  - name: nas-cpu
    node: nas-01
    metric_type: cpu
    condition: ">"
    threshold: 80
    channel: mail
    target: ops@example.com
    cooldown: 30m
  - name: any-status-down
    metric_type: status
    condition: lt
    threshold: 1
    channel: chat
    target: https://hooks.slack.com/services/T/B/X
`

func writeInventory(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadInventory_Success(t *testing.T) {
	inv, err := LoadInventory(writeInventory(t, testInventory))
	require.NoError(t, err)
	require.Len(t, inv.Nodes, 4)
	require.Len(t, inv.Rules, 2)

	nas, err := inv.Nodes[0].ToNode()
	require.NoError(t, err)
	assert.Equal(t, model.NodeTypeSynology, nas.Type)
	assert.True(t, nas.Active)
	require.NotNil(t, nas.Credentials.NAS)
	assert.Equal(t, "admin", nas.Credentials.NAS.Username)

	db, err := inv.Nodes[2].ToNode()
	require.NoError(t, err)
	assert.False(t, db.Active)

	app, err := inv.Nodes[3].ToNode()
	require.NoError(t, err)
	assert.Equal(t, "/api/health", app.Credentials.Health.HealthEndpoint)

	rule, err := inv.Rules[0].ToRule(map[string]int64{"nas-01": 7})
	require.NoError(t, err)
	require.NotNil(t, rule.NodeID)
	assert.Equal(t, int64(7), *rule.NodeID)
	assert.Equal(t, model.ConditionGT, rule.Condition)
	assert.Equal(t, 30*time.Minute, rule.Cooldown)

	global, err := inv.Rules[1].ToRule(nil)
	require.NoError(t, err)
	assert.True(t, global.IsGlobal())
	assert.Equal(t, model.ChannelSlack, global.Channel)
}

func TestLoadInventory_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "unknown node type",
			content: `
nodes:
  - name: pve
    type: proxmox
    host: 10.0.0.1
`,
		},
		{
			name: "duplicate node name",
			content: `
nodes:
  - {name: a, type: docker, host: h1}
  - {name: a, type: docker, host: h2}
`,
		},
		{
			name: "rule references unknown node",
			content: `
rules:
  - {name: r, node: ghost, metric_type: cpu, condition: gt, threshold: 1, channel: mail}
`,
		},
		{
			name: "bad condition",
			content: `
rules:
  - {name: r, metric_type: cpu, condition: about, threshold: 1, channel: mail}
`,
		},
		{
			name: "bad channel",
			content: `
rules:
  - {name: r, metric_type: cpu, condition: gt, threshold: 1, channel: pager}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadInventory(writeInventory(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadInventory_FileNotFound(t *testing.T) {
	_, err := LoadInventory("/nonexistent/inventory.yaml")
	assert.Error(t, err)
}
