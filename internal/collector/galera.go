package collector

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"

	"infra-monitor/internal/config"
	"infra-monitor/internal/model"
)

const wsrepStatusQuery = "SHOW GLOBAL STATUS LIKE 'wsrep_%'"

// mysqlAccessDenied is ER_ACCESS_DENIED_ERROR.
const mysqlAccessDenied = 1045

// GaleraCollector collects wsrep status variables from a Galera member.
type GaleraCollector struct {
	config *config.GaleraCollectorConfig
	open   func(cfg *mysql.Config) (*sql.DB, error)
	logger zerolog.Logger
}

// NewGaleraCollector creates a new GaleraCollector instance.
func NewGaleraCollector(cfg *config.GaleraCollectorConfig, logger zerolog.Logger) *GaleraCollector {
	return &GaleraCollector{
		config: cfg,
		open:   openMySQL,
		logger: logger.With().Str("component", "galera-collector").Logger(),
	}
}

func openMySQL(cfg *mysql.Config) (*sql.DB, error) {
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)
	return db, nil
}

// Supports implements Collector.
func (c *GaleraCollector) Supports() []model.NodeType {
	return []model.NodeType{model.NodeTypeGalera}
}

// TestConnection opens a connection and pings the server.
func (c *GaleraCollector) TestConnection(ctx context.Context, node *model.Node) (bool, error) {
	db, err := c.connect(ctx, node)
	if err != nil {
		c.logger.Warn().Err(err).Str("node", node.Name).Msg("Galera connection test failed")
		return false, err
	}
	db.Close()
	return true, nil
}

// Collect runs the wsrep status query and maps the known variables.
func (c *GaleraCollector) Collect(ctx context.Context, node *model.Node) ([]model.MetricSample, error) {
	db, err := c.connect(ctx, node)
	if err != nil {
		c.logger.Error().Err(err).Str("node", node.Name).Msg("Galera collection failed")
		return nil, err
	}
	defer db.Close()

	vars, err := queryWsrepStatus(ctx, db)
	if err != nil {
		c.logger.Error().Err(err).Str("node", node.Name).Msg("failed to query wsrep status")
		return nil, classifyGaleraError(node, err)
	}

	samples := wsrepSamples(vars)
	c.logger.Debug().Str("node", node.Name).Int("samples", len(samples)).Msg("Galera collection finished")
	return samples, nil
}

// connect opens a pool of one connection and verifies it.
func (c *GaleraCollector) connect(ctx context.Context, node *model.Node) (*sql.DB, error) {
	timeout := c.config.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(node.Host, strconv.Itoa(node.PortOr(3306)))
	cfg.DBName = "mysql"
	cfg.Timeout = timeout
	cfg.ReadTimeout = timeout
	if creds := node.Credentials.Galera; creds != nil {
		cfg.User = creds.Username
		cfg.Passwd = creds.Password
		if creds.Database != "" {
			cfg.DBName = creds.Database
		}
	}

	db, err := c.open(cfg)
	if err != nil {
		return nil, newConnError(node, KindAPIError, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, classifyGaleraError(node, err)
	}
	return db, nil
}

func queryWsrepStatus(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, wsrepStatusQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vars := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		vars[name] = value
	}
	return vars, rows.Err()
}

// classifyGaleraError inspects the driver error: access denied is
// auth_failed, refusal and unknown hosts are refused, timeouts are timeout,
// anything else is api_error.
func classifyGaleraError(node *model.Node, err error) *ConnectionError {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlAccessDenied {
		return newConnError(node, KindAuthFailed, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "access denied"):
		return newConnError(node, KindAuthFailed, err)
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return newConnError(node, KindRefused, err)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return newConnError(node, KindTimeout, err)
	}

	if kind, ok := classifyTransportError(err); ok {
		return newConnError(node, kind, err)
	}
	return newConnError(node, KindAPIError, err)
}

// wsrepSamples maps status variables to samples. Missing keys are skipped.
func wsrepSamples(vars map[string]string) []model.MetricSample {
	var samples []model.MetricSample

	numeric := func(key, metricType string) {
		raw, ok := vars[key]
		if !ok {
			return
		}
		samples = append(samples, model.NewSample(metricType, parseFloat(raw)))
	}
	onOff := func(key, metricType string) {
		raw, ok := vars[key]
		if !ok {
			return
		}
		value := 0.0
		if raw == "ON" {
			value = 1
		}
		samples = append(samples, model.NewSample(metricType, value))
	}

	numeric("wsrep_cluster_size", model.MetricClusterSize)

	if status, ok := vars["wsrep_cluster_status"]; ok {
		value := 0.0
		if status == "Primary" {
			value = 1
		}
		samples = append(samples, model.NewSample(model.MetricClusterStatus, value).WithMeta("status", status))
	}

	onOff("wsrep_ready", model.MetricReady)
	onOff("wsrep_connected", model.MetricConnected)

	if raw, ok := vars["wsrep_local_state"]; ok {
		sample := model.NewSample(model.MetricLocalState, parseFloat(raw))
		if comment, ok := vars["wsrep_local_state_comment"]; ok {
			sample = sample.WithMeta("comment", comment)
		}
		samples = append(samples, sample)
	}

	numeric("wsrep_flow_control_paused", model.MetricFlowControlPaused)
	numeric("wsrep_local_recv_queue_avg", model.MetricRecvQueueAvg)
	numeric("wsrep_local_send_queue_avg", model.MetricSendQueueAvg)

	return samples
}

// parseFloat converts a status value, yielding 0 for non-numeric text.
func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
