package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"infra-monitor/internal/model"
	"infra-monitor/internal/service"
	"infra-monitor/internal/store"
)

// nodeView is a node with the time of its newest fresh sample.
type nodeView struct {
	*model.Node
	LastUpdated *time.Time `json:"last_updated"` // 最近采集时间，无新鲜数据为 null
}

// rangePreset maps a range name to its lookback and bucket.
type rangePreset struct {
	lookback time.Duration
	bucket   model.Bucket
}

var rangePresets = map[string]rangePreset{
	"1h":  {time.Hour, model.BucketMinute},
	"6h":  {6 * time.Hour, model.BucketMinute},
	"24h": {24 * time.Hour, model.BucketHour},
	"7d":  {7 * 24 * time.Hour, model.BucketHour},
	"30d": {30 * 24 * time.Hour, model.BucketDay},
}

func (s *Server) healthz() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.store.Ping(c.Request.Context()); err != nil {
			writeError(c, http.StatusServiceUnavailable, "database unavailable: "+err.Error())
			return
		}
		writeOK(c, gin.H{"status": "ok"})
	}
}

func (s *Server) listNodes() gin.HandlerFunc {
	return func(c *gin.Context) {
		nodes, err := s.store.ListNodes(c.Request.Context())
		if err != nil {
			writeInternalError(c, err)
			return
		}

		views := make([]nodeView, 0, len(nodes))
		for _, node := range nodes {
			samples, err := s.store.Latest(c.Request.Context(), node.ID, s.window)
			if err != nil {
				writeInternalError(c, err)
				return
			}
			view := nodeView{Node: node}
			for _, sample := range samples {
				if view.LastUpdated == nil || sample.RecordedAt.After(*view.LastUpdated) {
					at := sample.RecordedAt
					view.LastUpdated = &at
				}
			}
			views = append(views, view)
		}
		writeOK(c, views)
	}
}

func (s *Server) latestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		node, ok := s.nodeParam(c)
		if !ok {
			return
		}

		samples, err := s.store.Latest(c.Request.Context(), node.ID, s.window)
		if err != nil {
			writeInternalError(c, err)
			return
		}
		if samples == nil {
			samples = []model.MetricSample{}
		}
		writeOK(c, samples)
	}
}

func (s *Server) latestMetric() gin.HandlerFunc {
	return func(c *gin.Context) {
		node, ok := s.nodeParam(c)
		if !ok {
			return
		}

		metricType := c.Param("type")
		sample, found, err := s.store.LatestSample(c.Request.Context(), node.ID, metricType)
		if err != nil {
			writeInternalError(c, err)
			return
		}
		if !found {
			writeNotFound(c, fmt.Sprintf("no %s samples for node %d", metricType, node.ID))
			return
		}
		writeOK(c, sample)
	}
}

func (s *Server) metricRange() gin.HandlerFunc {
	return func(c *gin.Context) {
		node, ok := s.nodeParam(c)
		if !ok {
			return
		}

		from, to, bucket, err := s.parseRange(c)
		if err != nil {
			writeBadRequest(c, err.Error())
			return
		}

		points, err := s.store.RangeAggregate(c.Request.Context(), node.ID, c.Param("type"), from, to, bucket)
		if err != nil {
			writeInternalError(c, err)
			return
		}
		if points == nil {
			points = []model.AggregatePoint{}
		}
		writeOK(c, gin.H{
			"from":   from,
			"to":     to,
			"bucket": bucket,
			"points": points,
		})
	}
}

func (s *Server) alertLogs() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := limitParam(c)
		if err != nil {
			writeBadRequest(c, err.Error())
			return
		}

		logs, err := s.store.RecentAlertLogs(c.Request.Context(), limit)
		if err != nil {
			writeInternalError(c, err)
			return
		}
		if logs == nil {
			logs = []*model.AlertLogEntry{}
		}
		writeOK(c, logs)
	}
}

func (s *Server) nodeAlertLogs() gin.HandlerFunc {
	return func(c *gin.Context) {
		node, ok := s.nodeParam(c)
		if !ok {
			return
		}
		limit, err := limitParam(c)
		if err != nil {
			writeBadRequest(c, err.Error())
			return
		}

		logs, err := s.store.AlertLogsForNode(c.Request.Context(), node.ID, limit)
		if err != nil {
			writeInternalError(c, err)
			return
		}
		if logs == nil {
			logs = []*model.AlertLogEntry{}
		}
		writeOK(c, logs)
	}
}

func (s *Server) galeraCluster() gin.HandlerFunc {
	return func(c *gin.Context) {
		cluster, err := service.ClusterSummary(c.Request.Context(), s.store, s.window)
		if err != nil {
			writeInternalError(c, err)
			return
		}
		writeOK(c, cluster)
	}
}

func (s *Server) testConnection() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.tester == nil {
			writeNotFound(c, "connection tests are not enabled")
			return
		}
		node, ok := s.nodeParam(c)
		if !ok {
			return
		}
		writeOK(c, s.tester.TestConnection(c.Request.Context(), node))
	}
}

// nodeParam resolves the :id path parameter, writing the error reply itself.
func (s *Server) nodeParam(c *gin.Context) (*model.Node, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(c, fmt.Sprintf("invalid node id %q", c.Param("id")))
		return nil, false
	}

	node, err := s.store.GetNode(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeNotFound(c, fmt.Sprintf("node %d not found", id))
		return nil, false
	}
	if err != nil {
		writeInternalError(c, err)
		return nil, false
	}
	return node, true
}

// parseRange reads either explicit from/to (RFC 3339) or a range preset
// (default 1h). An explicit bucket overrides the preset bucket.
func (s *Server) parseRange(c *gin.Context) (time.Time, time.Time, model.Bucket, error) {
	var (
		from, to time.Time
		bucket   = model.BucketHour
		err      error
	)

	fromStr, toStr := c.Query("from"), c.Query("to")
	if fromStr != "" || toStr != "" {
		if from, err = time.Parse(time.RFC3339, fromStr); err != nil {
			return from, to, "", fmt.Errorf("invalid from: %w", err)
		}
		to = s.now()
		if toStr != "" {
			if to, err = time.Parse(time.RFC3339, toStr); err != nil {
				return from, to, "", fmt.Errorf("invalid to: %w", err)
			}
		}
	} else {
		name := c.DefaultQuery("range", "1h")
		preset, ok := rangePresets[name]
		if !ok {
			return from, to, "", fmt.Errorf("unknown range %q, supported: 1h, 6h, 24h, 7d, 30d", name)
		}
		to = s.now()
		from = to.Add(-preset.lookback)
		bucket = preset.bucket
	}

	if b := c.Query("bucket"); b != "" {
		if bucket, err = model.ParseBucket(b); err != nil {
			return from, to, "", err
		}
	}
	if from.After(to) {
		return from, to, "", fmt.Errorf("from must not be after to")
	}
	return from, to, bucket, nil
}

func limitParam(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 || limit > 1000 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return limit, nil
}
