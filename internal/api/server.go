// Package api serves the read API over the metric store and the Prometheus
// exposition endpoint.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"infra-monitor/internal/config"
	"infra-monitor/internal/model"
	"infra-monitor/internal/service"
)

const (
	prefix          = "/api"
	shutdownTimeout = 10 * time.Second
	defaultWindow   = 5 * time.Minute
)

// Store is the read surface of the metric store used by the API.
type Store interface {
	ListNodes(ctx context.Context) ([]*model.Node, error)
	GetNode(ctx context.Context, id int64) (*model.Node, error)
	Latest(ctx context.Context, nodeID int64, window time.Duration) ([]model.MetricSample, error)
	LatestSample(ctx context.Context, nodeID int64, metricType string) (model.MetricSample, bool, error)
	RangeAggregate(ctx context.Context, nodeID int64, metricType string, from, to time.Time, bucket model.Bucket) ([]model.AggregatePoint, error)
	RecentAlertLogs(ctx context.Context, limit int) ([]*model.AlertLogEntry, error)
	AlertLogsForNode(ctx context.Context, nodeID int64, limit int) ([]*model.AlertLogEntry, error)
	Ping(ctx context.Context) error
}

// ConnectionTester runs a collector connection test for a node.
type ConnectionTester interface {
	TestConnection(ctx context.Context, node *model.Node) *service.TestResult
}

// Server is the HTTP read API.
type Server struct {
	engine   *gin.Engine
	listen   string
	token    string
	window   time.Duration
	store    Store
	tester   ConnectionTester
	gatherer prometheus.Gatherer
	now      func() time.Time
	logger   zerolog.Logger
}

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithGatherer serves gatherer on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithConnectionTester enables the node connection test route.
func WithConnectionTester(t ConnectionTester) Option {
	return func(s *Server) {
		s.tester = t
	}
}

// WithClock overrides the clock used for range presets.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// NewServer creates a new Server. window is the freshness window for latest
// reads.
func NewServer(cfg *config.ServerConfig, window time.Duration, store Store, logger zerolog.Logger, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)
	if window <= 0 {
		window = defaultWindow
	}

	s := &Server{
		engine: gin.New(),
		window: window,
		store:  store,
		now:    time.Now,
		logger: logger.With().Str("component", "api").Logger(),
	}
	if cfg != nil {
		s.listen = cfg.Listen
		s.token = cfg.MetricsToken
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine.Use(gin.Recovery(), requestLogger(s.logger))
	s.initRoutes()
	return s
}

func (s *Server) initRoutes() {
	s.engine.GET("/healthz", s.healthz())

	if s.gatherer != nil {
		s.engine.GET("/metrics", metricsAuth(s.token), gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	api := s.engine.Group(prefix)
	api.GET("/nodes", s.listNodes())
	api.GET("/nodes/:id/latest", s.latestMetrics())
	api.GET("/nodes/:id/metrics/:type/latest", s.latestMetric())
	api.GET("/nodes/:id/metrics/:type/range", s.metricRange())
	api.GET("/nodes/:id/alerts/logs", s.nodeAlertLogs())
	api.POST("/nodes/:id/test", s.testConnection())
	api.GET("/alerts/logs", s.alertLogs())
	api.GET("/clusters/galera", s.galeraCluster())
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("listen", s.listen).Msg("api server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("api server stopped")
	return nil
}
