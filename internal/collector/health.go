package collector

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"infra-monitor/internal/client/health"
	"infra-monitor/internal/config"
	"infra-monitor/internal/model"
)

// HealthCollector checks application health endpoints. Unreachability is
// reported as a status sample, never as a collection error.
type HealthCollector struct {
	config *config.HealthCollectorConfig
	client *health.Client
	now    func() time.Time
	logger zerolog.Logger
}

// NewHealthCollector creates a new HealthCollector instance.
func NewHealthCollector(cfg *config.HealthCollectorConfig, logger zerolog.Logger) *HealthCollector {
	return &HealthCollector{
		config: cfg,
		client: health.NewClient(cfg, logger),
		now:    time.Now,
		logger: logger.With().Str("component", "health-collector").Logger(),
	}
}

// Supports implements Collector.
func (c *HealthCollector) Supports() []model.NodeType {
	return []model.NodeType{model.NodeTypeLaravelApp}
}

// TestConnection performs a single health check.
func (c *HealthCollector) TestConnection(ctx context.Context, node *model.Node) (bool, error) {
	url, token := c.target(node)
	if _, err := c.client.Check(ctx, url, token); err != nil {
		c.logger.Warn().Err(err).Str("node", node.Name).Msg("health endpoint connection test failed")
		return false, err
	}
	return true, nil
}

// Collect queries the endpoint up to retries+1 times with a fixed delay and
// always emits a response_time sample covering every attempt.
func (c *HealthCollector) Collect(ctx context.Context, node *model.Node) ([]model.MetricSample, error) {
	url, token := c.target(node)
	retries := c.config.Retries
	if retries < 0 {
		retries = 0
	}

	start := c.now()
	var (
		report  *health.Report
		lastErr error
	)

	for attempt := 0; attempt <= retries; attempt++ {
		r, err := c.client.Check(ctx, url, token)
		if err == nil {
			report = r
			break
		}

		lastErr = err
		c.logger.Debug().
			Err(err).
			Str("node", node.Name).
			Int("attempt", attempt+1).
			Msg("health check attempt failed")

		if attempt < retries {
			if !sleepCtx(ctx, c.config.RetryDelay) {
				break
			}
		}
	}

	elapsed := c.now().Sub(start).Seconds()
	samples := []model.MetricSample{model.NewSample(model.MetricResponseTime, elapsed)}

	if report == nil {
		errText := "Unknown error"
		if lastErr != nil {
			errText = lastErr.Error()
		}
		c.logger.Warn().Str("node", node.Name).Str("url", url).Str("error", errText).Msg("application unreachable")

		return append(samples, model.NewSample(model.MetricStatus, 0).
			WithMeta("status_text", "unreachable").
			WithMeta("error", errText)), nil
	}

	return append(samples, reportSamples(report)...), nil
}

func (c *HealthCollector) target(node *model.Node) (url, token string) {
	var path string
	if creds := node.Credentials.Health; creds != nil {
		path, token = creds.HealthEndpoint, creds.HealthToken
	}
	return health.URL(node.Host, node.PortOr(80), path), token
}

// reportSamples maps a health document to samples; each check becomes a
// sample only when present.
func reportSamples(r *health.Report) []model.MetricSample {
	status := model.NewSample(model.MetricStatus, r.StatusScore()).WithMeta("status_text", r.StatusText())
	if r.HasRecentErrors() {
		status = status.WithMeta("recent_errors", string(r.RecentErrors))
	}
	samples := []model.MetricSample{status}

	if connected, ok := health.Flag(r.Checks.Database); ok {
		samples = append(samples, model.NewSample(model.MetricDatabaseConnected, boolValue(connected)))
	}
	if connected, ok := health.Flag(r.Checks.Cache); ok {
		samples = append(samples, model.NewSample(model.MetricCacheConnected, boolValue(connected)))
	}

	if q := r.Checks.Queue; q != nil {
		if q.Size != nil {
			samples = append(samples, model.NewSample(model.MetricQueueSize, q.Size.Float()))
		}
		if q.Failed != nil {
			samples = append(samples, model.NewSample(model.MetricFailedJobs, q.Failed.Float()))
		}
	}

	if r.ResponseTimeMS != nil {
		samples = append(samples, model.NewSample(model.MetricInternalResponseTime, r.ResponseTimeMS.Float()/1000))
	}

	return samples
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// sleepCtx waits for d or until ctx is done; it reports whether the full
// delay elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
