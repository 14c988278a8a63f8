package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"infra-monitor/internal/config"
	"infra-monitor/internal/model"
)

const (
	defaultTimezone        = "Asia/Shanghai"
	defaultFreshnessWindow = 5 * time.Minute
	defaultAlertLogLimit   = 50
)

// ReportStore is the store surface used to build status reports.
type ReportStore interface {
	SnapshotStore
	RecentAlertLogs(ctx context.Context, limit int) ([]*model.AlertLogEntry, error)
	ActiveRuleCount(ctx context.Context) (int, error)
	TriggeredSince(ctx context.Context, since time.Time) (int, error)
}

// Reporter builds point-in-time status reports from the store.
type Reporter struct {
	store    ReportStore
	window   time.Duration
	logLimit int
	timezone *time.Location
	version  string
	now      func() time.Time
	logger   zerolog.Logger
}

// ReporterOption is a functional option for configuring a Reporter.
type ReporterOption func(*Reporter)

// WithVersion sets the tool version included in the report.
func WithVersion(version string) ReporterOption {
	return func(r *Reporter) {
		r.version = version
	}
}

// WithReporterClock overrides the report clock.
func WithReporterClock(now func() time.Time) ReporterOption {
	return func(r *Reporter) {
		r.now = now
	}
}

// NewReporter creates a new Reporter.
func NewReporter(cfg *config.Config, store ReportStore, logger zerolog.Logger, opts ...ReporterOption) (*Reporter, error) {
	tzName := defaultTimezone
	window := defaultFreshnessWindow
	logLimit := defaultAlertLogLimit
	if cfg != nil {
		if cfg.Report.Timezone != "" {
			tzName = cfg.Report.Timezone
		}
		if cfg.Collection.FreshnessWindow > 0 {
			window = cfg.Collection.FreshnessWindow
		}
		if cfg.Report.AlertLogLimit > 0 {
			logLimit = cfg.Report.AlertLogLimit
		}
	}

	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", tzName, err)
	}

	r := &Reporter{
		store:    store,
		window:   window,
		logLimit: logLimit,
		timezone: loc,
		version:  "dev",
		now:      time.Now,
		logger:   logger.With().Str("component", "reporter").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Build collects every node with its fresh latest samples, the recent alert
// log and the galera roll-up into a StatusReport.
func (r *Reporter) Build(ctx context.Context) (*model.StatusReport, error) {
	now := r.now().In(r.timezone)
	report := &model.StatusReport{
		GeneratedAt: now,
		Version:     r.version,
	}

	nodes, err := r.store.ListNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	var galera []*model.NodeSnapshot
	for _, node := range nodes {
		samples, err := r.store.Latest(ctx, node.ID, r.window)
		if err != nil {
			return nil, fmt.Errorf("failed to read latest metrics for %s: %w", node.Name, err)
		}
		for i := range samples {
			samples[i].RecordedAt = samples[i].RecordedAt.In(r.timezone)
		}

		snap := &model.NodeSnapshot{Node: node, Metrics: samples}
		report.Nodes = append(report.Nodes, snap)
		if snap.Stale() {
			report.Summary.StaleNodes++
		}
		if node.Type == model.NodeTypeGalera {
			galera = append(galera, snap)
		}
	}
	report.Summary.TotalNodes = len(report.Nodes)

	if len(galera) > 0 {
		report.Galera = summarizeGalera(galera)
	}

	if report.AlertLogs, err = r.store.RecentAlertLogs(ctx, r.logLimit); err != nil {
		return nil, fmt.Errorf("failed to read alert logs: %w", err)
	}
	for _, entry := range report.AlertLogs {
		entry.CreatedAt = entry.CreatedAt.In(r.timezone)
	}
	report.Summary.RecentEntries = len(report.AlertLogs)

	if report.Summary.ActiveRules, err = r.store.ActiveRuleCount(ctx); err != nil {
		return nil, fmt.Errorf("failed to count active rules: %w", err)
	}
	if report.Summary.Triggered24h, err = r.store.TriggeredSince(ctx, now.Add(-24*time.Hour)); err != nil {
		return nil, fmt.Errorf("failed to count recent triggers: %w", err)
	}

	r.logger.Info().
		Int("nodes", report.Summary.TotalNodes).
		Int("stale", report.Summary.StaleNodes).
		Int("alert_logs", report.Summary.RecentEntries).
		Msg("status report built")

	return report, nil
}

// Timezone returns the report timezone.
func (r *Reporter) Timezone() *time.Location {
	return r.timezone
}
