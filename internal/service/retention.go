package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"infra-monitor/internal/config"
	"infra-monitor/internal/telemetry"
)

// DefaultRetentionDays is used when neither the caller nor the config sets a
// retention horizon.
const DefaultRetentionDays = 7

// RetentionStore is the store surface used by the retention sweep.
type RetentionStore interface {
	Cleanup(ctx context.Context, cutoff time.Time) (int64, error)
	CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionResult is the outcome of one retention sweep.
type RetentionResult struct {
	Days    int       // 保留天数
	Cutoff  time.Time // 截止时间
	DryRun  bool      // 是否仅统计
	Matched int64     // 删除（或将删除）的样本数
}

// Retention deletes samples older than the retention horizon.
type Retention struct {
	store       RetentionStore
	defaultDays int
	metrics     *telemetry.Metrics
	now         func() time.Time
	logger      zerolog.Logger
}

// RetentionOption is a functional option for configuring a Retention.
type RetentionOption func(*Retention)

// WithRetentionMetrics records deleted sample counts on m.
func WithRetentionMetrics(m *telemetry.Metrics) RetentionOption {
	return func(r *Retention) {
		r.metrics = m
	}
}

// WithRetentionClock overrides the clock used to compute the cutoff.
func WithRetentionClock(now func() time.Time) RetentionOption {
	return func(r *Retention) {
		r.now = now
	}
}

// NewRetention creates a new Retention.
func NewRetention(cfg *config.RetentionConfig, store RetentionStore, logger zerolog.Logger, opts ...RetentionOption) *Retention {
	r := &Retention{
		store:       store,
		defaultDays: DefaultRetentionDays,
		now:         time.Now,
		logger:      logger.With().Str("component", "retention").Logger(),
	}
	if cfg != nil && cfg.Days > 0 {
		r.defaultDays = cfg.Days
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run deletes samples recorded before now - days. days <= 0 uses the
// configured horizon. With dryRun set, candidates are only counted.
func (r *Retention) Run(ctx context.Context, days int, dryRun bool) (*RetentionResult, error) {
	started := r.now()
	if days <= 0 {
		days = r.defaultDays
	}

	result := &RetentionResult{
		Days:   days,
		Cutoff: started.Add(-time.Duration(days) * 24 * time.Hour),
		DryRun: dryRun,
	}

	r.logger.Info().
		Int("days", days).
		Time("cutoff", result.Cutoff).
		Bool("dry_run", dryRun).
		Msg("starting retention sweep")

	if dryRun {
		n, err := r.store.CountOlderThan(ctx, result.Cutoff)
		if err != nil {
			return nil, fmt.Errorf("failed to count expired samples: %w", err)
		}
		result.Matched = n
		return result, nil
	}

	n, err := r.store.Cleanup(ctx, result.Cutoff)
	result.Matched = n
	r.metrics.RecordRetentionDeleted(n)
	r.metrics.ObserveSweep("retention", r.now().Sub(started))
	if err != nil {
		return result, fmt.Errorf("failed to delete expired samples: %w", err)
	}

	r.logger.Info().Int64("deleted", n).Msg("retention sweep completed")
	return result, nil
}
