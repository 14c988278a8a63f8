package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"infra-monitor/internal/config"
	"infra-monitor/internal/model"
	"infra-monitor/internal/notify"
	"infra-monitor/internal/store"
	"infra-monitor/internal/telemetry"
)

// RuleStore is the store surface used by alert evaluation.
type RuleStore interface {
	ActiveRules(ctx context.Context) ([]*model.AlertRule, error)
	ActiveNodes(ctx context.Context, filter model.NodeFilter) ([]*model.Node, error)
	GetNode(ctx context.Context, id int64) (*model.Node, error)
	LatestValue(ctx context.Context, nodeID int64, metricType string) (float64, bool, error)
	RecordTrigger(ctx context.Context, ruleID, nodeID int64, value float64, message string, at time.Time) (*model.AlertLogEntry, error)
}

// Dispatcher delivers a triggered alert over its rule's channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, event notify.Event) error
}

// TriggeredAlert is one rule trigger produced by an evaluation pass.
type TriggeredAlert struct {
	Rule  *model.AlertRule     // 触发规则
	Node  *model.Node          // 触发节点
	Value float64              // 指标值
	Log   *model.AlertLogEntry // 告警日志
}

// EvaluationResult is the outcome of one evaluation pass.
type EvaluationResult struct {
	RulesChecked   int              // 检查的规则数
	OnCooldown     int              // 冷却中跳过的规则数
	Triggered      []TriggeredAlert // 本次触发
	NotifyFailures int              // 通知失败次数
	RecordFailures int              // 告警日志写入失败次数
	Duration       time.Duration    // 耗时
}

// Evaluator checks active alert rules against the latest metric values.
type Evaluator struct {
	store           RuleStore
	dispatcher      Dispatcher
	defaultCooldown time.Duration
	metrics         *telemetry.Metrics
	now             func() time.Time
	logger          zerolog.Logger
}

// EvaluatorOption is a functional option for configuring an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithEvaluatorMetrics records triggers and notification failures on m.
func WithEvaluatorMetrics(m *telemetry.Metrics) EvaluatorOption {
	return func(e *Evaluator) {
		e.metrics = m
	}
}

// WithEvaluatorClock overrides the clock used for cooldown and trigger time.
func WithEvaluatorClock(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) {
		e.now = now
	}
}

// NewEvaluator creates a new Evaluator.
func NewEvaluator(
	cfg *config.AlertingConfig,
	rules RuleStore,
	dispatcher Dispatcher,
	logger zerolog.Logger,
	opts ...EvaluatorOption,
) *Evaluator {
	e := &Evaluator{
		store:      rules,
		dispatcher: dispatcher,
		now:        time.Now,
		logger:     logger.With().Str("component", "evaluator").Logger(),
	}
	if cfg != nil {
		e.defaultCooldown = cfg.DefaultCooldown
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CheckAlerts runs one evaluation pass over all active rules.
//
// A rule on cooldown is skipped entirely. Otherwise its target nodes are
// checked in order; the first trigger records the alert log entry, advances
// the rule's last trigger time and suppresses the rest of the pass for that
// rule, so a global rule fires at most once per cooldown. Notification
// failures are logged and counted but never undo the log entry. A rule whose
// log entry cannot be written is counted and the pass moves on to the next
// rule.
func (e *Evaluator) CheckAlerts(ctx context.Context) (*EvaluationResult, error) {
	started := e.now()
	result := &EvaluationResult{}

	rules, err := e.store.ActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active rules: %w", err)
	}

	var activeNodes []*model.Node
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.RulesChecked++

		if rule.Cooldown <= 0 && e.defaultCooldown > 0 {
			rule.Cooldown = e.defaultCooldown
		}

		now := e.now()
		if rule.IsOnCooldown(now) {
			result.OnCooldown++
			e.logger.Debug().Int64("alert_id", rule.ID).Msg("rule on cooldown, skipping")
			continue
		}

		var targets []*model.Node
		if rule.IsGlobal() {
			if activeNodes == nil {
				if activeNodes, err = e.store.ActiveNodes(ctx, model.NodeFilter{}); err != nil {
					e.logger.Error().Err(err).Int64("alert_id", rule.ID).Msg("failed to list active nodes")
					continue
				}
			}
			targets = activeNodes
		} else {
			node, err := e.store.GetNode(ctx, *rule.NodeID)
			if errors.Is(err, store.ErrNotFound) {
				e.logger.Warn().Int64("alert_id", rule.ID).Int64("node_id", *rule.NodeID).Msg("rule references missing node")
				continue
			}
			if err != nil {
				e.logger.Error().Err(err).Int64("alert_id", rule.ID).Int64("node_id", *rule.NodeID).Msg("failed to load rule node")
				continue
			}
			targets = []*model.Node{node}
		}

		for _, node := range targets {
			if rule.IsOnCooldown(now) {
				break
			}

			value, ok, err := e.store.LatestValue(ctx, node.ID, rule.MetricType)
			if err != nil {
				e.logger.Error().Err(err).Str("node", node.Name).Str("metric", rule.MetricType).Msg("failed to read latest value")
				continue
			}
			if !ok || !rule.Evaluate(value) {
				continue
			}

			triggered, err := e.trigger(ctx, rule, node, value, now)
			if err != nil {
				result.RecordFailures++
				e.logger.Error().Err(err).Int64("alert_id", rule.ID).Str("node", node.Name).Msg("failed to record alert")
				break
			}
			result.Triggered = append(result.Triggered, *triggered)

			if err := e.notify(ctx, triggered); err != nil {
				result.NotifyFailures++
			}
		}
	}

	result.Duration = e.now().Sub(started)
	e.metrics.ObserveSweep("evaluate", result.Duration)

	e.logger.Info().
		Int("rules", result.RulesChecked).
		Int("on_cooldown", result.OnCooldown).
		Int("triggered", len(result.Triggered)).
		Int("notify_failures", result.NotifyFailures).
		Int("record_failures", result.RecordFailures).
		Msg("alert evaluation completed")

	return result, nil
}

// trigger writes the alert log entry and updates the in-memory rule.
func (e *Evaluator) trigger(ctx context.Context, rule *model.AlertRule, node *model.Node, value float64, at time.Time) (*TriggeredAlert, error) {
	message := rule.Message(node.Name, value)

	entry, err := e.store.RecordTrigger(ctx, rule.ID, node.ID, value, message, at)
	if err != nil {
		return nil, fmt.Errorf("failed to record trigger for rule %d: %w", rule.ID, err)
	}

	triggeredAt := entry.CreatedAt
	rule.LastTriggeredAt = &triggeredAt
	e.metrics.RecordAlertTriggered(string(rule.Channel))

	e.logger.Info().
		Int64("alert_id", rule.ID).
		Str("node", node.Name).
		Str("metric_type", rule.MetricType).
		Float64("value", value).
		Float64("threshold", rule.Threshold).
		Msg("alert triggered")

	return &TriggeredAlert{Rule: rule, Node: node, Value: value, Log: entry}, nil
}

func (e *Evaluator) notify(ctx context.Context, t *TriggeredAlert) error {
	if e.dispatcher == nil {
		return nil
	}

	err := e.dispatcher.Dispatch(ctx, notify.Event{
		Rule:        t.Rule,
		Node:        t.Node,
		Value:       t.Value,
		Message:     t.Log.Message,
		TriggeredAt: t.Log.CreatedAt,
	})
	if err != nil {
		e.metrics.RecordNotificationFailure(string(t.Rule.Channel))
		e.logger.Error().
			Err(err).
			Int64("alert_id", t.Rule.ID).
			Str("channel", string(t.Rule.Channel)).
			Msg("failed to send alert notification")
	}
	return err
}
