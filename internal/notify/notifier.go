// Package notify delivers alert notifications over mail, chat webhooks or
// the audit log.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"infra-monitor/internal/config"
	"infra-monitor/internal/model"
)

// Event is a single alert trigger to be delivered.
type Event struct {
	Rule        *model.AlertRule // 触发的规则
	Node        *model.Node      // 触发节点
	Value       float64          // 触发时的指标值
	Message     string           // 告警消息
	TriggeredAt time.Time        // 触发时间
}

// Notifier delivers events over one channel.
type Notifier interface {
	// Name returns the channel name.
	Name() string

	// Notify delivers the event to target.
	Notify(ctx context.Context, target string, event Event) error
}

// Dispatcher selects the notifier for a rule's channel.
type Dispatcher struct {
	notifiers map[model.Channel]Notifier
	logger    zerolog.Logger
}

// NewDispatcher creates a dispatcher with the mail, chat and audit notifiers.
func NewDispatcher(cfg *config.NotificationsConfig, logger zerolog.Logger) *Dispatcher {
	return NewDispatcherWith(logger, map[model.Channel]Notifier{
		model.ChannelMail:     NewMailNotifier(&cfg.Mail, logger),
		model.ChannelSlack:    NewChatNotifier(&cfg.Chat, logger),
		model.ChannelDatabase: NewAuditNotifier(logger),
	})
}

// NewDispatcherWith creates a dispatcher from explicit notifiers.
func NewDispatcherWith(logger zerolog.Logger, notifiers map[model.Channel]Notifier) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		logger:    logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch delivers the event over the rule's channel. An empty target on
// an external channel is a silent no-op.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	channel := event.Rule.Channel
	n, ok := d.notifiers[channel]
	if !ok {
		return fmt.Errorf("no notifier for channel %q", channel)
	}

	if event.Rule.Target == "" && channel != model.ChannelDatabase {
		d.logger.Debug().
			Int64("alert_id", event.Rule.ID).
			Str("channel", string(channel)).
			Msg("no notification target, skipping")
		return nil
	}

	if err := n.Notify(ctx, event.Rule.Target, event); err != nil {
		return fmt.Errorf("%s notification failed: %w", n.Name(), err)
	}

	d.logger.Debug().
		Int64("alert_id", event.Rule.ID).
		Str("channel", n.Name()).
		Str("node", event.Node.Name).
		Msg("notification delivered")
	return nil
}

// AuditNotifier writes the event to the log only; the alert log entry is
// the durable record.
type AuditNotifier struct {
	logger zerolog.Logger
}

// NewAuditNotifier creates a new AuditNotifier.
func NewAuditNotifier(logger zerolog.Logger) *AuditNotifier {
	return &AuditNotifier{logger: logger.With().Str("component", "audit-notifier").Logger()}
}

// Name implements Notifier.
func (n *AuditNotifier) Name() string {
	return "database"
}

// Notify implements Notifier.
func (n *AuditNotifier) Notify(_ context.Context, _ string, event Event) error {
	n.logger.Info().
		Str("node", event.Node.Name).
		Str("metric", event.Rule.MetricType).
		Float64("value", event.Value).
		Str("message", event.Message).
		Msg("Monitor Alert")
	return nil
}
