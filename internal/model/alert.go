// Package model provides data models for the monitor.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCooldown applies when a rule does not set its own cooldown.
const DefaultCooldown = 15 * time.Minute

// Condition is the comparison applied between a metric value and a threshold.
type Condition string

const (
	ConditionGT  Condition = "gt"  // 大于
	ConditionGTE Condition = "gte" // 大于等于
	ConditionLT  Condition = "lt"  // 小于
	ConditionLTE Condition = "lte" // 小于等于
	ConditionEQ  Condition = "eq"  // 等于
	ConditionNEQ Condition = "neq" // 不等于
)

// ParseCondition accepts both the short names (gt, gte, ...) and the
// operator symbols (>, >=, ...).
func ParseCondition(s string) (Condition, error) {
	switch strings.TrimSpace(s) {
	case "gt", ">":
		return ConditionGT, nil
	case "gte", ">=":
		return ConditionGTE, nil
	case "lt", "<":
		return ConditionLT, nil
	case "lte", "<=":
		return ConditionLTE, nil
	case "eq", "==", "=":
		return ConditionEQ, nil
	case "neq", "!=":
		return ConditionNEQ, nil
	default:
		return "", fmt.Errorf("unknown condition %q", s)
	}
}

// Evaluate applies the condition with plain float comparison.
// eq and neq compare exactly, so computed values rarely match.
func (c Condition) Evaluate(value, threshold float64) bool {
	switch c {
	case ConditionGT:
		return value > threshold
	case ConditionGTE:
		return value >= threshold
	case ConditionLT:
		return value < threshold
	case ConditionLTE:
		return value <= threshold
	case ConditionEQ:
		return value == threshold
	case ConditionNEQ:
		return value != threshold
	default:
		return false
	}
}

// Label returns the human-readable form used in alert messages.
func (c Condition) Label() string {
	switch c {
	case ConditionGT:
		return "Greater than"
	case ConditionGTE:
		return "Greater than or equal"
	case ConditionLT:
		return "Less than"
	case ConditionLTE:
		return "Less than or equal"
	case ConditionEQ:
		return "Equal to"
	case ConditionNEQ:
		return "Not equal to"
	default:
		return string(c)
	}
}

// Channel is the notification channel of a rule.
type Channel string

const (
	ChannelMail     Channel = "mail"     // 邮件
	ChannelSlack    Channel = "slack"    // 聊天 Webhook
	ChannelDatabase Channel = "database" // 仅审计记录
)

// ParseChannel converts a string into a Channel. "chat" is accepted as an
// alias for slack and "audit" for database.
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mail", "email":
		return ChannelMail, nil
	case "slack", "chat":
		return ChannelSlack, nil
	case "database", "audit":
		return ChannelDatabase, nil
	default:
		return "", fmt.Errorf("unknown notification channel %q", s)
	}
}

// AlertRule is a threshold rule. A nil NodeID makes the rule global: it is
// checked against every active node but keeps a single cooldown.
type AlertRule struct {
	ID              int64         `json:"id"`                          // 规则 ID
	Name            string        `json:"name"`                        // 规则名称（清单中唯一）
	NodeID          *int64        `json:"node_id,omitempty"`           // 绑定节点，nil 表示全局
	MetricType      string        `json:"metric_type"`                 // 指标类型
	Condition       Condition     `json:"condition"`                   // 比较条件
	Threshold       float64       `json:"threshold"`                   // 阈值
	Channel         Channel       `json:"channel"`                     // 通知渠道
	Target          string        `json:"target,omitempty"`            // 通知目标（邮箱 / Webhook）
	Active          bool          `json:"active"`                      // 是否启用
	Cooldown        time.Duration `json:"cooldown"`                    // 冷却时间
	LastTriggeredAt *time.Time    `json:"last_triggered_at,omitempty"` // 上次触发时间
}

// IsGlobal reports whether the rule applies to every active node.
func (r *AlertRule) IsGlobal() bool {
	return r.NodeID == nil
}

// EffectiveCooldown returns the rule cooldown or DefaultCooldown.
func (r *AlertRule) EffectiveCooldown() time.Duration {
	if r.Cooldown <= 0 {
		return DefaultCooldown
	}
	return r.Cooldown
}

// IsOnCooldown reports whether now falls before last trigger + cooldown.
func (r *AlertRule) IsOnCooldown(now time.Time) bool {
	if r.LastTriggeredAt == nil {
		return false
	}
	return now.Before(r.LastTriggeredAt.Add(r.EffectiveCooldown()))
}

// Evaluate applies the rule condition to a value.
func (r *AlertRule) Evaluate(value float64) bool {
	return r.Condition.Evaluate(value, r.Threshold)
}

// Message builds the alert log message for a trigger on the named node.
func (r *AlertRule) Message(nodeName string, value float64) string {
	label := r.Condition.Label()
	return fmt.Sprintf("[%s] %s: %s is %s (threshold: %s %s)",
		nodeName, r.MetricType, FormatValue(value), label, label, FormatValue(r.Threshold))
}

// ThresholdText returns "<label> <threshold>" as shown in notifications.
func (r *AlertRule) ThresholdText() string {
	return r.Condition.Label() + " " + FormatValue(r.Threshold)
}

// FormatValue renders a value with two decimals, rounding half away from zero.
func FormatValue(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// AlertLogEntry is the audit record of a single trigger.
type AlertLogEntry struct {
	ID          int64     `json:"id"`           // 日志 ID
	AlertID     int64     `json:"alert_id"`     // 规则 ID
	NodeID      int64     `json:"node_id"`      // 节点 ID
	MetricValue float64   `json:"metric_value"` // 触发时的指标值
	Message     string    `json:"message"`      // 告警消息
	CreatedAt   time.Time `json:"created_at"`   // 触发时间
}
