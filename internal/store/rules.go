package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"infra-monitor/internal/model"
)

const ruleColumns = `id, name, node_id, metric_type, condition, threshold, channel, target,
	is_active, cooldown_seconds, last_triggered_at`

// ActiveRules returns every active alert rule ordered by id.
func (s *Store) ActiveRules(ctx context.Context) ([]*model.AlertRule, error) {
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM alert_rules WHERE is_active = 1 ORDER BY id ASC`)
}

// GetRule returns a rule by id, or ErrNotFound.
func (s *Store) GetRule(ctx context.Context, id int64) (*model.AlertRule, error) {
	rules, err := s.queryRules(ctx, `SELECT `+ruleColumns+` FROM alert_rules WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("alert rule %d: %w", id, ErrNotFound)
	}
	return rules[0], nil
}

// ActiveRuleCount returns the number of active rules.
func (s *Store) ActiveRuleCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alert_rules WHERE is_active = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count active rules: %w", err)
	}
	return n, nil
}

// UpsertRule inserts or updates a rule keyed by name and returns its id.
// The trigger state is left untouched on update.
func (s *Store) UpsertRule(ctx context.Context, rule *model.AlertRule) (int64, error) {
	var nodeID sql.NullInt64
	if rule.NodeID != nil {
		nodeID = sql.NullInt64{Int64: *rule.NodeID, Valid: true}
	}
	cooldown := rule.EffectiveCooldown()

	now := toMillis(s.now())
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO alert_rules (name, node_id, metric_type, condition, threshold, channel, target,
			is_active, cooldown_seconds, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			node_id = excluded.node_id,
			metric_type = excluded.metric_type,
			condition = excluded.condition,
			threshold = excluded.threshold,
			channel = excluded.channel,
			target = excluded.target,
			is_active = excluded.is_active,
			cooldown_seconds = excluded.cooldown_seconds,
			updated_at = excluded.updated_at`,
		rule.Name, nodeID, rule.MetricType, string(rule.Condition), roundValue(rule.Threshold),
		string(rule.Channel), rule.Target, boolToInt(rule.Active), int64(cooldown/time.Second), now, now); err != nil {
		return 0, fmt.Errorf("failed to upsert alert rule %s: %w", rule.Name, err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM alert_rules WHERE name = ?`, rule.Name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to resolve rule id for %s: %w", rule.Name, err)
	}
	rule.ID = id
	return id, nil
}

// RecordTrigger appends the alert log entry and advances the rule's
// last_triggered_at in one transaction.
func (s *Store) RecordTrigger(ctx context.Context, ruleID, nodeID int64, value float64, message string, at time.Time) (*model.AlertLogEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ts := toMillis(at)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO alert_logs (alert_id, node_id, metric_value, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		ruleID, nodeID, roundValue(value), message, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to insert alert log: %w", err)
	}
	logID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read alert log id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE alert_rules SET last_triggered_at = ?, updated_at = ? WHERE id = ?`, ts, ts, ruleID); err != nil {
		return nil, fmt.Errorf("failed to update last_triggered_at: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit trigger: %w", err)
	}

	return &model.AlertLogEntry{
		ID:          logID,
		AlertID:     ruleID,
		NodeID:      nodeID,
		MetricValue: roundValue(value),
		Message:     message,
		CreatedAt:   fromMillis(ts),
	}, nil
}

// RecentAlertLogs returns the newest alert log entries.
func (s *Store) RecentAlertLogs(ctx context.Context, limit int) ([]*model.AlertLogEntry, error) {
	return s.queryLogs(ctx,
		`SELECT id, alert_id, node_id, metric_value, message, created_at
		FROM alert_logs ORDER BY created_at DESC, id DESC LIMIT ?`, normalizeLimit(limit))
}

// AlertLogsForNode returns the newest alert log entries of one node.
func (s *Store) AlertLogsForNode(ctx context.Context, nodeID int64, limit int) ([]*model.AlertLogEntry, error) {
	return s.queryLogs(ctx,
		`SELECT id, alert_id, node_id, metric_value, message, created_at
		FROM alert_logs WHERE node_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, nodeID, normalizeLimit(limit))
}

// AlertLogsForRule returns the alert log entries of one rule, oldest first.
func (s *Store) AlertLogsForRule(ctx context.Context, ruleID int64) ([]*model.AlertLogEntry, error) {
	return s.queryLogs(ctx,
		`SELECT id, alert_id, node_id, metric_value, message, created_at
		FROM alert_logs WHERE alert_id = ? ORDER BY created_at ASC, id ASC`, ruleID)
}

// TriggeredSince counts alert log entries created at or after since.
func (s *Store) TriggeredSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alert_logs WHERE created_at >= ?`, toMillis(since)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count alert logs: %w", err)
	}
	return n, nil
}

func (s *Store) queryRules(ctx context.Context, query string, args ...any) ([]*model.AlertRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert rules: %w", err)
	}
	defer rows.Close()

	var rules []*model.AlertRule
	for rows.Next() {
		var (
			rule      model.AlertRule
			nodeID    sql.NullInt64
			condition string
			channel   string
			target    sql.NullString
			active    int
			cooldown  int64
			lastTrig  sql.NullInt64
		)
		if err := rows.Scan(&rule.ID, &rule.Name, &nodeID, &rule.MetricType, &condition, &rule.Threshold,
			&channel, &target, &active, &cooldown, &lastTrig); err != nil {
			return nil, fmt.Errorf("failed to scan alert rule: %w", err)
		}

		if nodeID.Valid {
			id := nodeID.Int64
			rule.NodeID = &id
		}
		rule.Condition = model.Condition(condition)
		rule.Channel = model.Channel(channel)
		rule.Target = target.String
		rule.Active = active == 1
		rule.Cooldown = time.Duration(cooldown) * time.Second
		if lastTrig.Valid {
			ts := fromMillis(lastTrig.Int64)
			rule.LastTriggeredAt = &ts
		}
		rules = append(rules, &rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert rules: %w", err)
	}
	return rules, nil
}

func (s *Store) queryLogs(ctx context.Context, query string, args ...any) ([]*model.AlertLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert logs: %w", err)
	}
	defer rows.Close()

	var logs []*model.AlertLogEntry
	for rows.Next() {
		var (
			entry     model.AlertLogEntry
			createdAt int64
		)
		if err := rows.Scan(&entry.ID, &entry.AlertID, &entry.NodeID, &entry.MetricValue, &entry.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert log: %w", err)
		}
		entry.CreatedAt = fromMillis(createdAt)
		logs = append(logs, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert logs: %w", err)
	}
	return logs, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
