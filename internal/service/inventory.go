package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"infra-monitor/internal/config"
	"infra-monitor/internal/model"
)

// InventoryStore is the write surface used to apply an inventory.
type InventoryStore interface {
	UpsertNode(ctx context.Context, node *model.Node) (int64, error)
	UpsertRule(ctx context.Context, rule *model.AlertRule) (int64, error)
}

// ApplyResult lists what an inventory apply wrote.
type ApplyResult struct {
	Nodes []*model.Node      // 写入的节点
	Rules []*model.AlertRule // 写入的规则
}

// ApplyInventory upserts the inventory nodes, then the rules with their node
// names resolved to store ids. Entries are keyed by name, so applying the
// same file twice is a no-op apart from updated_at.
func ApplyInventory(ctx context.Context, store InventoryStore, inv *config.Inventory, logger zerolog.Logger) (*ApplyResult, error) {
	logger = logger.With().Str("component", "inventory").Logger()
	result := &ApplyResult{}

	nodeIDs := make(map[string]int64, len(inv.Nodes))
	for i := range inv.Nodes {
		node, err := inv.Nodes[i].ToNode()
		if err != nil {
			return result, fmt.Errorf("node %s: %w", inv.Nodes[i].Name, err)
		}
		id, err := store.UpsertNode(ctx, node)
		if err != nil {
			return result, err
		}
		nodeIDs[node.Name] = id
		result.Nodes = append(result.Nodes, node)
		logger.Debug().Str("node", node.Name).Int64("id", id).Msg("node applied")
	}

	for i := range inv.Rules {
		rule, err := inv.Rules[i].ToRule(nodeIDs)
		if err != nil {
			return result, err
		}
		if _, err := store.UpsertRule(ctx, rule); err != nil {
			return result, err
		}
		result.Rules = append(result.Rules, rule)
		logger.Debug().Str("rule", rule.Name).Int64("id", rule.ID).Msg("rule applied")
	}

	logger.Info().
		Int("nodes", len(result.Nodes)).
		Int("rules", len(result.Rules)).
		Msg("inventory applied")
	return result, nil
}
