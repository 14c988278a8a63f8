package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"infra-monitor/internal/config"
	"infra-monitor/internal/service"
)

var inventoryFile string // Inventory file path

// inventoryCmd groups the inventory subcommands.
var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "管理节点和告警规则清单",
}

// inventoryApplyCmd represents the inventory apply command.
var inventoryApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "将清单文件写入指标库",
	Long: `读取 YAML 清单文件，按名称新增或更新节点和告警规则。
规则的 node 字段引用清单中的节点名称；为空表示全局规则。

示例:
  monitor inventory apply -f inventory.yaml`,
	Run: runInventoryApply,
}

func init() {
	rootCmd.AddCommand(inventoryCmd)
	inventoryCmd.AddCommand(inventoryApplyCmd)

	inventoryApplyCmd.Flags().StringVarP(&inventoryFile, "file", "f", "inventory.yaml", "清单文件路径")
}

func runInventoryApply(cmd *cobra.Command, args []string) {
	inv, err := config.LoadInventory(inventoryFile)
	if err != nil {
		fail("加载清单失败", err)
	}

	a := bootstrap()
	defer a.close()

	result, err := service.ApplyInventory(context.Background(), a.store, inv, a.logger)
	if err != nil {
		a.close()
		fail("写入清单失败", err)
	}

	for _, n := range result.Nodes {
		fmt.Printf("  node #%d %s (%s) %s\n", n.ID, n.Name, n.Type, n.Host)
	}
	for _, r := range result.Rules {
		scope := "global"
		if r.NodeID != nil {
			scope = fmt.Sprintf("node #%d", *r.NodeID)
		}
		fmt.Printf("  rule #%d %s: %s %s [%s → %s]\n", r.ID, r.Name, r.MetricType, r.ThresholdText(), scope, r.Channel)
	}
	fmt.Printf("✅ 已应用 %d 个节点, %d 条规则\n", len(result.Nodes), len(result.Rules))
}
