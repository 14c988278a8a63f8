package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"infra-monitor/internal/model"
	"infra-monitor/internal/service"
)

// Command flags
var (
	collectNodeID int64  // Collect only this node
	collectType   string // Collect only this node type
)

// collectCmd represents the collect command.
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "采集节点指标",
	Long: `对所有启用节点执行一次采集并写入指标库。
单个节点失败不影响其他节点；存在失败节点时以退出码 1 结束。

示例:
  # 采集全部启用节点
  monitor collect -c config.yaml

  # 仅采集指定节点
  monitor collect --node 3

  # 仅采集 Galera 节点
  monitor collect --type galera`,
	Run: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().Int64Var(&collectNodeID, "node", 0, "仅采集指定节点 ID")
	collectCmd.Flags().StringVar(&collectType, "type", "", "仅采集指定类型 (synology, docker, galera, laravel_app)")
}

func runCollect(cmd *cobra.Command, args []string) {
	filter := model.NodeFilter{NodeID: collectNodeID}
	if collectType != "" {
		nodeType, err := model.ParseNodeType(collectType)
		if err != nil {
			fail("参数错误", err)
		}
		filter.Type = nodeType
	}

	a := bootstrap()
	defer a.close()

	fmt.Println("Starting metric collection...")
	result, err := a.sweeper().CollectAll(context.Background(), filter)
	if err != nil {
		a.close()
		fail("采集失败", err)
	}

	if printSweepResult(result) {
		a.close()
		os.Exit(1)
	}
}

// printSweepResult prints the sweep summary and reports whether any node failed.
func printSweepResult(result *service.SweepResult) bool {
	if result.Total == 0 {
		fmt.Println("No active nodes found.")
		return false
	}

	fmt.Printf("Found %d node(s) to collect from.\n", result.Total)
	for _, f := range result.Failures {
		fmt.Printf("  %s (%s): %s failure: %s\n", f.Name, f.Type, f.Kind, f.Error)
	}
	if result.Empty > 0 {
		fmt.Printf("  %d node(s) returned no metrics.\n", result.Empty)
	}

	fmt.Println()
	fmt.Printf("Collection complete: %d successful, %d failed.\n", result.Succeeded, result.Failed)
	return result.Failed > 0
}
