package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"infra-monitor/internal/store"
)

var testNodeID int64 // Node to test

// testCmd represents the test command.
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "测试节点连接",
	Long: `对指定节点执行采集器连接测试，输出是否成功以及失败类别
(timeout, refused, auth_failed, api_error)。失败时以退出码 1 结束。

示例:
  monitor test --node 3`,
	Run: runTest,
}

func init() {
	rootCmd.AddCommand(testCmd)

	testCmd.Flags().Int64Var(&testNodeID, "node", 0, "节点 ID")
	testCmd.MarkFlagRequired("node")
}

func runTest(cmd *cobra.Command, args []string) {
	a := bootstrap()
	defer a.close()

	ctx := context.Background()
	node, err := a.store.GetNode(ctx, testNodeID)
	if errors.Is(err, store.ErrNotFound) {
		a.close()
		fail("节点不存在", err)
	}
	if err != nil {
		a.close()
		fail("读取节点失败", err)
	}

	result := a.sweeper().TestConnection(ctx, node)
	if result.Success {
		fmt.Printf("✅ %s (%s) 连接正常\n", node.Name, node.Type.DisplayName())
		return
	}

	fmt.Printf("❌ %s (%s) 连接失败 [%s]: %s\n", node.Name, node.Type.DisplayName(), result.Kind, result.Error)
	a.close()
	os.Exit(1)
}
