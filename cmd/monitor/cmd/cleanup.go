package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// Command flags
var (
	cleanupDays   int  // Retention days override
	cleanupDryRun bool // Count only
)

// cleanupCmd represents the cleanup command.
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "清理过期指标",
	Long: `删除早于保留期限的指标样本，分批执行。

示例:
  # 按配置的保留天数清理
  monitor cleanup

  # 仅统计 30 天前的样本数量，不删除
  monitor cleanup --days 30 --dry-run`,
	Run: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 0, "保留天数（默认使用配置 retention.days）")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "仅统计将被删除的样本数")
}

func runCleanup(cmd *cobra.Command, args []string) {
	if cleanupDays < 0 {
		fail("参数错误", fmt.Errorf("--days must be positive, got %d", cleanupDays))
	}

	a := bootstrap()
	defer a.close()

	result, err := a.retention(nil).Run(context.Background(), cleanupDays, cleanupDryRun)
	if err != nil {
		a.close()
		fail("清理失败", err)
	}

	fmt.Printf("Cleaning up metrics older than %d days (before %s)...\n",
		result.Days, result.Cutoff.In(a.timezone()).Format("2006-01-02 15:04:05"))
	if result.DryRun {
		fmt.Printf("Would delete %d metric records.\n", result.Matched)
		return
	}
	fmt.Printf("Deleted %d old metric records.\n", result.Matched)
}
