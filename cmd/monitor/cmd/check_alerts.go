package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"infra-monitor/internal/service"
)

// checkAlertsCmd represents the check-alerts command.
var checkAlertsCmd = &cobra.Command{
	Use:   "check-alerts",
	Short: "评估告警规则",
	Long: `对所有启用的告警规则执行一次评估。
冷却中的规则被跳过；触发的规则写入告警日志并按渠道发送通知。
通知失败只记录日志，不影响退出码。`,
	Run: runCheckAlerts,
}

func init() {
	rootCmd.AddCommand(checkAlertsCmd)
}

func runCheckAlerts(cmd *cobra.Command, args []string) {
	a := bootstrap()
	defer a.close()

	fmt.Println("Checking alerts...")
	result, err := a.evaluator().CheckAlerts(context.Background())
	if err != nil {
		a.close()
		fail("告警评估失败", err)
	}

	printEvaluation(result)
}

func printEvaluation(result *service.EvaluationResult) {
	if len(result.Triggered) == 0 {
		fmt.Println("No alerts triggered.")
		printFailures(result)
		return
	}

	fmt.Printf("Triggered %d alert(s):\n", len(result.Triggered))
	for _, t := range result.Triggered {
		fmt.Printf("  - [%s] %s: %s = %.2f (threshold: %s %.2f)\n",
			t.Node.Name, t.Rule.Name, t.Rule.MetricType, t.Value,
			t.Rule.Condition.Label(), t.Rule.Threshold)
	}
	printFailures(result)
}

func printFailures(result *service.EvaluationResult) {
	if result.NotifyFailures > 0 {
		fmt.Printf("%d notification(s) failed, see logs.\n", result.NotifyFailures)
	}
	if result.RecordFailures > 0 {
		fmt.Printf("%d alert(s) could not be recorded, see logs.\n", result.RecordFailures)
	}
}
