package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"infra-monitor/internal/report"
	"infra-monitor/internal/service"
)

// Command flags
var (
	reportFormats []string // Output formats (excel, html)
	reportOutput  string   // Output directory
)

// reportCmd represents the report command.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "生成状态报告",
	Long: `生成当前节点状态、最新指标、最近告警和 Galera 集群汇总的报告。

示例:
  # 使用配置的格式和目录
  monitor report

  # 指定输出格式和目录
  monitor report -f excel,html -o ./reports`,
	Run: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringSliceVarP(&reportFormats, "format", "f", nil, "输出格式 (excel,html)，可用逗号分隔多个")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "输出目录")
}

func runReport(cmd *cobra.Command, args []string) {
	a := bootstrap()
	defer a.close()

	formats := reportFormats
	if len(formats) == 0 {
		formats = a.cfg.Report.Formats
	}
	outputDir := reportOutput
	if outputDir == "" {
		outputDir = a.cfg.Report.OutputDir
	}

	reporter, err := service.NewReporter(a.cfg, a.store, a.logger, service.WithVersion(Version))
	if err != nil {
		a.close()
		fail("初始化报告失败", err)
	}

	status, err := reporter.Build(context.Background())
	if err != nil {
		a.close()
		fail("生成报告数据失败", err)
	}

	registry := report.NewRegistry(reporter.Timezone(), a.cfg.Report.HTMLTemplate)
	base := report.Filename(a.cfg.Report.FilenameTemplate, status.GeneratedAt, reporter.Timezone())
	paths, err := registry.WriteAll(status, outputDir, base, formats)
	for _, p := range paths {
		fmt.Printf("📄 %s\n", p)
	}
	if err != nil {
		a.logger.Error().Err(err).Str("output_dir", outputDir).Msg("failed to write report")
		a.close()
		fail("写入报告失败", err)
	}

	fmt.Printf("✅ 节点 %d 个 (无数据 %d)，24 小时触发 %d 次\n",
		status.Summary.TotalNodes, status.Summary.StaleNodes, status.Summary.Triggered24h)
}
