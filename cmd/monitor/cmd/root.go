// Package cmd provides CLI commands for the infrastructure monitor.
package cmd

import (
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information, injected at build time via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Global flags
var (
	cfgFile  string // Config file path
	logLevel string // Log level
	envFile  string // Dotenv file path
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "monitor",
	Short: "基础设施监控工具 - 采集节点指标、评估告警并发送通知",
	Long: `基础设施监控工具定期采集 Synology NAS、Docker 主机、Galera 集群
和 Laravel 应用健康端点的指标，写入本地 SQLite 指标库，
按告警规则评估并通过邮件、Slack 或数据库审计渠道通知。

数据流: 节点 → 采集器 → 指标库 → 告警评估 → 通知 / 查询 API / Prometheus

主要功能:
  - 并发采集各类节点指标，单个节点失败不影响其他节点
  - 按规则评估最新指标，支持冷却时间和全局规则
  - 按保留天数清理历史指标
  - 提供只读查询 API、Prometheus 指标导出和 Excel/HTML 状态报告`,
	Version: Version,
	// Run displays help when called without any subcommands
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "日志级别 (debug, info, warn, error)，覆盖配置文件")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "环境变量文件路径（不存在时忽略）")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// GetConfigFile returns the config file path from command line flag.
func GetConfigFile() string {
	return cfgFile
}

// GetLogLevel returns the log level from command line flag.
func GetLogLevel() string {
	return logLevel
}

// GetEnvFile returns the dotenv file path from command line flag.
func GetEnvFile() string {
	return envFile
}

// GetVersionInfo returns formatted version information.
func GetVersionInfo() string {
	return Version + "\n" +
		"Build Time: " + BuildTime + "\n" +
		"Git Commit: " + GitCommit + "\n" +
		"Go Version: " + runtime.Version() + "\n" +
		"OS/Arch: " + runtime.GOOS + "/" + runtime.GOARCH
}
