package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"infra-monitor/internal/collector"
	"infra-monitor/internal/config"
	"infra-monitor/internal/notify"
	"infra-monitor/internal/service"
	"infra-monitor/internal/store"
	"infra-monitor/internal/telemetry"
)

// app bundles the configuration, logger and store shared by the commands.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	store  *store.Store
}

// bootstrap loads the env file and configuration, sets up logging and opens
// the metric store. Any failure is printed and exits the process.
func bootstrap() *app {
	if err := config.LoadEnvFile(GetEnvFile()); err != nil {
		fail("加载环境变量文件失败", err)
	}

	configPath := GetConfigFile()
	cfg, err := config.Load(configPath)
	if err != nil {
		tmpLogger := setupLogger("error", "console")
		tmpLogger.Error().Err(err).Str("path", configPath).Msg("failed to load config")
		fail("加载配置失败", err)
	}

	// Command line --log-level overrides config file setting
	level := cfg.Logging.Level
	if rootCmd.PersistentFlags().Changed("log-level") {
		level = GetLogLevel()
	}
	logger := setupLogger(level, cfg.Logging.Format)
	logger.Debug().
		Str("config_path", configPath).
		Str("log_level", level).
		Str("log_format", cfg.Logging.Format).
		Msg("configuration loaded successfully")

	st, err := store.Open(cfg.Database.Path, cfg.Database.BusyTimeout, logger,
		store.WithChunkSize(cfg.Retention.ChunkSize))
	if err != nil {
		logger.Error().Err(err).Str("path", cfg.Database.Path).Msg("failed to open database")
		fail("打开指标库失败", err)
	}

	return &app{cfg: cfg, logger: logger, store: st}
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("failed to close database")
	}
}

func (a *app) sweeper(opts ...service.SweeperOption) *service.Sweeper {
	collectors := collector.NewRegistry(&a.cfg.Collectors, a.logger)
	return service.NewSweeper(&a.cfg.Collection, a.store, collectors, a.logger, opts...)
}

func (a *app) evaluator(opts ...service.EvaluatorOption) *service.Evaluator {
	dispatcher := notify.NewDispatcher(&a.cfg.Notifications, a.logger)
	return service.NewEvaluator(&a.cfg.Alerting, a.store, dispatcher, a.logger, opts...)
}

func (a *app) retention(metrics *telemetry.Metrics) *service.Retention {
	return service.NewRetention(&a.cfg.Retention, a.store, a.logger, service.WithRetentionMetrics(metrics))
}

// timezone returns the configured report timezone, Asia/Shanghai by default.
func (a *app) timezone() *time.Location {
	name := a.cfg.Report.Timezone
	if name == "" {
		name = "Asia/Shanghai"
	}
	tz, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return tz
}

// setupLogger creates a zerolog logger writing json or console output to stderr.
func setupLogger(level string, format string) zerolog.Logger {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	// Log timestamps in Asia/Shanghai
	tz, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		tz = time.Local
	}
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().In(tz)
	}

	var output io.Writer
	if format == "json" {
		output = os.Stderr
	} else {
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		}
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

// fail prints the error and exits with status 1.
func fail(msg string, err error) {
	fmt.Fprintf(os.Stderr, "❌ %s: %v\n", msg, err)
	os.Exit(1)
}
