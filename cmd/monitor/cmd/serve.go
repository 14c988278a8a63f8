package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"infra-monitor/internal/api"
	"infra-monitor/internal/config"
	"infra-monitor/internal/model"
	"infra-monitor/internal/service"
	"infra-monitor/internal/telemetry"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动常驻服务",
	Long: `启动内置调度器和只读查询 API：
1. 按 server.collect_interval 周期采集全部启用节点
2. 按 server.evaluate_interval 周期评估告警规则
3. 每天 server.retention_at 清理过期指标
4. 在 server.listen 提供查询 API、/healthz 和 /metrics

收到 SIGINT 或 SIGTERM 后优雅退出。`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	a := bootstrap()
	defer a.close()

	retentionAt, err := config.ParseClock(a.cfg.Server.RetentionAt)
	if err != nil {
		a.close()
		fail("配置错误", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		telemetry.NewExposition(a.store, a.cfg.Collection.FreshnessWindow, a.logger),
	)
	metrics := telemetry.NewMetrics(reg)

	sweeper := a.sweeper(service.WithSweeperMetrics(metrics))
	evaluator := a.evaluator(service.WithEvaluatorMetrics(metrics))
	retention := a.retention(metrics)

	sched := service.NewScheduler(a.logger)
	sched.Every("collect", a.cfg.Server.CollectInterval, func(ctx context.Context) error {
		result, err := sweeper.CollectAll(ctx, model.NodeFilter{})
		if err != nil {
			return err
		}
		if result.Failed > 0 {
			return fmt.Errorf("%d of %d node(s) failed", result.Failed, result.Total)
		}
		return nil
	})
	sched.Every("evaluate", a.cfg.Server.EvaluateInterval, func(ctx context.Context) error {
		_, err := evaluator.CheckAlerts(ctx)
		return err
	})
	sched.Daily("retention", retentionAt, a.timezone(), func(ctx context.Context) error {
		_, err := retention.Run(ctx, 0, false)
		return err
	})

	srv := api.NewServer(&a.cfg.Server, a.cfg.Collection.FreshnessWindow, a.store, a.logger,
		api.WithGatherer(reg),
		api.WithConnectionTester(sweeper),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.logger.Info().
		Str("version", Version).
		Str("listen", a.cfg.Server.Listen).
		Dur("collect_interval", a.cfg.Server.CollectInterval).
		Dur("evaluate_interval", a.cfg.Server.EvaluateInterval).
		Str("retention_at", a.cfg.Server.RetentionAt).
		Msg("monitor started")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(ctx) })
	g.Go(func() error { return srv.Run(ctx) })

	if err := g.Wait(); err != nil {
		a.logger.Error().Err(err).Msg("monitor stopped with error")
		a.close()
		fail("服务异常退出", err)
	}
	a.logger.Info().Msg("monitor stopped")
}
