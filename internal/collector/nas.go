package collector

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"infra-monitor/internal/client/dsm"
	"infra-monitor/internal/config"
	"infra-monitor/internal/model"
)

// NASCollector collects Synology NAS metrics through the DSM Web API.
type NASCollector struct {
	config *config.NASCollectorConfig
	logger zerolog.Logger
}

// NewNASCollector creates a new NASCollector instance.
func NewNASCollector(cfg *config.NASCollectorConfig, logger zerolog.Logger) *NASCollector {
	return &NASCollector{
		config: cfg,
		logger: logger.With().Str("component", "nas-collector").Logger(),
	}
}

// Supports implements Collector.
func (c *NASCollector) Supports() []model.NodeType {
	return []model.NodeType{model.NodeTypeSynology}
}

// TestConnection logs in and out again.
func (c *NASCollector) TestConnection(ctx context.Context, node *model.Node) (bool, error) {
	client := c.client(node)

	sid, err := c.login(ctx, client, node)
	if err != nil {
		c.logger.Warn().Err(err).Str("node", node.Name).Msg("NAS connection test failed")
		return false, err
	}
	c.release(client, node, sid)

	return true, nil
}

// Collect opens a session, reads system info, utilization and storage in
// parallel, and always releases the session. A failed read only drops the
// samples derived from it.
func (c *NASCollector) Collect(ctx context.Context, node *model.Node) ([]model.MetricSample, error) {
	client := c.client(node)

	sid, err := c.login(ctx, client, node)
	if err != nil {
		c.logger.Error().Err(err).Str("node", node.Name).Msg("NAS collection failed")
		return nil, err
	}
	defer c.release(client, node, sid)

	var (
		info    *dsm.SystemInfo
		util    *dsm.Utilization
		storage *dsm.StorageInfo
		g       errgroup.Group
	)

	g.Go(func() error {
		res, err := client.SystemInfo(ctx, sid)
		if err != nil {
			c.logger.Warn().Err(err).Str("node", node.Name).Msg("failed to read system info")
			return nil
		}
		info = res
		return nil
	})
	g.Go(func() error {
		res, err := client.Utilization(ctx, sid)
		if err != nil {
			c.logger.Warn().Err(err).Str("node", node.Name).Msg("failed to read utilization")
			return nil
		}
		util = res
		return nil
	})
	g.Go(func() error {
		res, err := client.StorageInfo(ctx, sid)
		if err != nil {
			c.logger.Warn().Err(err).Str("node", node.Name).Msg("failed to read storage info")
			return nil
		}
		storage = res
		return nil
	})
	_ = g.Wait()

	var samples []model.MetricSample
	samples = append(samples, utilizationSamples(util)...)
	samples = append(samples, systemSamples(info)...)
	samples = append(samples, diskSamples(storage)...)

	c.logger.Debug().Str("node", node.Name).Int("samples", len(samples)).Msg("NAS collection finished")
	return samples, nil
}

func (c *NASCollector) client(node *model.Node) *dsm.Client {
	return dsm.NewClient(dsm.BaseURL(node.Host, node.PortOr(5000)), c.config, c.logger)
}

// login maps DSM login failures onto the connection error taxonomy.
func (c *NASCollector) login(ctx context.Context, client *dsm.Client, node *model.Node) (string, error) {
	var username, password string
	if creds := node.Credentials.NAS; creds != nil {
		username, password = creds.Username, creds.Password
	}

	sid, err := client.Login(ctx, username, password)
	if err == nil {
		return sid, nil
	}

	var statusErr *dsm.StatusError
	switch {
	case errors.Is(err, dsm.ErrAuthFailed):
		return "", newConnError(node, KindAuthFailed, err)
	case errors.As(err, &statusErr):
		return "", newConnError(node, KindRefused, err)
	}
	if kind, ok := classifyTransportError(err); ok {
		return "", newConnError(node, kind, err)
	}
	return "", newConnError(node, KindAPIError, err)
}

// release ends the session. Failures are logged and never propagated.
func (c *NASCollector) release(client *dsm.Client, node *model.Node, sid string) {
	if err := client.Logout(sid); err != nil {
		c.logger.Warn().Err(err).Str("node", node.Name).Msg("NAS logout failed")
	}
}

// utilizationSamples derives cpu, memory and network samples. cpu is only
// emitted when user_load is present.
func utilizationSamples(u *dsm.Utilization) []model.MetricSample {
	if u == nil {
		return nil
	}

	var samples []model.MetricSample
	if u.CPU != nil && u.CPU.UserLoad != nil {
		value := u.CPU.UserLoad.Float()
		if u.CPU.SystemLoad != nil {
			value += u.CPU.SystemLoad.Float()
		}
		samples = append(samples, model.NewSample(model.MetricCPU, value))
	}

	if u.Memory != nil && u.Memory.RealUsage != nil {
		samples = append(samples, model.NewSample(model.MetricMemory, u.Memory.RealUsage.Float()))
	}

	if u.Network != nil {
		var rx, tx float64
		for _, iface := range u.Network {
			rx += iface.RX.Float()
			tx += iface.TX.Float()
		}
		samples = append(samples,
			model.NewSample(model.MetricNetworkIn, rx/1024),
			model.NewSample(model.MetricNetworkOut, tx/1024),
		)
	}

	return samples
}

func systemSamples(info *dsm.SystemInfo) []model.MetricSample {
	if info == nil {
		return nil
	}

	var samples []model.MetricSample
	if info.Temperature != nil {
		samples = append(samples, model.NewSample(model.MetricTemperature, info.Temperature.Float()))
	}
	if info.Uptime != nil {
		samples = append(samples, model.NewSample(model.MetricUptime, info.Uptime.Float()))
	}
	return samples
}

// diskSamples emits one used-percent sample per volume with a known size.
func diskSamples(storage *dsm.StorageInfo) []model.MetricSample {
	if storage == nil {
		return nil
	}

	var samples []model.MetricSample
	for _, vol := range storage.Volumes {
		if vol.Size == nil || vol.Size.Used == nil || vol.Size.Total == nil {
			continue
		}
		total := vol.Size.Total.Float()
		if total <= 0 {
			continue
		}

		id := vol.ID
		if id == "" {
			id = "unknown"
		}
		samples = append(samples,
			model.NewSample(model.MetricDisk, vol.Size.Used.Float()/total*100).WithMeta("volume", id))
	}
	return samples
}
