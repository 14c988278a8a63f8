package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	containertypes "github.com/docker/docker/api/types/container"
	systemtypes "github.com/docker/docker/api/types/system"

	"infra-monitor/internal/model"
)

type fakeDockerClient struct {
	infoFunc             func(ctx context.Context) (systemtypes.Info, error)
	containerListFunc    func(ctx context.Context, opts containertypes.ListOptions) ([]containertypes.Summary, error)
	containerStatsFunc   func(ctx context.Context, id string) (containertypes.StatsResponseReader, error)
	containerInspectFunc func(ctx context.Context, id string) (containertypes.InspectResponse, error)
	closed               bool
}

func (f *fakeDockerClient) Info(ctx context.Context) (systemtypes.Info, error) {
	if f.infoFunc == nil {
		return systemtypes.Info{}, errors.New("unexpected Info call")
	}
	return f.infoFunc(ctx)
}

func (f *fakeDockerClient) ContainerList(ctx context.Context, opts containertypes.ListOptions) ([]containertypes.Summary, error) {
	if f.containerListFunc == nil {
		return nil, errors.New("unexpected ContainerList call")
	}
	return f.containerListFunc(ctx, opts)
}

func (f *fakeDockerClient) ContainerStatsOneShot(ctx context.Context, id string) (containertypes.StatsResponseReader, error) {
	if f.containerStatsFunc == nil {
		return containertypes.StatsResponseReader{}, errors.New("unexpected ContainerStatsOneShot call")
	}
	return f.containerStatsFunc(ctx, id)
}

func (f *fakeDockerClient) ContainerInspect(ctx context.Context, id string) (containertypes.InspectResponse, error) {
	if f.containerInspectFunc == nil {
		return containertypes.InspectResponse{}, errors.New("unexpected ContainerInspect call")
	}
	return f.containerInspectFunc(ctx, id)
}

func (f *fakeDockerClient) Close() error {
	f.closed = true
	return nil
}

func statsReader(t *testing.T, stats containertypes.StatsResponse) containertypes.StatsResponseReader {
	t.Helper()

	payload, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("marshal stats: %v", err)
	}

	return containertypes.StatsResponseReader{
		Body: io.NopCloser(bytes.NewReader(payload)),
	}
}

func inspectWithRestarts(n int) containertypes.InspectResponse {
	return containertypes.InspectResponse{
		ContainerJSONBase: &containertypes.ContainerJSONBase{RestartCount: n},
	}
}

// nodeFor builds a node pointing at an httptest server.
func nodeFor(t *testing.T, server *httptest.Server, nodeType model.NodeType) *model.Node {
	t.Helper()

	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	return &model.Node{ID: 1, Name: "test-" + string(nodeType), Type: nodeType, Host: host, Port: port, Active: true}
}

// samplesByType indexes samples by type; the last sample of a type wins.
func samplesByType(samples []model.MetricSample) map[string]model.MetricSample {
	out := make(map[string]model.MetricSample, len(samples))
	for _, s := range samples {
		out[s.Type] = s
	}
	return out
}

func countType(samples []model.MetricSample, metricType string) int {
	n := 0
	for _, s := range samples {
		if s.Type == metricType {
			n++
		}
	}
	return n
}
