// Package collector converts each node type's native telemetry into generic
// metric samples.
package collector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"infra-monitor/internal/config"
	"infra-monitor/internal/model"
)

// Collector polls one node and returns sample candidates. Samples carry
// Type, Value and Metadata only; node id and timestamp are stamped by the
// sweep. Implementations keep no per-node state between calls.
type Collector interface {
	Supports() []model.NodeType
	TestConnection(ctx context.Context, node *model.Node) (bool, error)
	Collect(ctx context.Context, node *model.Node) ([]model.MetricSample, error)
}

// ErrorKind classifies a connection failure.
type ErrorKind string

const (
	KindTimeout    ErrorKind = "timeout"     // 超时
	KindRefused    ErrorKind = "refused"     // 连接被拒绝
	KindAuthFailed ErrorKind = "auth_failed" // 认证失败
	KindAPIError   ErrorKind = "api_error"   // 接口错误
)

// ConnectionError is the typed failure raised when a node cannot be read.
type ConnectionError struct {
	NodeType model.NodeType
	Host     string
	Kind     ErrorKind
	Err      error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	var msg string
	switch e.Kind {
	case KindTimeout:
		msg = fmt.Sprintf("connection to %s timed out", e.Host)
	case KindRefused:
		msg = fmt.Sprintf("connection to %s was refused", e.Host)
	case KindAuthFailed:
		msg = fmt.Sprintf("authentication to %s failed", e.Host)
	default:
		msg = fmt.Sprintf("api error from %s", e.Host)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.NodeType, msg)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func newConnError(node *model.Node, kind ErrorKind, err error) *ConnectionError {
	return &ConnectionError{NodeType: node.Type, Host: node.Host, Kind: kind, Err: err}
}

// KindOf returns the kind of a ConnectionError anywhere in err's chain, or
// KindAPIError for anything else.
func KindOf(err error) ErrorKind {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr.Kind
	}
	return KindAPIError
}

// classifyTransportError maps a network or context error to timeout or
// refused. ok is false when err is not a transport failure.
func classifyTransportError(err error) (kind ErrorKind, ok bool) {
	if err == nil {
		return "", false
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return KindTimeout, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout, true
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.ECONNRESET) {
		return KindRefused, true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindRefused, true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindRefused, true
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return KindTimeout, true
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return KindRefused, true
	}

	return "", false
}

// Registry is the closed dispatch table from node type to collector.
type Registry struct {
	collectors map[model.NodeType]Collector
}

// NewRegistry builds the registry with the four collectors.
func NewRegistry(cfg *config.CollectorsConfig, logger zerolog.Logger) *Registry {
	return NewRegistryWith(
		NewNASCollector(&cfg.NAS, logger),
		NewDockerCollector(&cfg.Docker, logger),
		NewGaleraCollector(&cfg.Galera, logger),
		NewHealthCollector(&cfg.Health, logger),
	)
}

// NewRegistryWith builds a registry from explicit collectors. A later
// collector claiming an already registered type replaces the earlier one.
func NewRegistryWith(collectors ...Collector) *Registry {
	r := &Registry{collectors: make(map[model.NodeType]Collector)}
	for _, c := range collectors {
		for _, t := range c.Supports() {
			r.collectors[t] = c
		}
	}
	return r
}

// Get returns the collector for a node type.
func (r *Registry) Get(t model.NodeType) (Collector, error) {
	c, ok := r.collectors[t]
	if !ok {
		return nil, fmt.Errorf("no collector registered for node type %q", t)
	}
	return c, nil
}

// Types lists the supported node types, sorted.
func (r *Registry) Types() []model.NodeType {
	types := make([]model.NodeType, 0, len(r.collectors))
	for t := range r.collectors {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
