package health

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"infra-monitor/internal/config"
)

// DefaultPath is used when a node does not configure its health endpoint.
const DefaultPath = "/health"

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("health endpoint returned HTTP %d", e.StatusCode)
}

// Client performs single health checks. Retries are left to the caller.
type Client struct {
	timeout    time.Duration  // Request timeout
	httpClient *resty.Client  // HTTP client
	logger     zerolog.Logger // Logger
}

// NewClient creates a new health endpoint client.
func NewClient(cfg *config.HealthCollectorConfig, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		timeout:    timeout,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "health-client").Logger(),
	}
}

// URL builds the health URL for a node. Port 443 selects https; the port
// suffix is omitted for 80 and 443.
func URL(host string, port int, path string) string {
	if port == 0 {
		port = 80
	}
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	scheme := "http"
	if port == 443 {
		scheme = "https"
	}

	if port == 80 || port == 443 {
		return scheme + "://" + host + path
	}
	return scheme + "://" + host + ":" + strconv.Itoa(port) + path
}

// Check performs one GET against url. A 2xx answer whose body is not a
// health document yields an empty Report (status unknown).
func (c *Client) Check(ctx context.Context, url, token string) (*Report, error) {
	req := c.httpClient.R().SetContext(ctx)
	if token != "" {
		req.SetAuthToken(token)
	}

	resp, err := req.Get(url)
	if err != nil {
		return nil, err
	}

	if !resp.IsSuccess() {
		c.logger.Debug().
			Str("url", url).
			Int("status_code", resp.StatusCode()).
			Msg("health endpoint returned non-2xx status")
		return nil, &StatusError{StatusCode: resp.StatusCode()}
	}

	var report Report
	if err := json.Unmarshal(resp.Body(), &report); err != nil {
		c.logger.Debug().Err(err).Str("url", url).Msg("health body is not a health document")
		return &Report{}, nil
	}

	return &report, nil
}
