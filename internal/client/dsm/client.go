package dsm

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"infra-monitor/internal/config"
)

const (
	authPath  = "/webapi/auth.cgi"
	entryPath = "/webapi/entry.cgi"
)

// ErrAuthFailed is returned when DSM answers the login with success=false
// or without a session id.
var ErrAuthFailed = errors.New("dsm authentication failed")

// StatusError is returned when DSM answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dsm returned status %d: %s", e.StatusCode, e.Body)
}

// APICallError is returned when a data call answers success=false.
type APICallError struct {
	API  string
	Code int
}

func (e *APICallError) Error() string {
	return fmt.Sprintf("dsm api %s failed with code %d", e.API, e.Code)
}

// Client is a client for a single DSM appliance. A session id is never
// stored on the client; callers pass it explicitly so one client can serve
// concurrent sessions.
type Client struct {
	baseURL       string         // DSM base URL (scheme://host:port)
	apiVersion    int            // SYNO.API.Auth version
	timeout       time.Duration  // Request timeout
	logoutTimeout time.Duration  // Logout timeout
	httpClient    *resty.Client  // HTTP client
	logger        zerolog.Logger // Logger
}

// BaseURL builds the DSM base URL. Port 5001 is the DSM HTTPS port.
func BaseURL(host string, port int) string {
	if port == 0 {
		port = 5000
	}
	scheme := "http"
	if port == 5001 {
		scheme = "https"
	}
	return scheme + "://" + host + ":" + strconv.Itoa(port)
}

// NewClient creates a new DSM client for baseURL.
func NewClient(baseURL string, cfg *config.NASCollectorConfig, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	logoutTimeout := cfg.LogoutTimeout
	if logoutTimeout == 0 {
		logoutTimeout = 5 * time.Second
	}
	apiVersion := cfg.APIVersion
	if apiVersion == 0 {
		apiVersion = 6
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)
	if cfg.SkipTLSVerify {
		httpClient.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // DSM ships self-signed certificates
	}

	return &Client{
		baseURL:       baseURL,
		apiVersion:    apiVersion,
		timeout:       timeout,
		logoutTimeout: logoutTimeout,
		httpClient:    httpClient,
		logger:        logger.With().Str("component", "dsm-client").Str("base_url", baseURL).Logger(),
	}
}

// Login authenticates and returns a session id.
func (c *Client) Login(ctx context.Context, account, password string) (string, error) {
	c.logger.Debug().Str("account", account).Msg("logging in to DSM")

	var result Response[AuthData]

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&result).
		ForceContentType("application/json").
		SetQueryParams(map[string]string{
			"api":     "SYNO.API.Auth",
			"version": strconv.Itoa(c.apiVersion),
			"method":  "login",
			"account": account,
			"passwd":  password,
			"format":  "sid",
		}).
		Get(authPath)

	if err != nil {
		c.logger.Error().Err(err).Msg("failed to call DSM login")
		return "", fmt.Errorf("dsm login request failed: %w", err)
	}

	if !resp.IsSuccess() {
		c.logger.Error().
			Int("status_code", resp.StatusCode()).
			Msg("DSM login returned non-2xx status")
		return "", &StatusError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}

	if !result.Success || result.Data.SID == "" {
		code := 0
		if result.Error != nil {
			code = result.Error.Code
		}
		c.logger.Warn().Int("api_code", code).Msg("DSM rejected login")
		return "", ErrAuthFailed
	}

	return result.Data.SID, nil
}

// Logout ends the session. It uses its own timeout so a cancelled sweep
// context still lets the session be released.
func (c *Client) Logout(sid string) error {
	if sid == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.logoutTimeout)
	defer cancel()

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"api":     "SYNO.API.Auth",
			"version": strconv.Itoa(c.apiVersion),
			"method":  "logout",
			"_sid":    sid,
		}).
		Get(authPath)
	if err != nil {
		return fmt.Errorf("dsm logout request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return &StatusError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	return nil
}

// SystemInfo reads SYNO.Core.System info.
func (c *Client) SystemInfo(ctx context.Context, sid string) (*SystemInfo, error) {
	var result Response[SystemInfo]
	if err := c.entry(ctx, sid, "SYNO.Core.System", "info", &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, apiCallError("SYNO.Core.System", result.Error)
	}
	return &result.Data, nil
}

// Utilization reads SYNO.Core.System.Utilization get.
func (c *Client) Utilization(ctx context.Context, sid string) (*Utilization, error) {
	var result Response[Utilization]
	if err := c.entry(ctx, sid, "SYNO.Core.System.Utilization", "get", &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, apiCallError("SYNO.Core.System.Utilization", result.Error)
	}
	return &result.Data, nil
}

// StorageInfo reads SYNO.Storage.CGI.Storage load_info.
func (c *Client) StorageInfo(ctx context.Context, sid string) (*StorageInfo, error) {
	var result Response[StorageInfo]
	if err := c.entry(ctx, sid, "SYNO.Storage.CGI.Storage", "load_info", &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, apiCallError("SYNO.Storage.CGI.Storage", result.Error)
	}
	return &result.Data, nil
}

// entry issues a version 1 call against entry.cgi and decodes into result.
func (c *Client) entry(ctx context.Context, sid, api, method string, result interface{}) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(result).
		ForceContentType("application/json").
		SetQueryParams(map[string]string{
			"api":     api,
			"version": "1",
			"method":  method,
			"_sid":    sid,
		}).
		Get(entryPath)

	if err != nil {
		c.logger.Debug().Err(err).Str("api", api).Msg("DSM call failed")
		return fmt.Errorf("dsm %s request failed: %w", api, err)
	}

	if !resp.IsSuccess() {
		c.logger.Debug().
			Int("status_code", resp.StatusCode()).
			Str("api", api).
			Msg("DSM call returned non-2xx status")
		return &StatusError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}

	return nil
}

func apiCallError(api string, e *APIError) error {
	code := 0
	if e != nil {
		code = e.Code
	}
	return &APICallError{API: api, Code: code}
}
