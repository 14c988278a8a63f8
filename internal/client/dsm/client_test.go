package dsm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"infra-monitor/internal/config"
)

// setupTestServer creates a test server and DSM client for testing.
func setupTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.NASCollectorConfig{
		Timeout:       2 * time.Second,
		LogoutTimeout: time.Second,
		APIVersion:    6,
	}
	return server, NewClient(server.URL, cfg, zerolog.Nop())
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

// =============================================================================
// Basic Functionality Tests
// =============================================================================

func TestBaseURL(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"nas.local", 0, "http://nas.local:5000"},
		{"nas.local", 5000, "http://nas.local:5000"},
		{"nas.local", 5001, "https://nas.local:5001"},
		{"10.0.0.5", 8080, "http://10.0.0.5:8080"},
	}

	for _, tt := range tests {
		if got := BaseURL(tt.host, tt.port); got != tt.want {
			t.Errorf("BaseURL(%s, %d) = %s, want %s", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient("http://nas:5000", &config.NASCollectorConfig{}, zerolog.Nop())

	if client.timeout != 10*time.Second {
		t.Errorf("expected default timeout 10s, got %v", client.timeout)
	}
	if client.logoutTimeout != 5*time.Second {
		t.Errorf("expected default logout timeout 5s, got %v", client.logoutTimeout)
	}
	if client.apiVersion != 6 {
		t.Errorf("expected default api version 6, got %d", client.apiVersion)
	}
}

// =============================================================================
// Login Tests
// =============================================================================

func TestLogin_Success(t *testing.T) {
	_, client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/webapi/auth.cgi" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("api") != "SYNO.API.Auth" || q.Get("method") != "login" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if q.Get("version") != "6" {
			t.Errorf("expected version 6, got %s", q.Get("version"))
		}
		if q.Get("account") != "admin" || q.Get("passwd") != "secret" || q.Get("format") != "sid" {
			t.Errorf("unexpected credentials in query %s", r.URL.RawQuery)
		}
		writeJSON(w, `{"success": true, "data": {"sid": "abc123"}}`)
	})

	sid, err := client.Login(context.Background(), "admin", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if sid != "abc123" {
		t.Errorf("expected sid abc123, got %s", sid)
	}
}

func TestLogin_Rejected(t *testing.T) {
	_, client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"success": false, "error": {"code": 400}}`)
	})

	_, err := client.Login(context.Background(), "admin", "wrong")
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestLogin_MissingSID(t *testing.T) {
	_, client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"success": true, "data": {}}`)
	})

	_, err := client.Login(context.Background(), "admin", "secret")
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestLogin_HTTPError(t *testing.T) {
	_, client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.Login(context.Background(), "admin", "secret")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", statusErr.StatusCode)
	}
}

func TestLogin_ContextCancelled(t *testing.T) {
	_, client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"success": true, "data": {"sid": "abc"}}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.Login(ctx, "admin", "secret"); err == nil {
		t.Fatal("expected error with cancelled context")
	}
}

// =============================================================================
// Data Call Tests
// =============================================================================

func TestDataCalls(t *testing.T) {
	_, client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/webapi/entry.cgi" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("_sid") != "sid-1" || q.Get("version") != "1" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		switch q.Get("api") {
		case "SYNO.Core.System":
			writeJSON(w, `{"success": true, "data": {"temperature": 45, "uptime": "86400"}}`)
		case "SYNO.Core.System.Utilization":
			writeJSON(w, `{"success": true, "data": {
				"cpu": {"user_load": 12, "system_load": 3},
				"memory": {"real_usage": 58},
				"network": [{"device": "eth0", "rx": 2048, "tx": 1024}, {"device": "eth1", "rx": 1024, "tx": 1024}]
			}}`)
		case "SYNO.Storage.CGI.Storage":
			writeJSON(w, `{"success": true, "data": {"volumes": [{"id": "volume_1", "size": {"used": "50", "total": "200"}}]}}`)
		default:
			t.Errorf("unexpected api %s", q.Get("api"))
		}
	})

	ctx := context.Background()

	info, err := client.SystemInfo(ctx, "sid-1")
	if err != nil {
		t.Fatalf("SystemInfo failed: %v", err)
	}
	if info.Temperature.Float() != 45 || info.Uptime.Float() != 86400 {
		t.Errorf("unexpected system info %+v", info)
	}

	util, err := client.Utilization(ctx, "sid-1")
	if err != nil {
		t.Fatalf("Utilization failed: %v", err)
	}
	if util.CPU.UserLoad.Float() != 12 || util.CPU.SystemLoad.Float() != 3 {
		t.Errorf("unexpected cpu %+v", util.CPU)
	}
	if len(util.Network) != 2 {
		t.Errorf("expected 2 interfaces, got %d", len(util.Network))
	}

	storage, err := client.StorageInfo(ctx, "sid-1")
	if err != nil {
		t.Fatalf("StorageInfo failed: %v", err)
	}
	if len(storage.Volumes) != 1 || storage.Volumes[0].Size.Used.Float() != 50 {
		t.Errorf("unexpected storage %+v", storage)
	}
}

func TestDataCall_APIFailure(t *testing.T) {
	_, client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"success": false, "error": {"code": 119}}`)
	})

	_, err := client.SystemInfo(context.Background(), "expired")
	var apiErr *APICallError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APICallError, got %v", err)
	}
	if apiErr.Code != 119 {
		t.Errorf("expected code 119, got %d", apiErr.Code)
	}
}

// =============================================================================
// Logout Tests
// =============================================================================

func TestLogout(t *testing.T) {
	var calls int32
	_, client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		q := r.URL.Query()
		if q.Get("method") != "logout" || q.Get("_sid") != "sid-1" {
			t.Errorf("unexpected logout query %s", r.URL.RawQuery)
		}
		writeJSON(w, `{"success": true}`)
	})

	if err := client.Logout("sid-1"); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if err := client.Logout(""); err != nil {
		t.Fatalf("Logout with empty sid failed: %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected 1 logout call, got %d", calls)
	}
}
