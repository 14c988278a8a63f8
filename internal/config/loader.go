// Package config provides configuration management for the monitor.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from the specified YAML file and environment variables.
// Environment variables take precedence over file values.
// Environment variable format: MONITOR_<SECTION>_<KEY> (e.g., MONITOR_NOTIFICATIONS_MAIL_PASSWORD)
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults first
	setDefaults(v)

	// Configure environment variable binding
	v.SetEnvPrefix("MONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment. Variables already set are not overridden. A missing file is
// not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "./data/monitor.db")
	v.SetDefault("database.busy_timeout", 5*time.Second)

	// Collection defaults
	v.SetDefault("collection.concurrency", 10)
	v.SetDefault("collection.node_timeout", 30*time.Second)
	v.SetDefault("collection.sweep_timeout", time.Duration(0))
	v.SetDefault("collection.freshness_window", 5*time.Minute)

	// Collector defaults
	v.SetDefault("collectors.nas.timeout", 10*time.Second)
	v.SetDefault("collectors.nas.logout_timeout", 5*time.Second)
	v.SetDefault("collectors.nas.skip_tls_verify", true)
	v.SetDefault("collectors.nas.api_version", 6)
	v.SetDefault("collectors.docker.timeout", 10*time.Second)
	v.SetDefault("collectors.galera.timeout", 5*time.Second)
	v.SetDefault("collectors.health.timeout", 10*time.Second)
	v.SetDefault("collectors.health.retries", 2)
	v.SetDefault("collectors.health.retry_delay", 500*time.Millisecond)

	// Alerting defaults
	v.SetDefault("alerting.default_cooldown", 15*time.Minute)

	// Notification defaults
	v.SetDefault("notifications.mail.port", 25)
	v.SetDefault("notifications.chat.timeout", 10*time.Second)

	// Retention defaults
	v.SetDefault("retention.days", 7)
	v.SetDefault("retention.chunk_size", 1000)

	// Server defaults
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.collect_interval", time.Minute)
	v.SetDefault("server.evaluate_interval", time.Minute)
	v.SetDefault("server.retention_at", "03:00")

	// Report defaults
	v.SetDefault("report.output_dir", "./reports")
	v.SetDefault("report.formats", []string{"excel", "html"})
	v.SetDefault("report.filename_template", "monitor_status_{{.Date}}")
	v.SetDefault("report.timezone", "Asia/Shanghai")
	v.SetDefault("report.alert_log_limit", 50)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
