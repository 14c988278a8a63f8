// Package config provides configuration management for the monitor.
package config

import "time"

// Config is the root configuration structure for the monitor.
type Config struct {
	Database      DatabaseConfig      `mapstructure:"database"`
	Collection    CollectionConfig    `mapstructure:"collection"`
	Collectors    CollectorsConfig    `mapstructure:"collectors"`
	Alerting      AlertingConfig      `mapstructure:"alerting"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Retention     RetentionConfig     `mapstructure:"retention"`
	Server        ServerConfig        `mapstructure:"server"`
	Report        ReportConfig        `mapstructure:"report"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// DatabaseConfig contains the metric store settings.
type DatabaseConfig struct {
	Path        string        `mapstructure:"path" validate:"required"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

// CollectionConfig contains configurations for collection sweeps.
type CollectionConfig struct {
	Concurrency     int           `mapstructure:"concurrency" validate:"gte=1,lte=100"`
	NodeTimeout     time.Duration `mapstructure:"node_timeout"`     // Upper bound for a single node
	SweepTimeout    time.Duration `mapstructure:"sweep_timeout"`    // 0 = node_timeout × node count
	FreshnessWindow time.Duration `mapstructure:"freshness_window"` // Window for "latest" reads
}

// CollectorsConfig contains per-collector settings.
type CollectorsConfig struct {
	NAS    NASCollectorConfig    `mapstructure:"nas"`
	Docker DockerCollectorConfig `mapstructure:"docker"`
	Galera GaleraCollectorConfig `mapstructure:"galera"`
	Health HealthCollectorConfig `mapstructure:"health"`
}

// NASCollectorConfig contains configuration for the Synology DSM collector.
type NASCollectorConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	LogoutTimeout time.Duration `mapstructure:"logout_timeout"`
	SkipTLSVerify bool          `mapstructure:"skip_tls_verify"`                    // DSM ships self-signed certificates
	APIVersion    int           `mapstructure:"api_version" validate:"gte=1,lte=7"` // SYNO.API.Auth version
}

// DockerCollectorConfig contains configuration for the Docker Engine collector.
type DockerCollectorConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// GaleraCollectorConfig contains configuration for the Galera collector.
type GaleraCollectorConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// HealthCollectorConfig contains configuration for the health endpoint collector.
type HealthCollectorConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	Retries    int           `mapstructure:"retries" validate:"gte=0,lte=10"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// AlertingConfig contains alert evaluation settings.
type AlertingConfig struct {
	DefaultCooldown time.Duration `mapstructure:"default_cooldown"`
}

// NotificationsConfig contains notification channel settings.
type NotificationsConfig struct {
	Mail MailConfig `mapstructure:"mail"`
	Chat ChatConfig `mapstructure:"chat"`
}

// MailConfig contains SMTP settings for the mail channel.
type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from" validate:"omitempty,email"`
	BaseURL  string `mapstructure:"base_url" validate:"omitempty,url"` // Used for node detail links
}

// ChatConfig contains settings for the chat webhook channel.
type ChatConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// RetentionConfig contains retention sweep settings.
type RetentionConfig struct {
	Days      int `mapstructure:"days" validate:"gte=1"`
	ChunkSize int `mapstructure:"chunk_size" validate:"gte=1,lte=100000"`
}

// ServerConfig contains settings for the serve command.
type ServerConfig struct {
	Listen           string        `mapstructure:"listen"`
	CollectInterval  time.Duration `mapstructure:"collect_interval"`
	EvaluateInterval time.Duration `mapstructure:"evaluate_interval"`
	RetentionAt      string        `mapstructure:"retention_at" validate:"clock"` // HH:MM local time
	MetricsToken     string        `mapstructure:"metrics_token"`                 // Bearer token for /metrics, empty = open
}

// ReportConfig contains configurations for status report generation.
type ReportConfig struct {
	OutputDir        string   `mapstructure:"output_dir"`
	Formats          []string `mapstructure:"formats" validate:"dive,oneof=excel html"`
	FilenameTemplate string   `mapstructure:"filename_template"`
	HTMLTemplate     string   `mapstructure:"html_template"`
	Timezone         string   `mapstructure:"timezone" validate:"timezone"`
	AlertLogLimit    int      `mapstructure:"alert_log_limit" validate:"gte=1"`
}

// LoggingConfig contains configurations for logging.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}
