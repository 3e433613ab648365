package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/t77yq/pulse/internal/model"
)

// EnvPrefix is the prefix of environment overrides, e.g. PULSE_SERVER_ADDR
const EnvPrefix = "PULSE"

// Config is the complete service configuration
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Archive     ArchiveConfig     `mapstructure:"archive"`
	Jobs        JobsConfig        `mapstructure:"jobs"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Monitor     MonitorConfig     `mapstructure:"monitor"`
	Gemini      GeminiConfig      `mapstructure:"gemini"`
	Alerts      []model.AlertRule `mapstructure:"alerts"`
}

// AppConfig identifies the running service
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig controls the HTTP server
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig selects the project and history database
type DatabaseConfig struct {
	Dialect          string        `mapstructure:"dialect"`
	DSN              string        `mapstructure:"dsn"`
	HistoryRetention time.Duration `mapstructure:"history_retention"`
}

// NATSConfig controls event publishing
type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// ArchiveConfig controls the S3 report archive
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// JobsConfig sizes the background job runner
type JobsConfig struct {
	Workers   int           `mapstructure:"workers"`
	QueueSize int           `mapstructure:"queue_size"`
	Capacity  int           `mapstructure:"capacity"`
	TTL       time.Duration `mapstructure:"ttl"`
	Retention time.Duration `mapstructure:"retention"`
}

// MaintenanceConfig holds the cron expressions of periodic maintenance
type MaintenanceConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	HistorySchedule string `mapstructure:"history_schedule"`
	JobSchedule     string `mapstructure:"job_schedule"`
}

// MonitorConfig controls host metric sampling
type MonitorConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	WebhookTimeout time.Duration `mapstructure:"webhook_timeout"`
}

// GeminiConfig configures AI insights. An empty API key disables them.
type GeminiConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// IsLocal reports whether the service runs in a developer environment
func (c *Config) IsLocal() bool {
	return strings.EqualFold(c.App.Env, "local")
}

// SetDefaults registers default values with v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pulse")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})

	v.SetDefault("database.dialect", "sqlite")
	v.SetDefault("database.dsn", "pulse.db")
	v.SetDefault("database.history_retention", 30*24*time.Hour)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.access_key", "")
	v.SetDefault("archive.secret_key", "")
	v.SetDefault("archive.use_ssl", false)
	v.SetDefault("archive.region", "us-east-1")
	v.SetDefault("archive.bucket", "pulse-reports")

	v.SetDefault("jobs.workers", 2)
	v.SetDefault("jobs.queue_size", 64)
	v.SetDefault("jobs.capacity", 1000)
	v.SetDefault("jobs.ttl", 24*time.Hour)
	v.SetDefault("jobs.retention", time.Hour)

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.history_schedule", "0 0 3 * * *")
	v.SetDefault("maintenance.job_schedule", "0 */10 * * * *")

	v.SetDefault("monitor.interval", 15*time.Second)
	v.SetDefault("monitor.webhook_timeout", 10*time.Second)

	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.max_attempts", 3)
	v.SetDefault("gemini.timeout", 60*time.Second)
}

// Load reads .env, the YAML config file and PULSE_ environment overrides.
// An empty path searches ./config and the working directory for config.yaml;
// a missing file is only an error when path is given.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("gemini.api_key", EnvPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind gemini api key: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}
