package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

const (
	SourceCSV    = "csv"
	SourceSheets = "sheets"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Source   SourceConfig   `koanf:"source"`
	Cache    CacheConfig    `koanf:"cache"`
	Logger   LoggerConfig   `koanf:"logger"`
	Security SecurityConfig `koanf:"security"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// SourceConfig selects where the Orders, Order_Items and Products tables
// come from.
type SourceConfig struct {
	Kind            string        `koanf:"kind"`
	CSVDir          string        `koanf:"csv_dir"`
	SheetID         string        `koanf:"sheet_id"`
	CredentialsFile string        `koanf:"credentials_file"`
	CredentialsJSON string        `koanf:"credentials_json"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	BaseURL         string        `koanf:"base_url"`
}

type CacheConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

type LoggerConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type SecurityConfig struct {
	EnableRateLimit       bool     `koanf:"rate_limit_enabled"`
	RateLimitRPS          int      `koanf:"rate_limit_rps"`
	RateLimitBurst        int      `koanf:"rate_limit_burst"`
	RefreshLimitPerMinute int      `koanf:"refresh_limit_per_minute"`
	AllowedOrigins        []string `koanf:"allowed_origins"`
	TrustedProxies        []string `koanf:"trusted_proxies"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Source: SourceConfig{
			Kind:            SourceSheets,
			CSVDir:          "data",
			CredentialsFile: "service-account.json",
			RequestTimeout:  30 * time.Second,
			BaseURL:         "https://sheets.googleapis.com",
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			EnableRateLimit:       true,
			RateLimitRPS:          100,
			RateLimitBurst:        20,
			RefreshLimitPerMinute: 6,
			AllowedOrigins:        []string{"*"},
			TrustedProxies:        []string{"127.0.0.1"},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load layers built-in defaults, an optional YAML file and environment
// variables, in that order of precedence.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps environment variables to config paths. Unlisted
// variables are ignored.
var envMappings = map[string]string{
	"server_host":             "server.host",
	"server_port":             "server.port",
	"port":                    "server.port",
	"server_read_timeout":     "server.read_timeout",
	"server_write_timeout":    "server.write_timeout",
	"server_idle_timeout":     "server.idle_timeout",
	"server_shutdown_timeout": "server.shutdown_timeout",

	"source_kind":                 "source.kind",
	"csv_dir":                     "source.csv_dir",
	"google_sheet_id":             "source.sheet_id",
	"google_service_account_file": "source.credentials_file",
	"google_service_account_json": "source.credentials_json",
	"source_request_timeout":      "source.request_timeout",
	"sheets_base_url":             "source.base_url",

	"cache_ttl": "cache.ttl",

	"log_level":  "logger.level",
	"log_format": "logger.format",

	"security_rate_limit_enabled":       "security.rate_limit_enabled",
	"security_rate_limit_rps":           "security.rate_limit_rps",
	"security_rate_limit_burst":         "security.rate_limit_burst",
	"security_refresh_limit_per_minute": "security.refresh_limit_per_minute",
	"security_allowed_origins":          "security.allowed_origins",
	"security_trusted_proxies":          "security.trusted_proxies",

	"metrics_enabled": "metrics.enabled",
	"metrics_path":    "metrics.path",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

var sliceConfigPaths = []string{
	"security.allowed_origins",
	"security.trusted_proxies",
}

// processSliceFields splits comma-separated env values into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok || raw == "" {
			continue
		}
		parts := strings.Split(raw, ",")
		values := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				values = append(values, p)
			}
		}
		if err := k.Set(path, values); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	switch c.Source.Kind {
	case SourceCSV:
		if c.Source.CSVDir == "" {
			return fmt.Errorf("csv source requires a directory")
		}
	case SourceSheets:
		if c.Source.SheetID == "" {
			return fmt.Errorf("sheets source requires GOOGLE_SHEET_ID")
		}
		if c.Source.CredentialsJSON == "" && c.Source.CredentialsFile == "" {
			return fmt.Errorf("sheets source requires service account credentials")
		}
	default:
		return fmt.Errorf("invalid source kind %q, must be one of: %s, %s", c.Source.Kind, SourceCSV, SourceSheets)
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "console"}
	if !slices.Contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	if c.Security.RefreshLimitPerMinute <= 0 {
		return fmt.Errorf("refresh limit must be positive")
	}

	return nil
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
