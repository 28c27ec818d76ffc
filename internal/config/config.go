package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig represents the main application configuration
type AppConfig struct {
	Server  ServerConfig  `mapstructure:"server"`
	Library LibraryConfig `mapstructure:"library"`
	Import  ImportConfig  `mapstructure:"import"`
	Sharing SharingConfig `mapstructure:"sharing"`
	Logging LoggingConfig `mapstructure:"logging"`
	Jobs    JobsConfig    `mapstructure:"jobs"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// ServerConfig represents the sharing server listener configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"`
}

// Address returns host:port for the listener
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, fmt.Sprint(s.Port))
}

// LibraryConfig represents the library root configuration
type LibraryConfig struct {
	Path           string `mapstructure:"path"`
	DocumentFormat string `mapstructure:"document_format"`
	AuditLogMax    int    `mapstructure:"audit_log_max"`
	HostNickname   string `mapstructure:"host_nickname"`
}

// ImportConfig represents import pipeline configuration
type ImportConfig struct {
	MoveTimeout    time.Duration `mapstructure:"move_timeout"`
	ExtractColor   bool          `mapstructure:"extract_color"`
	FFmpegPath     string        `mapstructure:"ffmpeg_path"`
	FFprobePath    string        `mapstructure:"ffprobe_path"`
	ThumbnailWidth int           `mapstructure:"thumbnail_width"`
}

// SharingConfig represents remote access configuration
type SharingConfig struct {
	DataDir         string        `mapstructure:"data_dir"`
	AllowedIPs      []string      `mapstructure:"allowed_ips"`
	RateLimitMax    int           `mapstructure:"rate_limit_max"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
	UploadPerMinute int           `mapstructure:"upload_per_minute"`
	MetricsEnabled  bool          `mapstructure:"metrics_enabled"`
}

// LoggingConfig represents logger configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// JobsConfig represents background job configuration
type JobsConfig struct {
	TrashRetention time.Duration `mapstructure:"trash_retention"`
	PurgeSchedule  string        `mapstructure:"purge_schedule"`
}

// TracingConfig represents OpenTelemetry configuration
type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Exporter string `mapstructure:"exporter"`
	Endpoint string `mapstructure:"endpoint"`
}

// ConfigLoader handles loading configuration from file and environment
type ConfigLoader struct {
	viper *viper.Viper
}

// NewConfigLoader creates a new config loader with defaults applied
func NewConfigLoader() *ConfigLoader {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.mediashelf")

	v.SetEnvPrefix("MEDIASHELF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return &ConfigLoader{viper: v}
}

// SetConfigFile points the loader at an explicit file
func (l *ConfigLoader) SetConfigFile(path string) {
	if path != "" {
		l.viper.SetConfigFile(path)
	}
}

// Set overrides a single key, used for CLI flags
func (l *ConfigLoader) Set(key string, value interface{}) {
	l.viper.Set(key, value)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8765)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.body_limit", 4*1024*1024*1024)

	v.SetDefault("library.path", "")
	v.SetDefault("library.document_format", "json")
	v.SetDefault("library.audit_log_max", 1000)
	v.SetDefault("library.host_nickname", "Host")

	v.SetDefault("import.move_timeout", 600*time.Second)
	v.SetDefault("import.extract_color", true)
	v.SetDefault("import.ffmpeg_path", "ffmpeg")
	v.SetDefault("import.ffprobe_path", "ffprobe")
	v.SetDefault("import.thumbnail_width", 480)

	v.SetDefault("sharing.data_dir", "")
	v.SetDefault("sharing.allowed_ips", []string{})
	v.SetDefault("sharing.rate_limit_max", 1000)
	v.SetDefault("sharing.rate_limit_window", 15*time.Minute)
	v.SetDefault("sharing.upload_per_minute", 30)
	v.SetDefault("sharing.metrics_enabled", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("jobs.trash_retention", 30*24*time.Hour)
	v.SetDefault("jobs.purge_schedule", "@every 1h")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "localhost:4317")
}

// Load reads the config file (if any), applies env overrides and validates
func (l *ConfigLoader) Load() (*AppConfig, error) {
	if err := l.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, using defaults
	}

	var config AppConfig
	if err := l.viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// LoadConfig loads configuration using the default search paths
func LoadConfig() (*AppConfig, error) {
	return NewConfigLoader().Load()
}

// validateConfig validates the configuration values
func validateConfig(config *AppConfig) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", config.Server.Port)
	}

	switch strings.ToLower(config.Library.DocumentFormat) {
	case "json", "yaml", "yml":
	default:
		return fmt.Errorf("library document format must be json or yaml, got %q", config.Library.DocumentFormat)
	}

	if config.Library.AuditLogMax <= 0 {
		return fmt.Errorf("library audit log max must be positive")
	}

	if config.Import.MoveTimeout <= 0 {
		return fmt.Errorf("import move timeout must be positive")
	}

	if config.Sharing.RateLimitMax <= 0 {
		return fmt.Errorf("sharing rate limit max must be positive")
	}

	if config.Sharing.RateLimitWindow <= 0 {
		return fmt.Errorf("sharing rate limit window must be positive")
	}

	for _, ip := range config.Sharing.AllowedIPs {
		if net.ParseIP(ip) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(ip); err != nil {
			return fmt.Errorf("sharing allowed ip %q is not a valid address or CIDR", ip)
		}
	}

	if config.Jobs.TrashRetention < 0 {
		return fmt.Errorf("jobs trash retention cannot be negative")
	}

	switch config.Tracing.Exporter {
	case "stdout", "otlp":
	default:
		return fmt.Errorf("tracing exporter must be stdout or otlp, got %q", config.Tracing.Exporter)
	}

	return nil
}
