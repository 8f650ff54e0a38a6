// Package config provides configuration management for the storefront
// builder using Viper for loading from files, environment variables, and
// command-line flags.
//
// Configuration is read from .storefront.yml, overridden by STOREFRONT_
// environment variables and finally by flags bound in cmd. It covers the
// HTTP server, the render and AI services, backup storage, history and
// logging.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/storefront/internal/backup"
	apperrors "github.com/conneroisu/storefront/internal/errors"
	"github.com/conneroisu/storefront/internal/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STOREFRONT"

// FileName is the default config file name, without extension.
const FileName = ".storefront"

type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Render    RenderConfig    `mapstructure:"render" yaml:"render"`
	AI        AIConfig        `mapstructure:"ai" yaml:"ai"`
	Backup    BackupConfig    `mapstructure:"backup" yaml:"backup"`
	History   HistoryConfig   `mapstructure:"history" yaml:"history"`
	Templates TemplatesConfig `mapstructure:"templates" yaml:"templates"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port" yaml:"port"`
	Host           string   `mapstructure:"host" yaml:"host"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	// RateLimit is requests per second per client IP; zero disables it.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst"`
}

type RenderConfig struct {
	URL        string        `mapstructure:"url" yaml:"url"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Debounce   time.Duration `mapstructure:"debounce" yaml:"debounce"`
	ErrorEvery time.Duration `mapstructure:"error_every" yaml:"error_every"`
}

type AIConfig struct {
	URL                string        `mapstructure:"url" yaml:"url"`
	HardTimeout        time.Duration `mapstructure:"hard_timeout" yaml:"hard_timeout"`
	InactivityTimeout  time.Duration `mapstructure:"inactivity_timeout" yaml:"inactivity_timeout"`
	CompleteDelay      time.Duration `mapstructure:"complete_delay" yaml:"complete_delay"`
	TypewriterInterval time.Duration `mapstructure:"typewriter_interval" yaml:"typewriter_interval"`
}

type BackupConfig struct {
	Driver        string        `mapstructure:"driver" yaml:"driver"`
	Path          string        `mapstructure:"path" yaml:"path"`
	RedisAddr     string        `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db" yaml:"redis_db"`
	Retention     time.Duration `mapstructure:"retention" yaml:"retention"`
	PruneSchedule string        `mapstructure:"prune_schedule" yaml:"prune_schedule"`
}

type HistoryConfig struct {
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
}

type TemplatesConfig struct {
	// Catalog is an optional YAML file replacing the built-in catalog.
	Catalog string `mapstructure:"catalog" yaml:"catalog"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SetDefaults registers the default for every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)

	v.SetDefault("render.url", "http://localhost:3001/api/render")
	v.SetDefault("render.timeout", 30*time.Second)
	v.SetDefault("render.debounce", 800*time.Millisecond)
	v.SetDefault("render.error_every", 10*time.Second)

	v.SetDefault("ai.url", "")
	v.SetDefault("ai.hard_timeout", 3*time.Minute)
	v.SetDefault("ai.inactivity_timeout", 120*time.Second)
	v.SetDefault("ai.complete_delay", 1500*time.Millisecond)
	v.SetDefault("ai.typewriter_interval", 5*time.Millisecond)

	v.SetDefault("backup.driver", backup.DriverFile)
	v.SetDefault("backup.path", ".storefront/backups")
	v.SetDefault("backup.redis_addr", "localhost:6379")
	v.SetDefault("backup.redis_db", 0)
	v.SetDefault("backup.retention", 30*24*time.Hour)
	v.SetDefault("backup.prune_schedule", "@hourly")

	v.SetDefault("history.capacity", 100)
	v.SetDefault("templates.catalog", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Init prepares the global viper instance: defaults, environment overrides
// and the config file search path. A missing config file is not an error.
func Init(cfgFile string) error {
	SetDefaults(viper.GetViper())

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(FileName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			return nil
		}
		return apperrors.NewConfigError(apperrors.ErrCodeConfigInvalid, "read config: "+err.Error())
	}

	return nil
}

// Load decodes the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom decodes and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, apperrors.NewConfigError(apperrors.ErrCodeConfigInvalid, "decode config: "+err.Error())
	}

	// Slices set through flags or env arrive as a single comma separated
	// string.
	if len(config.Server.AllowedOrigins) == 1 && strings.Contains(config.Server.AllowedOrigins[0], ",") {
		config.Server.AllowedOrigins = splitList(config.Server.AllowedOrigins[0])
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// HostOrigin is the origin the editor page is served from.
func (c *Config) HostOrigin() string {
	host := c.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Server.Port)
}

// BackupStore converts the backup section to backup.Config.
func (c *Config) BackupStore() backup.Config {
	return backup.Config{
		Driver:        c.Backup.Driver,
		Path:          c.Backup.Path,
		RedisAddr:     c.Backup.RedisAddr,
		RedisPassword: c.Backup.RedisPassword,
		RedisDB:       c.Backup.RedisDB,
		Retention:     c.Backup.Retention,
	}
}

// Logger converts the log section to a logger configuration.
func (c *Config) Logger() *logging.LoggerConfig {
	lc := logging.DefaultConfig()
	if lvl, err := logging.ParseLevel(c.Log.Level); err == nil {
		lc.Level = lvl
	}
	lc.Format = c.Log.Format

	return lc
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validateBackupConfig(&config.Backup); err != nil {
		return fmt.Errorf("backup config: %w", err)
	}
	if config.History.Capacity < 0 {
		return fmt.Errorf("history config: capacity must not be negative")
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Allow 0 for system-assigned ports in testing
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			return fmt.Errorf("host: %w", err)
		}
	}

	for _, origin := range config.AllowedOrigins {
		if err := validateOrigin(origin); err != nil {
			return fmt.Errorf("allowed origin %q: %w", origin, err)
		}
	}

	if config.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}

	return nil
}

func validateBackupConfig(config *BackupConfig) error {
	switch config.Driver {
	case backup.DriverMemory, backup.DriverRedis:
	case backup.DriverFile, backup.DriverSQLite:
		if err := validatePath(config.Path); err != nil {
			return fmt.Errorf("path: %w", err)
		}
	default:
		return fmt.Errorf("unknown driver %q", config.Driver)
	}

	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
