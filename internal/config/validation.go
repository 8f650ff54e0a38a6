package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/conneroisu/storefront/internal/backup"
	"github.com/conneroisu/storefront/internal/logging"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
		builder.WriteString("\n")
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, msg string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, msg string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

// ValidateConfigWithDetails performs comprehensive validation with detailed feedback
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateServerConfigDetails(&config.Server, result)
	validateServiceURL("render.url", config.Render.URL, true, result)
	validateServiceURL("ai.url", config.AI.URL, false, result)
	validateTimingDetails(config, result)
	validateBackupConfigDetails(&config.Backup, result)
	validateLogConfigDetails(&config.Log, result)

	if config.History.Capacity == 0 {
		result.addWarning("history.capacity", 0, "history is unbounded",
			"Set a capacity such as 100 to cap memory per session")
	}

	result.Valid = !result.HasErrors()

	return result
}

func validateServerConfigDetails(config *ServerConfig, result *ValidationResult) {
	if config.Port < 0 || config.Port > 65535 {
		result.addError("server.port", config.Port,
			fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			"Use a port between 1024-65535 for non-privileged access",
			"Port 0 allows system to assign an available port")
	} else if config.Port > 0 && config.Port < 1024 {
		result.addWarning("server.port", config.Port, "port below 1024 requires elevated privileges",
			"Consider using a port above 1024 for development")
	}

	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			result.addError("server.host", config.Host, err.Error(),
				"Use 'localhost' for local development",
				"Use '0.0.0.0' to bind to all interfaces")
		}
	}

	for _, origin := range config.AllowedOrigins {
		if err := validateOrigin(origin); err != nil {
			result.addError("server.allowed_origins", origin, err.Error(),
				"Origins look like https://shop.example.com or http://localhost:8080")
		}
	}

	if config.RateLimit == 0 {
		result.addWarning("server.rate_limit", 0, "rate limiting is disabled")
	}
}

func validateServiceURL(field, raw string, required bool, result *ValidationResult) {
	if raw == "" {
		if required {
			result.addError(field, raw, "service URL is required")
		} else {
			result.addWarning(field, raw, "not set; the feature is disabled")
		}
		return
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		result.addError(field, raw, "must be an absolute http(s) URL")
	}
}

func validateTimingDetails(config *Config, result *ValidationResult) {
	positive := map[string]time.Duration{
		"render.timeout":        config.Render.Timeout,
		"render.debounce":       config.Render.Debounce,
		"ai.hard_timeout":       config.AI.HardTimeout,
		"ai.inactivity_timeout": config.AI.InactivityTimeout,
	}
	for field, d := range positive {
		if d <= 0 {
			result.addError(field, d.String(), "must be a positive duration")
		}
	}

	if config.AI.InactivityTimeout > config.AI.HardTimeout && config.AI.HardTimeout > 0 {
		result.addWarning("ai.inactivity_timeout", config.AI.InactivityTimeout.String(),
			"longer than ai.hard_timeout and will never fire")
	}
	if config.Render.Debounce > 0 && config.Render.Debounce < 100*time.Millisecond {
		result.addWarning("render.debounce", config.Render.Debounce.String(),
			"very short debounce will call the render service on nearly every keystroke")
	}
}

func validateBackupConfigDetails(config *BackupConfig, result *ValidationResult) {
	switch config.Driver {
	case backup.DriverMemory:
		result.addWarning("backup.driver", config.Driver, "backups are lost on restart",
			"Use 'file' or 'sqlite' for local persistence")
	case backup.DriverFile, backup.DriverSQLite:
		if err := validatePath(config.Path); err != nil {
			result.addError("backup.path", config.Path, err.Error(),
				"Use relative paths like '.storefront/backups'")
		}
	case backup.DriverRedis:
		if _, _, err := net.SplitHostPort(config.RedisAddr); err != nil {
			result.addError("backup.redis_addr", config.RedisAddr, "must be host:port")
		}
	default:
		result.addError("backup.driver", config.Driver, "unknown driver",
			"Available drivers: memory, file, sqlite, redis")
	}

	if config.Retention <= 0 {
		result.addError("backup.retention", config.Retention.String(), "must be a positive duration")
	}
	if _, err := cron.ParseStandard(config.PruneSchedule); err != nil {
		result.addError("backup.prune_schedule", config.PruneSchedule, err.Error(),
			"Use a five-field cron expression or a descriptor like @hourly")
	}
}

func validateLogConfigDetails(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.addError("log.level", config.Level, err.Error(),
			"Use debug, info, warn or error")
	}
	if config.Format != "text" && config.Format != "json" {
		result.addError("log.format", config.Format, "must be text or json")
	}
}

// Helper validation functions

func validateHostname(host string) error {
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}

	if net.ParseIP(host) != nil {
		return nil
	}

	hostnameRegex := regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format")
	}

	return nil
}

func validateOrigin(origin string) error {
	u, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("unparseable origin")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin scheme must be http or https")
	}
	if u.Host == "" || (u.Path != "" && u.Path != "/") {
		return fmt.Errorf("origin must be scheme://host[:port]")
	}

	return validateHostname(u.Hostname())
}
