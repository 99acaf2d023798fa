package config

import (
	"net/url"
	"os"
	"strings"
)

// TokenEnvVar overrides the configured bearer token
const TokenEnvVar = "FRED_TOKEN"

// Config represents the main configuration
type Config struct {
	Version  string    `yaml:"version"`
	Backend  *Backend  `yaml:"backend"`
	Settings *Settings `yaml:"settings"`
}

// Backend tells the client where the frontend configuration and the chat
// backend live, and who the user is
type Backend struct {
	FrontendURL string `yaml:"frontend_url,omitempty" json:"frontend_url,omitempty"`       // Serves /config.json
	ConfigJSON  string `yaml:"config_json,omitempty" json:"config_json,omitempty"`         // Local config.json alternative
	APIURL      string `yaml:"backend_url_api,omitempty" json:"backend_url_api,omitempty"` // Overrides config.json
	Token       string `yaml:"token,omitempty" json:"-"`
	UserID      string `yaml:"user_id,omitempty" json:"user_id,omitempty"` // Defaults to the token subject
}

// LoggerConfig represents logger configuration
type LoggerConfig struct {
	Level     string `yaml:"level" json:"level"`             // debug, info, warn, error
	FilePath  string `yaml:"file_path" json:"file_path"`     // Log file path (empty = default)
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"` // Max log file size before rotation
}

// DefaultLoggerConfig returns default logger configuration
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:     "info",
		FilePath:  "", // Defaults to ~/.local/share/fred-chat/fred-chat.log
		MaxSizeMB: 10,
	}
}

// Settings represents client settings
type Settings struct {
	DefaultAgent string `yaml:"default_agent,omitempty" json:"default_agent,omitempty"`
	Tab          string `yaml:"tab" json:"tab"`                                   // Scope of the per-tab state
	StatePath    string `yaml:"state_path,omitempty" json:"state_path,omitempty"` // bbolt file, empty = data dir
	HistoryFile  string `yaml:"history_file,omitempty" json:"history_file,omitempty"`

	// Logger configuration
	Logger *LoggerConfig `yaml:"logger,omitempty" json:"logger,omitempty"`
}

// GetLoggerConfig returns the logger config, applying defaults
func (s *Settings) GetLoggerConfig() *LoggerConfig {
	if s.Logger != nil {
		return s.Logger
	}
	return DefaultLoggerConfig()
}

// DefaultSettings returns default configuration settings
func DefaultSettings() *Settings {
	return &Settings{
		Tab:    DefaultTab,
		Logger: DefaultLoggerConfig(),
	}
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:  "1.0",
		Backend:  &Backend{FrontendURL: DefaultFrontendURL},
		Settings: DefaultSettings(),
	}
}

// ResolveToken returns the bearer token, the environment wins over the file
func (c *Config) ResolveToken() string {
	if token := strings.TrimSpace(os.Getenv(TokenEnvVar)); token != "" {
		return token
	}
	if c.Backend == nil {
		return ""
	}
	return strings.TrimSpace(c.Backend.Token)
}

// Validate validates the configuration
func (c *Config) Validate() []string {
	var errors []string

	if c.Settings == nil {
		errors = append(errors, "settings is required")
		return errors
	}
	if c.Backend == nil {
		errors = append(errors, "backend is required")
		return errors
	}

	if c.Backend.FrontendURL == "" && c.Backend.ConfigJSON == "" && c.Backend.APIURL == "" {
		errors = append(errors, "one of frontend_url, config_json or backend_url_api is required")
	}
	for name, raw := range map[string]string{
		"frontend_url":    c.Backend.FrontendURL,
		"backend_url_api": c.Backend.APIURL,
	} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, name+" must be an http(s) URL")
		}
	}

	if strings.TrimSpace(c.Settings.Tab) == "" {
		errors = append(errors, "tab must not be empty")
	}
	if l := c.Settings.Logger; l != nil && l.MaxSizeMB < 0 {
		errors = append(errors, "logger.max_size_mb must not be negative")
	}

	return errors
}

// Merge merges another config into this one (other takes precedence)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Version != "" {
		c.Version = other.Version
	}

	if other.Backend != nil {
		c.Backend = other.Backend
	}

	if other.Settings != nil {
		c.Settings = other.Settings
	}
}
