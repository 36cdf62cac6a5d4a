// Package config provides configuration loading and management for davsync.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/davsync/internal/tasks"
	"github.com/stacklok/davsync/internal/telemetry"
	"github.com/stacklok/davsync/internal/webdav"
)

const (
	// EnvPrefix is the prefix of environment variables overriding configuration
	EnvPrefix = "DAVSYNC"

	// DefaultInterval is the polling interval used when none is configured
	DefaultInterval = 30 * time.Second
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
	env  *viper.Viper
}

// WithConfigPath loads configuration from a JSON or YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// WithEnv overrides the source of environment overrides. The default reads
// the process environment with the DAVSYNC_ prefix.
func WithEnv(v *viper.Viper) Option {
	return func(cfg *loaderConfig) error {
		cfg.env = v
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// BaseURL is the WebDAV origin every resource is resolved against
	BaseURL string `yaml:"base_url" json:"base_url"`

	// Username is sent in digest authentication and substituted into the LOCK body
	Username string `yaml:"username" json:"username"`

	// Password is the digest authentication password
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// PasswordFile is the path to a file containing the password.
	// It takes precedence over Password.
	PasswordFile string `yaml:"password_file,omitempty" json:"password_file,omitempty"`

	// Body is the LOCK request body. "{username}" is replaced by Username.
	Body string `yaml:"body" json:"body"`

	// Main is the main document holding one subsection per resource
	Main string `yaml:"main" json:"main"`

	// Resources are the satellite documents, synced in this order
	Resources []string `yaml:"resources" json:"resources"`

	// ETagProbe selects how ETags are read: "get" (default) or "propfind"
	ETagProbe string `yaml:"etag_probe,omitempty" json:"etag_probe,omitempty"`

	// Interval is the polling interval of the watch command (e.g. "30s")
	Interval string `yaml:"interval,omitempty" json:"interval,omitempty"`

	// Timeout bounds every HTTP request (e.g. "10s"). Unset means no timeout.
	Timeout string `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// ListenAddress is where the watch command serves health, status and metrics.
	// Unset disables the server unless Prometheus metrics are enabled.
	ListenAddress string `yaml:"listen_address,omitempty" json:"listen_address,omitempty"`

	// StatusFile is where the outcome of the latest cycle is persisted
	StatusFile string `yaml:"status_file,omitempty" json:"status_file,omitempty"`

	Telemetry *telemetry.Config `yaml:"telemetry,omitempty" json:"telemetry,omitempty"`
}

// LoadConfig loads, overrides from the environment, and validates configuration
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := parse(data)
	if err != nil {
		return nil, err
	}

	env := loaderCfg.env
	if env == nil {
		env = NewEnv()
	}
	config.applyEnv(env)

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// NewEnv returns a viper instance reading DAVSYNC_ prefixed environment variables
func NewEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// parse decodes JSON documents with encoding/json and everything else as YAML
func parse(data []byte) (*Config, error) {
	var config Config
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
		return &config, nil
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return &config, nil
}

// applyEnv replaces connection settings with their environment overrides
func (c *Config) applyEnv(v *viper.Viper) {
	overrides := []struct {
		key   string
		field *string
	}{
		{"base_url", &c.BaseURL},
		{"username", &c.Username},
		{"password", &c.Password},
		{"password_file", &c.PasswordFile},
		{"main", &c.Main},
		{"etag_probe", &c.ETagProbe},
		{"interval", &c.Interval},
		{"timeout", &c.Timeout},
		{"listen_address", &c.ListenAddress},
		{"status_file", &c.StatusFile},
	}
	for _, o := range overrides {
		if value := v.GetString(o.key); value != "" {
			*o.field = value
		}
	}
}

// GetPassword returns the password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Password, as configured or overridden by DAVSYNC_PASSWORD
//
// The password from file will have leading/trailing whitespace trimmed.
func (c *Config) GetPassword() (string, error) {
	if c.PasswordFile != "" {
		// Use filepath.Clean to prevent path traversal attacks
		cleanPath := filepath.Clean(c.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", c.PasswordFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return c.Password, nil
}

// GetInterval returns the polling interval, using DefaultInterval if not specified
func (c *Config) GetInterval() time.Duration {
	if c.Interval == "" {
		return DefaultInterval
	}
	// validate has already parsed it
	interval, _ := time.ParseDuration(c.Interval)
	return interval
}

// GetTimeout returns the HTTP request timeout. Zero means no timeout.
func (c *Config) GetTimeout() time.Duration {
	if c.Timeout == "" {
		return 0
	}
	timeout, _ := time.ParseDuration(c.Timeout)
	return timeout
}

// GetListenAddress returns the address of the status server. Without an
// explicit ListenAddress, the Prometheus metrics address is used when that
// exporter is enabled. Empty means no server.
func (c *Config) GetListenAddress() string {
	if c.ListenAddress != "" {
		return c.ListenAddress
	}
	t := c.Telemetry
	if t != nil && t.Enabled && t.Metrics != nil && t.Metrics.Enabled && t.Metrics.GetExporter() == telemetry.ExporterPrometheus {
		return t.Metrics.GetAddress()
	}
	return ""
}

// GetETagProbe returns the ETag probe kind, using "get" if not specified
func (c *Config) GetETagProbe() string {
	if c.ETagProbe == "" {
		return webdav.ProbeGet
	}
	return c.ETagProbe
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateBaseURL(c.BaseURL); err != nil {
		return err
	}
	if c.Username == "" {
		return fmt.Errorf("username is required")
	}
	if c.Body == "" {
		return fmt.Errorf("body is required")
	}
	if c.Main == "" {
		return fmt.Errorf("main is required")
	}

	seen := make(map[string]bool, len(c.Resources))
	names := make(map[string]string, len(c.Resources))
	for i, resource := range c.Resources {
		if err := c.validateResource(resource, i, seen, names); err != nil {
			return err
		}
	}

	if !slices.Contains([]string{webdav.ProbeGet, webdav.ProbePropfind}, c.GetETagProbe()) {
		return fmt.Errorf("etag_probe must be %q or %q, got %q", webdav.ProbeGet, webdav.ProbePropfind, c.ETagProbe)
	}

	if err := validateDuration("interval", c.Interval, false); err != nil {
		return err
	}
	if err := validateDuration("timeout", c.Timeout, true); err != nil {
		return err
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

func validateBaseURL(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("base_url must include a host")
	}
	return nil
}

// validateResource validates a single satellite resource
func (c *Config) validateResource(resource string, index int, seen map[string]bool, names map[string]string) error {
	prefix := fmt.Sprintf("resources[%d]", index)

	normalized := strings.TrimPrefix(resource, "/")
	if normalized == "" {
		return fmt.Errorf("%s: resource path is required", prefix)
	}
	if seen[normalized] {
		return fmt.Errorf("%s: duplicate resource '%s'", prefix, resource)
	}
	seen[normalized] = true

	if normalized == strings.TrimPrefix(c.Main, "/") {
		return fmt.Errorf("%s: resource '%s' is the main document", prefix, resource)
	}

	name, err := tasks.DisplayName(resource)
	if err != nil {
		return fmt.Errorf("%s: %w", prefix, err)
	}
	if other, ok := names[name]; ok {
		return fmt.Errorf("%s: resource '%s' maps to subsection '%s' like '%s'", prefix, resource, name, other)
	}
	names[name] = resource
	return nil
}

func validateDuration(field, value string, allowZero bool) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s must be a valid duration (e.g., '30s', '5m'): %w", field, err)
	}
	if d < 0 || (d == 0 && !allowZero) {
		return fmt.Errorf("%s must be positive, got %s", field, value)
	}
	return nil
}
