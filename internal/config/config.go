// Package config resolves the XDG configuration directory and loads settings
// from config.yaml and TASKCTL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// AppName is the application directory name.
	AppName = "taskctl"

	// EnvPrefix prefixes every environment override, e.g. TASKCTL_API_BASE_URL.
	EnvPrefix = "TASKCTL"

	// ConfigFile is the optional settings file inside the config directory.
	ConfigFile = "config.yaml"

	// OAuthClientFile is the Google OAuth client credentials filename.
	OAuthClientFile = "oauth_client.json"

	// GoogleTokenFile is the stored Google OAuth token filename.
	GoogleTokenFile = "google_token.json"
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path. Session slots live here too.
	Dir string `mapstructure:"-"`

	// Debug enables debug logging.
	Debug bool `mapstructure:"-"`

	// Quiet suppresses informational output.
	Quiet bool `mapstructure:"-"`

	APIBaseURL string        `mapstructure:"api_base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	LogLevel   string        `mapstructure:"log_level"`
	Color      string        `mapstructure:"color"`
	OAuth      OAuthConfig   `mapstructure:"oauth"`
}

// OAuthConfig controls the browser login flow.
type OAuthConfig struct {
	// CallbackPort is where the local callback server listens. The backend
	// redirects to http://localhost:<port>/auth/callback.
	CallbackPort    int           `mapstructure:"callback_port"`
	CallbackTimeout time.Duration `mapstructure:"callback_timeout"`
}

// New loads the configuration from configDir, or from the default directory
// when configDir is empty. A missing config.yaml is not an error.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, ConfigFile))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Dir = dir

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_base_url", "http://localhost:8080/api/v1")
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("color", "auto")
	v.SetDefault("oauth.callback_port", 3000)
	v.SetDefault("oauth.callback_timeout", 5*time.Minute)
}

// Validate checks settings that can be wrong in config.yaml or the environment.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_base_url must be an http(s) URL, got %q", c.APIBaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	switch strings.ToLower(c.Color) {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("color must be auto, always or never, got %q", c.Color)
	}
	if c.OAuth.CallbackPort < 1 || c.OAuth.CallbackPort > 65535 {
		return fmt.Errorf("oauth.callback_port out of range: %d", c.OAuth.CallbackPort)
	}
	if c.OAuth.CallbackTimeout <= 0 {
		return fmt.Errorf("oauth.callback_timeout must be positive, got %s", c.OAuth.CallbackTimeout)
	}
	return nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// ConfigPath returns the path of the optional settings file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.Dir, ConfigFile)
}

// OAuthClientPath returns the path to the Google OAuth client credentials file.
func (c *Config) OAuthClientPath() string {
	return filepath.Join(c.Dir, OAuthClientFile)
}

// GoogleTokenPath returns the path to the stored Google OAuth token.
func (c *Config) GoogleTokenPath() string {
	return filepath.Join(c.Dir, GoogleTokenFile)
}

// CallbackURL is the address the backend redirects to after browser login.
func (c *Config) CallbackURL() string {
	return fmt.Sprintf("http://localhost:%d/auth/callback", c.OAuth.CallbackPort)
}

// HasOAuthClient checks if the Google OAuth client credentials file exists.
func (c *Config) HasOAuthClient() bool {
	_, err := os.Stat(c.OAuthClientPath())
	return err == nil
}

// HasGoogleToken checks if a Google token has been stored.
func (c *Config) HasGoogleToken() bool {
	_, err := os.Stat(c.GoogleTokenPath())
	return err == nil
}
