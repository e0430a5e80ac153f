// Package config loads snoop settings from flags, SNOOP_* environment
// variables and an optional YAML file, all through viper.
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
	"go.uber.org/zap/zapcore"
)

// Viper keys.
const (
	KeyRegistry    = "registry"
	KeyToken       = "token"
	KeyModulesDir  = "modules_dir"
	KeyLogLevel    = "log_level"
	KeyTimeout     = "timeout"
	KeyHTTPTimeout = "http_timeout"
	KeyAllowHosts  = "allow_hosts"
	KeyMaxSessions = "max_sessions"
	KeyNameserver  = "nameserver"
)

const (
	EnvPrefix       = "SNOOP"
	DefaultRegistry = "https://sn0int.com"
	DefaultTimeout  = 5 * time.Minute
)

// Config contains global runtime configuration.
type Config struct {
	Registry    string
	Token       string
	ModulesDir  string
	LogLevel    string
	Timeout     time.Duration
	HTTPTimeout time.Duration
	AllowHosts  []string
	MaxSessions int
	Nameserver  string
}

// Setup registers defaults and environment binding on v.
func Setup(v *viper.Viper) {
	v.SetDefault(KeyRegistry, DefaultRegistry)
	v.SetDefault(KeyModulesDir, DefaultModulesDir())
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyTimeout, DefaultTimeout)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// ReadFile merges the YAML file at path into v. A missing file is not an
// error.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Load builds Config from v and validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Registry:    strings.TrimRight(v.GetString(KeyRegistry), "/"),
		Token:       v.GetString(KeyToken),
		ModulesDir:  v.GetString(KeyModulesDir),
		LogLevel:    v.GetString(KeyLogLevel),
		Timeout:     v.GetDuration(KeyTimeout),
		HTTPTimeout: v.GetDuration(KeyHTTPTimeout),
		AllowHosts:  v.GetStringSlice(KeyAllowHosts),
		MaxSessions: v.GetInt(KeyMaxSessions),
		Nameserver:  v.GetString(KeyNameserver),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate returns error if configuration is invalid.
func (c Config) Validate() error {
	u, err := url.Parse(c.Registry)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("registry must be an http(s) url, got %q", c.Registry)
	}
	if c.ModulesDir == "" {
		return errors.New("modules dir cannot be empty")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if c.Timeout < 0 || c.HTTPTimeout < 0 {
		return errors.New("timeouts cannot be negative")
	}
	if c.MaxSessions < 0 {
		return errors.New("max sessions cannot be negative")
	}
	return nil
}

// DefaultPath returns $XDG_CONFIG_HOME/snoop/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "snoop", "config.yaml")
}

func DefaultModulesDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "snoop", "modules")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "snoop", "modules")
	}
	return filepath.Join(os.TempDir(), "snoop-modules")
}
