package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/apollostatus/apollostatus/uptime"
)

// Config represents configuration data for the status service.
type Config struct {
	SiteName         string            `yaml:"site_name"`
	Interval         time.Duration     `yaml:"interval" validate:"gte=1s"`
	Listen           string            `yaml:"listen" validate:"required"`
	InsecureTLS      bool              `yaml:"insecure_tls"`
	PrivilegedICMP   bool              `yaml:"privileged_icmp"`
	HistoryRetention int               `yaml:"history_retention" validate:"gte=1"`
	Store            StoreConfig       `yaml:"store"`
	Log              LogConfig         `yaml:"log"`
	Components       []ComponentConfig `yaml:"components" validate:"required,min=1,dive"`
}

// StoreConfig locates the bbolt database. An empty path keeps state in memory.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LogConfig selects the zap sinks and rotation of the file sink.
type LogConfig struct {
	Level      string `yaml:"level" validate:"oneof=none error info debug"`
	Console    bool   `yaml:"console"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`
	Compress   bool   `yaml:"compress"`
	Internal   bool   `yaml:"internal"`
}

// ComponentConfig is the YAML form of an uptime.Component.
type ComponentConfig struct {
	Name        string        `yaml:"name" validate:"required,hostname_rfc1123"`
	DisplayName string        `yaml:"display_name"`
	Kind        string        `yaml:"kind" validate:"required,oneof=http https tcp icmp"`
	URL         string        `yaml:"url" validate:"omitempty,url"`
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port" validate:"gte=0,lte=65535"`
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`
}

// DefaultTimeout applies to components that do not set a timeout.
const DefaultTimeout = 10 * time.Second

// DefaultConfig returns the settings a file overlays. It carries no components.
func DefaultConfig() Config {
	return Config{
		SiteName:         "ApolloStatus",
		Interval:         time.Minute,
		Listen:           ":3000",
		HistoryRetention: 100,
		Log: LogConfig{
			Level:      "warn",
			Console:    true,
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load reads configuration from a yaml file on fs, applies environment
// overrides and validates the result. Any problem is fatal to startup.
func Load(fs afero.Fs, path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is required")
	}
	content, err := afero.ReadFile(fs, path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	Normalize(&cfg)
	if err := Validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overlays PORT, LOG_LEVEL and APOLLO_DB.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("PORT must be numeric, got %q", v)
		}
		cfg.Listen = ":" + v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v, ok := lookup("APOLLO_DB"); ok && v != "" {
		cfg.Store.Path = v
	}
	return nil
}

// Normalize maps accepted aliases onto canonical values. Call before Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	// winston levels in the old deployment
	switch cfg.Log.Level {
	case "":
		cfg.Log.Level = "info"
	case "warn", "warning":
		cfg.Log.Level = "error"
	case "silly", "verbose":
		cfg.Log.Level = "debug"
	}
	for i := range cfg.Components {
		comp := &cfg.Components[i]
		comp.Kind = strings.ToLower(strings.TrimSpace(comp.Kind))
		if comp.DisplayName == "" {
			comp.DisplayName = comp.Name
		}
		if comp.Timeout == 0 {
			comp.Timeout = DefaultTimeout
		}
	}
}

// LogLevel maps the configured level onto the engine's result log level.
func (c Config) LogLevel() uptime.LogLevel {
	switch c.Log.Level {
	case "none":
		return uptime.LogNone
	case "error":
		return uptime.LogError
	case "debug":
		return uptime.LogDebug
	default:
		return uptime.LogInfo
	}
}

// UptimeComponents converts the validated descriptors.
func (c Config) UptimeComponents() []uptime.Component {
	out := make([]uptime.Component, 0, len(c.Components))
	for _, comp := range c.Components {
		out = append(out, uptime.Component{
			Name:        comp.Name,
			DisplayName: comp.DisplayName,
			Kind:        uptime.ProbeKind(comp.Kind),
			URL:         comp.URL,
			Host:        comp.Host,
			Port:        comp.Port,
			Timeout:     comp.Timeout,
		})
	}
	return out
}
