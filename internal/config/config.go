package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"meshdiag/internal/model"
)

const (
	DefaultListen       = "127.0.0.1:8787"
	DefaultSnapshotPath = "nodes.yaml"
	DefaultLogLevel     = "info"

	// EnvPrefix namespaces environment overrides, e.g. MESHDIAG_LOG_LEVEL.
	EnvPrefix = "MESHDIAG"
)

// Config holds service and CLI settings.
type Config struct {
	Listen       string `yaml:"listen" mapstructure:"listen"`
	SnapshotPath string `yaml:"snapshot_path" mapstructure:"snapshot_path"`
	// OwnerID overrides the owner recorded in the snapshot.
	OwnerID       string    `yaml:"owner_id,omitempty" mapstructure:"owner_id"`
	ShowRelayInfo bool      `yaml:"show_relay_info" mapstructure:"show_relay_info"`
	WatchSnapshot bool      `yaml:"watch_snapshot" mapstructure:"watch_snapshot"`
	ReportPath    string    `yaml:"report_path,omitempty" mapstructure:"report_path"`
	Log           LogConfig `yaml:"log" mapstructure:"log"`
}

// LogConfig selects the logger flavour and level.
type LogConfig struct {
	Level       string `yaml:"level" mapstructure:"level"`
	Development bool   `yaml:"development" mapstructure:"development"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:        DefaultListen,
		SnapshotPath:  DefaultSnapshotPath,
		ShowRelayInfo: true,
		WatchSnapshot: true,
		Log:           LogConfig{Level: DefaultLogLevel},
	}
}

// Load reads a YAML config file and applies MESHDIAG_* environment overrides.
// An empty path yields defaults plus environment.
func Load(path string) (Config, error) {
	v := viper.New()
	def := Default()
	v.SetDefault("listen", def.Listen)
	v.SetDefault("snapshot_path", def.SnapshotPath)
	v.SetDefault("owner_id", "")
	v.SetDefault("show_relay_info", def.ShowRelayInfo)
	v.SetDefault("watch_snapshot", def.WatchSnapshot)
	v.SetDefault("report_path", "")
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.development", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	ApplyDefaults(&cfg)
	return cfg, nil
}

// Save writes a YAML config file to disk.
func Save(path string, cfg Config) error {
	ApplyDefaults(&cfg)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate performs minimal validation for required fields.
func Validate(cfg Config) error {
	if cfg.SnapshotPath == "" {
		return fmt.Errorf("snapshot_path is required")
	}
	if _, err := cfg.Owner(); err != nil {
		return err
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Log.Level)
	}
	return nil
}

// ApplyDefaults fills in default values when empty.
func ApplyDefaults(cfg *Config) {
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.SnapshotPath == "" {
		cfg.SnapshotPath = DefaultSnapshotPath
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
}

// Owner parses OwnerID. It returns nil when no owner is configured.
func (c Config) Owner() (*model.NodeID, error) {
	if c.OwnerID == "" {
		return nil, nil
	}
	id, err := model.ParseNodeID(c.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("owner_id: %w", err)
	}
	return &id, nil
}
