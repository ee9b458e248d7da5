// Package config handles configuration loading for BhavLens.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Data    DataConfig    `mapstructure:"data"    yaml:"data"`
	Cache   CacheConfig   `mapstructure:"cache"   yaml:"cache"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	News    NewsConfig    `mapstructure:"news"    yaml:"news"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// DataConfig locates the raw bhavcopy files and classification sources.
type DataConfig struct {
	Root       string `mapstructure:"root"        yaml:"root"`        // data root directory
	RawSubdir  string `mapstructure:"raw_subdir"  yaml:"raw_subdir"`  // preferred subfolder under root
	SectorCSV  string `mapstructure:"sector_csv"  yaml:"sector_csv"`  // symbol→sector mapping CSV
	IndicesDir string `mapstructure:"indices_dir" yaml:"indices_dir"` // dated index-constituent snapshots
}

// CacheConfig locates the persisted snapshot caches.
type CacheConfig struct {
	Dir            string `mapstructure:"dir"             yaml:"dir"`
	RefreshEnabled bool   `mapstructure:"refresh_enabled" yaml:"refresh_enabled"` // serve-mode cron recheck
	RefreshCron    string `mapstructure:"refresh_cron"    yaml:"refresh_cron"`
}

// SessionConfig holds the conversation log settings.
type SessionConfig struct {
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// NewsConfig holds the RSS scout settings.
type NewsConfig struct {
	Enabled bool     `mapstructure:"enabled" yaml:"enabled"`
	Feeds   []string `mapstructure:"feeds"   yaml:"feeds"` // optional override of the default sources
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"` // "debug", "info", "warn", "error"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.bhavlens/config.yaml (home directory)
//  3. /etc/bhavlens/config.yaml (system)
//
// Environment variables override config file values.
// Format: BHAVLENS_<SECTION>_<KEY>, e.g., BHAVLENS_DATA_ROOT
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".bhavlens"))
	v.AddConfigPath("/etc/bhavlens")

	v.SetEnvPrefix("BHAVLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is fine, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("BHAVLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("data.root", "./data")
	v.SetDefault("data.raw_subdir", "raw")
	v.SetDefault("data.sector_csv", "./data/sectors/sector_mapping.csv")
	v.SetDefault("data.indices_dir", "./data/indices")

	v.SetDefault("cache.dir", "./data/cache")
	v.SetDefault("cache.refresh_enabled", true)
	v.SetDefault("cache.refresh_cron", "@every 15m")

	v.SetDefault("session.db_path", "./data/sessions.db")

	v.SetDefault("news.enabled", true)

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("logging.level", "info")
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
