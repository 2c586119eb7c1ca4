// Package config loads process configuration from defaults, an optional
// YAML file and WORKSHOP_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix is prepended to every environment variable, with dots in keys
// replaced by underscores: store.backend is WORKSHOP_STORE_BACKEND.
const EnvPrefix = "WORKSHOP"

// Backends accepted in store.backend.
var Backends = []string{"fs", "memory", "sqlite", "postgres", "mysql", "redis"}

type Config struct {
	Addr     string         `mapstructure:"addr"`
	Store    StoreConfig    `mapstructure:"store"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Undo     UndoConfig     `mapstructure:"undo"`
	Log      LogConfig      `mapstructure:"log"`
	Trace    TraceConfig    `mapstructure:"trace"`
}

type StoreConfig struct {
	Backend     string      `mapstructure:"backend"`
	Dir         string      `mapstructure:"dir"`
	DatabaseURL string      `mapstructure:"database_url"`
	MySQLDSN    string      `mapstructure:"mysql_dsn"`
	Redis       RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type SnapshotConfig struct {
	Retention          int  `mapstructure:"retention"`
	CheckpointInterval int  `mapstructure:"checkpoint_interval"`
	RecoverIndex       bool `mapstructure:"recover_index"`
}

type UndoConfig struct {
	Limit int `mapstructure:"limit"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type TraceConfig struct {
	Stdout      bool    `mapstructure:"stdout"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("store.backend", "fs")
	v.SetDefault("store.dir", "./data")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.mysql_dsn", "")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "workshop:")
	v.SetDefault("snapshot.retention", 0)
	v.SetDefault("snapshot.checkpoint_interval", 0)
	v.SetDefault("snapshot.recover_index", false)
	v.SetDefault("undo.limit", 100)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("trace.stdout", false)
	v.SetDefault("trace.sample_ratio", 1.0)
}

// Load reads configuration. path may be empty; a named file that does not
// exist is an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that have no usable fallback.
func (c Config) Validate() error {
	var errs []error
	if !slices.Contains(Backends, c.Store.Backend) {
		errs = append(errs, fmt.Errorf("store.backend %q is not one of %s", c.Store.Backend, strings.Join(Backends, ", ")))
	}
	switch c.Store.Backend {
	case "fs":
		if c.Store.Dir == "" {
			errs = append(errs, errors.New("store.dir is required for the fs backend"))
		}
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("store.database_url is required for the %s backend", c.Store.Backend))
		}
	case "mysql":
		if c.Store.MySQLDSN == "" {
			errs = append(errs, errors.New("store.mysql_dsn is required for the mysql backend"))
		}
	}
	if c.Snapshot.Retention < 0 || c.Snapshot.CheckpointInterval < 0 || c.Undo.Limit < 0 {
		errs = append(errs, errors.New("snapshot.retention, snapshot.checkpoint_interval and undo.limit must be >= 0"))
	}
	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	// stdout is reserved for command output and the MCP stdio transport
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
