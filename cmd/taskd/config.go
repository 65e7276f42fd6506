package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/tasktree/internal/paths"
	"github.com/mesh-intelligence/tasktree/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
)

// Viper config keys.
const (
	cfgKeyDriver        = "driver"
	cfgKeyDataDir       = "data_dir"
	cfgKeyLogLevel      = "log_level"
	cfgKeyServerHost    = "server.host"
	cfgKeyServerPort    = "server.port"
	cfgKeyShutdownGrace = "server.shutdown_grace"
	cfgKeyPGHost        = "postgres.host"
	cfgKeyPGPort        = "postgres.port"
	cfgKeyPGUser        = "postgres.user"
	cfgKeyPGPassword    = "postgres.password"
	cfgKeyPGDatabase    = "postgres.database"
	cfgKeyPGSSLMode     = "postgres.ssl_mode"
	cfgKeyCacheEnabled  = "cache.enabled"
	cfgKeyCacheAddr     = "cache.addr"
	cfgKeyCachePassword = "cache.password"
	cfgKeyCacheDB       = "cache.db"
	cfgKeyCacheTTL      = "cache.ttl"
	cfgKeyCachePrefix   = "cache.prefix"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# taskd configuration

# Store driver: sqlite (default) or postgres
driver: sqlite

# Data directory for the sqlite database (overridable with --data-dir)
# data_dir:

# log_level: info

server:
  host: 0.0.0.0
  port: 8080
  # shutdown_grace: 10s

# Postgres connection for driver: postgres. The DB_HOST, DB_PORT, DB_USER,
# DB_PASS, and DB_NAME environment variables override these values.
# postgres:
#   host: localhost
#   port: 5432
#   user: tasktree
#   password: ""
#   database: tasktree

# Optional Redis read cache
# cache:
#   enabled: false
#   addr: localhost:6379
#   ttl: 60s
`

// loadConfig reads config.yaml from configDir, creating the directory and a
// default config.yaml on first run. A missing config.yaml is not an error;
// defaults apply.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := ensureConfigDir(configDir); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyDriver, types.DriverSQLite)
	v.SetDefault(cfgKeyLogLevel, "info")
	v.SetDefault(cfgKeyServerHost, "0.0.0.0")
	v.SetDefault(cfgKeyServerPort, 8080)
	v.SetDefault(cfgKeyShutdownGrace, "10s")
	v.SetDefault(cfgKeyPGHost, "localhost")
	v.SetDefault(cfgKeyPGPort, 5432)
	v.SetDefault(cfgKeyPGSSLMode, "disable")
	v.SetDefault(cfgKeyCacheEnabled, false)
	v.SetDefault(cfgKeyCacheAddr, "localhost:6379")
	v.SetDefault(cfgKeyCacheDB, 0)
	v.SetDefault(cfgKeyCacheTTL, "60s")
	v.SetDefault(cfgKeyCachePrefix, "tasktree:")

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// ensureConfigDir creates the configuration directory if needed.
func ensureConfigDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// ensureDefaultConfigFile writes a commented default config.yaml when none
// exists yet. An existing file is never touched.
func ensureDefaultConfigFile(dir string) error {
	path := filepath.Join(dir, configFileName+"."+configFileType)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// buildConfig assembles the effective Config. Flags override config.yaml
// values and defaults. The DB_* environment variables override the postgres
// section, and the data directory follows the paths.ResolveDataDir chain.
func buildConfig(v *viper.Viper) (types.Config, error) {
	config := types.Config{
		Driver:   v.GetString(cfgKeyDriver),
		DataDir:  v.GetString(cfgKeyDataDir),
		LogLevel: v.GetString(cfgKeyLogLevel),
		Server: types.ServerConfig{
			Host:          v.GetString(cfgKeyServerHost),
			Port:          v.GetInt(cfgKeyServerPort),
			ShutdownGrace: v.GetDuration(cfgKeyShutdownGrace),
		},
		Postgres: types.PostgresConfig{
			Host:     v.GetString(cfgKeyPGHost),
			Port:     v.GetInt(cfgKeyPGPort),
			User:     v.GetString(cfgKeyPGUser),
			Password: v.GetString(cfgKeyPGPassword),
			Database: v.GetString(cfgKeyPGDatabase),
			SSLMode:  v.GetString(cfgKeyPGSSLMode),
		},
		Cache: types.CacheConfig{
			Enabled:  v.GetBool(cfgKeyCacheEnabled),
			Addr:     v.GetString(cfgKeyCacheAddr),
			Password: v.GetString(cfgKeyCachePassword),
			DB:       v.GetInt(cfgKeyCacheDB),
			TTL:      v.GetDuration(cfgKeyCacheTTL),
			Prefix:   v.GetString(cfgKeyCachePrefix),
		},
	}

	applyEnv(&config)

	if flagDriver != "" {
		config.Driver = flagDriver
	}
	if flagLogLevel != "" {
		config.LogLevel = flagLogLevel
	}
	dataDir, err := paths.ResolveDataDir(flagDataDir, config.DataDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	config.DataDir = dataDir

	if err := config.Validate(); err != nil {
		return types.Config{}, err
	}
	return config, nil
}

// applyEnv overlays the DB_* environment variables onto the postgres
// settings.
func applyEnv(config *types.Config) {
	if v := os.Getenv("DB_HOST"); v != "" {
		config.Postgres.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Postgres.Port = port
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		config.Postgres.User = v
	}
	if v := os.Getenv("DB_PASS"); v != "" {
		config.Postgres.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		config.Postgres.Database = v
	}
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		show := cfg
		if show.Postgres.Password != "" {
			show.Postgres.Password = "<redacted>"
		}
		if show.Cache.Password != "" {
			show.Cache.Password = "<redacted>"
		}

		out, err := json.MarshalIndent(show, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, "config:", err)
			os.Exit(exitSysError)
		}
		fmt.Println(string(out))
		return nil
	},
}
