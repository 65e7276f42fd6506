package types

import (
	"errors"
	"fmt"
	"time"
)

// Supported store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds driver selection and parameters for Backend.Attach, plus the
// server, cache, and logging settings consumed by the taskd commands.
type Config struct {
	Driver   string         `json:"driver" yaml:"driver"`
	DataDir  string         `json:"data_dir" yaml:"data_dir"`
	LogLevel string         `json:"log_level" yaml:"log_level"`
	Postgres PostgresConfig `json:"postgres" yaml:"postgres"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Cache    CacheConfig    `json:"cache" yaml:"cache"`
}

// PostgresConfig carries the connection parameters for the postgres driver.
// Fields map one-to-one onto the DB_* environment variables.
type PostgresConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database" yaml:"database"`
	SSLMode  string `json:"ssl_mode" yaml:"ssl_mode"`
}

// DSN renders the lib/pq connection string.
func (p PostgresConfig) DSN() string {
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, sslMode)
}

// ServerConfig carries the HTTP listen address and the shutdown grace
// period.
type ServerConfig struct {
	Host          string        `json:"host" yaml:"host"`
	Port          int           `json:"port" yaml:"port"`
	ShutdownGrace time.Duration `json:"shutdown_grace" yaml:"shutdown_grace"`
}

// Addr renders the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CacheConfig carries the optional Redis read-cache settings. Caching is
// off unless Enabled is set.
type CacheConfig struct {
	Enabled  bool          `json:"enabled" yaml:"enabled"`
	Addr     string        `json:"addr" yaml:"addr"`
	Password string        `json:"password" yaml:"password"`
	DB       int           `json:"db" yaml:"db"`
	TTL      time.Duration `json:"ttl" yaml:"ttl"`
	Prefix   string        `json:"prefix" yaml:"prefix"`
}

// Config validation errors.
var (
	ErrDriverEmpty           = errors.New("driver must not be empty")
	ErrDriverUnknown         = errors.New("unknown driver")
	ErrPostgresHostEmpty     = errors.New("postgres host must not be empty")
	ErrPostgresDatabaseEmpty = errors.New("postgres database must not be empty")
	ErrCacheAddrEmpty        = errors.New("cache addr must not be empty")
)

// knownDrivers lists the drivers that Validate accepts.
var knownDrivers = map[string]bool{
	DriverSQLite:   true,
	DriverPostgres: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel
// error from this package on failure.
func (c Config) Validate() error {
	if c.Driver == "" {
		return ErrDriverEmpty
	}
	if !knownDrivers[c.Driver] {
		return ErrDriverUnknown
	}
	if c.Driver == DriverPostgres {
		if c.Postgres.Host == "" {
			return ErrPostgresHostEmpty
		}
		if c.Postgres.Database == "" {
			return ErrPostgresDatabaseEmpty
		}
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return ErrCacheAddrEmpty
	}
	return nil
}
