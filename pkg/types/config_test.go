package types

import (
	"errors"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:    "empty driver returns ErrDriverEmpty",
			config:  Config{Driver: "", DataDir: "/tmp/data"},
			wantErr: ErrDriverEmpty,
		},
		{
			name:    "unknown driver returns ErrDriverUnknown",
			config:  Config{Driver: "mysql", DataDir: "/tmp/data"},
			wantErr: ErrDriverUnknown,
		},
		{
			name:    "valid sqlite config",
			config:  Config{Driver: "sqlite", DataDir: "/tmp/data"},
			wantErr: nil,
		},
		{
			name:    "sqlite with empty DataDir is valid at config level",
			config:  Config{Driver: "sqlite", DataDir: ""},
			wantErr: nil,
		},
		{
			name:    "postgres without host returns ErrPostgresHostEmpty",
			config:  Config{Driver: "postgres", Postgres: PostgresConfig{Database: "tasks"}},
			wantErr: ErrPostgresHostEmpty,
		},
		{
			name:    "postgres without database returns ErrPostgresDatabaseEmpty",
			config:  Config{Driver: "postgres", Postgres: PostgresConfig{Host: "localhost"}},
			wantErr: ErrPostgresDatabaseEmpty,
		},
		{
			name: "valid postgres config",
			config: Config{
				Driver:   "postgres",
				Postgres: PostgresConfig{Host: "localhost", Port: 5432, Database: "tasks"},
			},
			wantErr: nil,
		},
		{
			name:    "enabled cache without addr returns ErrCacheAddrEmpty",
			config:  Config{Driver: "sqlite", Cache: CacheConfig{Enabled: true}},
			wantErr: ErrCacheAddrEmpty,
		},
		{
			name:    "disabled cache without addr is valid",
			config:  Config{Driver: "sqlite", Cache: CacheConfig{Enabled: false}},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %v, got nil", tt.wantErr)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "tasktree",
		Password: "secret",
		Database: "tasks",
	}
	want := "host=db.internal port=5433 user=tasktree password=secret dbname=tasks sslmode=disable"
	if got := p.DSN(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	p.SSLMode = "require"
	want = "host=db.internal port=5433 user=tasktree password=secret dbname=tasks sslmode=require"
	if got := p.DSN(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestServerAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 9090}
	if got := s.Addr(); got != "127.0.0.1:9090" {
		t.Fatalf("expected 127.0.0.1:9090, got %q", got)
	}
}
