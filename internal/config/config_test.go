package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-streamer
feed:
  ws_url: wss://feed.example.com/ws/prices
  rest_url: https://feed.example.com
symbols:
  - AAPL
  - MSFT
stream:
  max_reconnect_attempts: 5
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-streamer" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-streamer")
	}
	if cfg.Feed.WSURL != "wss://feed.example.com/ws/prices" {
		t.Errorf("Feed.WSURL = %q, want %q", cfg.Feed.WSURL, "wss://feed.example.com/ws/prices")
	}
	if len(cfg.Symbols) != 2 || cfg.Symbols[0] != "AAPL" {
		t.Errorf("Symbols = %v, want [AAPL MSFT]", cfg.Symbols)
	}
	if cfg.Stream.MaxReconnectAttempts != 5 {
		t.Errorf("Stream.MaxReconnectAttempts = %d, want 5", cfg.Stream.MaxReconnectAttempts)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
instance:
  id: test-streamer
recorder:
  enabled: true
database:
  postgres:
    host: localhost
    name: ticks
    user: streamer
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Postgres.Password != "secret123" {
		t.Errorf("Database.Postgres.Password = %q, want %q", cfg.Database.Postgres.Password, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-streamer
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Feed.WSURL != DefaultWSURL {
		t.Errorf("Feed.WSURL = %q, want default %q", cfg.Feed.WSURL, DefaultWSURL)
	}
	if cfg.Feed.Timeout != DefaultFeedTimeout {
		t.Errorf("Feed.Timeout = %v, want default %v", cfg.Feed.Timeout, DefaultFeedTimeout)
	}
	if cfg.Stream.ReconnectBaseDelay != DefaultReconnectBaseDelay {
		t.Errorf("Stream.ReconnectBaseDelay = %v, want default %v", cfg.Stream.ReconnectBaseDelay, DefaultReconnectBaseDelay)
	}
	if cfg.Stream.MaxReconnectAttempts != DefaultMaxReconnectAttempts {
		t.Errorf("Stream.MaxReconnectAttempts = %d, want default %d", cfg.Stream.MaxReconnectAttempts, DefaultMaxReconnectAttempts)
	}
	if cfg.Modes.StatusInterval != DefaultStatusInterval {
		t.Errorf("Modes.StatusInterval = %v, want default %v", cfg.Modes.StatusInterval, DefaultStatusInterval)
	}
	if cfg.Poller.Interval != DefaultPollInterval {
		t.Errorf("Poller.Interval = %v, want default %v", cfg.Poller.Interval, DefaultPollInterval)
	}
	if cfg.Chart.Days != DefaultChartDays {
		t.Errorf("Chart.Days = %d, want default %d", cfg.Chart.Days, DefaultChartDays)
	}
	if cfg.Database.Postgres.Port != DefaultDBPort {
		t.Errorf("Database.Postgres.Port = %d, want default %d", cfg.Database.Postgres.Port, DefaultDBPort)
	}
	if cfg.Server.Port != DefaultServerPort {
		t.Errorf("Server.Port = %d, want default %d", cfg.Server.Port, DefaultServerPort)
	}
}

func TestValidate(t *testing.T) {
	valid := func() StreamerConfig {
		return StreamerConfig{
			Instance: InstanceConfig{ID: "test"},
			Feed: FeedConfig{
				WSURL:   "ws://localhost:8000/ws/prices",
				RestURL: "http://localhost:8000",
			},
			Stream: StreamConfig{
				MaxReconnectAttempts: 10,
				BufferSize:           1024,
			},
			Poller: PollerConfig{Concurrency: 8},
			Chart:  ChartConfig{Days: 30},
			Server: ServerConfig{Port: 8090},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*StreamerConfig)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *StreamerConfig) {},
			wantErr: "",
		},
		{
			name:    "missing instance id",
			mutate:  func(c *StreamerConfig) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "bad ws url scheme",
			mutate:  func(c *StreamerConfig) { c.Feed.WSURL = "http://localhost:8000" },
			wantErr: `feed.ws_url must be a ws:// or wss:// URL, got "http://localhost:8000"`,
		},
		{
			name:    "zero reconnect attempts",
			mutate:  func(c *StreamerConfig) { c.Stream.MaxReconnectAttempts = 0 },
			wantErr: "stream.max_reconnect_attempts must be >= 1",
		},
		{
			name: "recorder enabled without database host",
			mutate: func(c *StreamerConfig) {
				c.Recorder = RecorderConfig{Enabled: true, BatchSize: 500}
			},
			wantErr: "database.postgres.host is required",
		},
		{
			name: "recorder enabled with valid database",
			mutate: func(c *StreamerConfig) {
				c.Recorder = RecorderConfig{Enabled: true, BatchSize: 500}
				c.Database.Postgres = DBConfig{
					Host: "localhost", Name: "ticks", User: "streamer",
					Password: "pass", MaxConns: 10, MinConns: 2,
				}
			},
			wantErr: "",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *StreamerConfig) {
				c.Recorder = RecorderConfig{Enabled: true, BatchSize: 500}
				c.Database.Postgres = DBConfig{
					Host: "localhost", Name: "ticks", User: "streamer",
					Password: "pass", MaxConns: 5, MinConns: 10,
				}
			},
			wantErr: "database.postgres.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "recorder disabled skips database validation",
			mutate:  func(c *StreamerConfig) { c.Database.Postgres = DBConfig{} },
			wantErr: "",
		},
		{
			name:    "bad server port",
			mutate:  func(c *StreamerConfig) { c.Server.Port = 70000 },
			wantErr: "server.port must be between 1 and 65535, got 70000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestLoadAndValidate(t *testing.T) {
	yaml := `
instance:
  id: test-streamer
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}
	if cfg.Stream.PingInterval != 15*time.Second {
		t.Errorf("Stream.PingInterval = %v, want 15s", cfg.Stream.PingInterval)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
