package config

import "time"

// StreamerConfig is the root configuration for a streamer instance.
type StreamerConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Feed     FeedConfig     `yaml:"feed"`
	Stream   StreamConfig   `yaml:"stream"`
	Symbols  []string       `yaml:"symbols"`
	Modes    ModesConfig    `yaml:"modes"`
	Poller   PollerConfig   `yaml:"poller"`
	Chart    ChartConfig    `yaml:"chart"`
	Recorder RecorderConfig `yaml:"recorder"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
}

// InstanceConfig identifies this streamer.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// FeedConfig holds price backend endpoints.
type FeedConfig struct {
	WSURL      string        `yaml:"ws_url"`
	RestURL    string        `yaml:"rest_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// StreamConfig holds streaming client settings.
type StreamConfig struct {
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	StaleTimeout         time.Duration `yaml:"stale_timeout"`
	DialTimeout          time.Duration `yaml:"dial_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	BufferSize           int           `yaml:"buffer_size"`
}

// ModesConfig holds mode-negotiation settings.
type ModesConfig struct {
	StatusInterval time.Duration `yaml:"status_interval"`
}

// PollerConfig holds pull-mode quote poller settings.
type PollerConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ChartConfig holds historical-bars settings.
type ChartConfig struct {
	Days int `yaml:"days"`
}

// RecorderConfig holds tick recorder settings. The recorder is optional; when
// disabled the database section is ignored.
type RecorderConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DatabaseConfig holds the PostgreSQL connection for recorded ticks.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// ServerConfig holds the local status HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}
