package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultWSURL                = "ws://localhost:8000/ws/prices"
	DefaultRestURL              = "http://localhost:8000"
	DefaultFeedTimeout          = 30 * time.Second
	DefaultMaxRetries           = 3
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultMaxReconnectAttempts = 10
	DefaultPingInterval         = 15 * time.Second
	DefaultStaleTimeout         = 60 * time.Second
	DefaultDialTimeout          = 10 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultStreamBufferSize     = 1024
	DefaultStatusInterval       = 15 * time.Second
	DefaultPollInterval         = 5 * time.Second
	DefaultPollConcurrency      = 8
	DefaultPollTimeout          = 10 * time.Second
	DefaultChartDays            = 30
	DefaultBatchSize            = 500
	DefaultFlushInterval        = 2 * time.Second
	DefaultRecorderBufferSize   = 1024
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 10
	DefaultMinConns             = 2
	DefaultServerPort           = 8090
)

func (c *StreamerConfig) applyDefaults() {
	// Feed defaults
	if c.Feed.WSURL == "" {
		c.Feed.WSURL = DefaultWSURL
	}
	if c.Feed.RestURL == "" {
		c.Feed.RestURL = DefaultRestURL
	}
	if c.Feed.Timeout == 0 {
		c.Feed.Timeout = DefaultFeedTimeout
	}
	if c.Feed.MaxRetries == 0 {
		c.Feed.MaxRetries = DefaultMaxRetries
	}

	// Stream defaults
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.MaxReconnectAttempts == 0 {
		c.Stream.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}
	if c.Stream.StaleTimeout == 0 {
		c.Stream.StaleTimeout = DefaultStaleTimeout
	}
	if c.Stream.DialTimeout == 0 {
		c.Stream.DialTimeout = DefaultDialTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultStreamBufferSize
	}

	// Modes defaults
	if c.Modes.StatusInterval == 0 {
		c.Modes.StatusInterval = DefaultStatusInterval
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Concurrency == 0 {
		c.Poller.Concurrency = DefaultPollConcurrency
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}

	// Chart defaults
	if c.Chart.Days == 0 {
		c.Chart.Days = DefaultChartDays
	}

	// Recorder defaults
	if c.Recorder.BatchSize == 0 {
		c.Recorder.BatchSize = DefaultBatchSize
	}
	if c.Recorder.FlushInterval == 0 {
		c.Recorder.FlushInterval = DefaultFlushInterval
	}
	if c.Recorder.BufferSize == 0 {
		c.Recorder.BufferSize = DefaultRecorderBufferSize
	}

	// Database defaults
	applyDBDefaults(&c.Database.Postgres)

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
