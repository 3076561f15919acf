// Package database provides PostgreSQL connection pool management for the
// tick recorder. The streaming core never touches the database; only the
// recorder consumes a pool, and only when recording is enabled.
package database
