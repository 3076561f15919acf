// Package recorder persists raw price ticks to PostgreSQL. It is optional
// and config-gated: the streaming core never depends on it, a fan-out
// handler just offers every update to the recorder's buffer. Writes are
// batched and append-only (insert only, duplicates skipped).
package recorder
