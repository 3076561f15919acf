// Package api provides the REST client for the price backend: the mode
// negotiation surface, single-symbol quotes for pull mode, and historical
// OHLC bars for charting. Requests retry transient failures (HTTP 5xx and
// 429) with exponential backoff and jitter.
package api
