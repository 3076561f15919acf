// Package poller implements the pull-mode quote poller.
//
// The quote poller:
//   - Polls the REST quote endpoint on a fixed interval
//   - Covers the same symbol set the streaming feed subscribes to
//   - Uses concurrent requests with bounded concurrency
//   - Feeds updates through the same handler path as the live feed
package poller
