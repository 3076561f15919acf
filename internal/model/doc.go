// Package model defines shared data types used across pricestream.
//
// Conventions:
//   - Prices: float64 in the feed's quote currency
//   - Timestamps: time.Time in Go code; the wire carries fractional Unix epoch seconds
//   - Symbols: canonical uppercase (see stream.Canonical)
package model
