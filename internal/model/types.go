package model

import "time"

// -----------------------------------------------------------------------------
// Live Feed Types
// -----------------------------------------------------------------------------

// PriceUpdate is one live price observation for a symbol.
//
// Updates are ephemeral: the streaming core dispatches them and keeps nothing;
// retention (e.g. a symbol -> latest mapping) is the consumer's decision.
type PriceUpdate struct {
	Symbol        string    // Canonical uppercase symbol (e.g. "AAPL")
	Price         float64   // Last observed price
	Change        *float64  // Absolute change since previous close; nil when the feed omits it
	ChangePercent *float64  // Percent change since previous close; nil when the feed omits it
	ObservedAt    time.Time // Feed-reported observation time
	ReceivedAt    time.Time // Local receive time
}

// -----------------------------------------------------------------------------
// Acquisition Mode Types
// -----------------------------------------------------------------------------

// Mode describes one acquisition strategy offered by the backend.
type Mode struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	UseWebsocket bool     `json:"use_websocket"`
	PollInterval float64  `json:"poll_interval"` // Seconds; meaningful when UseWebsocket is false
	Sources      []string `json:"sources"`
}

// ModeList is the backend's catalogue of acquisition modes.
type ModeList struct {
	Modes       []Mode `json:"modes"`
	CurrentMode string `json:"current_mode"`
}

// FeedStatus is the backend's view of the price feed.
type FeedStatus struct {
	Status             string          `json:"status"`
	UseWebsocket       bool            `json:"use_websocket"`
	PollInterval       float64         `json:"poll_interval"`
	Sources            []string        `json:"sources"`
	SubscribedCount    int             `json:"subscribed_count"`
	SourceAvailability map[string]bool `json:"source_availability"`
}

// ModeChange is the backend's acknowledgement of a mode switch.
type ModeChange struct {
	DisplayName  string  `json:"display_name"`
	UseWebsocket bool    `json:"use_websocket"`
	PollInterval float64 `json:"poll_interval"`
}

// PollEvery converts a mode's poll interval to a duration.
func (m Mode) PollEvery() time.Duration {
	return secondsToDuration(m.PollInterval)
}

// PollEvery converts the status' poll interval to a duration.
func (s FeedStatus) PollEvery() time.Duration {
	return secondsToDuration(s.PollInterval)
}

// PollEvery converts the acknowledged poll interval to a duration.
func (c ModeChange) PollEvery() time.Duration {
	return secondsToDuration(c.PollInterval)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// -----------------------------------------------------------------------------
// Historical Bar Types
// -----------------------------------------------------------------------------

// Candle is one OHLC bar for charting.
type Candle struct {
	Time  int64   `json:"time"` // Bar open time, Unix seconds
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// VolumeBar is one volume bar aligned with a candle.
type VolumeBar struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// ChartData is the historical-bars payload for one symbol.
type ChartData struct {
	Candles []Candle    `json:"candles"`
	Volume  []VolumeBar `json:"volume"`
}
