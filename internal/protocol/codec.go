package protocol

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rickgao/pricestream/internal/model"
)

// Kind identifies a decoded inbound frame.
type Kind string

const (
	KindConnected    Kind = "connected"
	KindSubscribed   Kind = "subscribed"
	KindUnsubscribed Kind = "unsubscribed"
	KindPriceUpdate  Kind = "price_update"
	KindPong         Kind = "pong"
	KindError        Kind = "error"
	KindUnknown      Kind = "unknown"
)

// Command is an outbound client frame.
type Command struct {
	Type   string `json:"type"`
	Ticker string `json:"ticker,omitempty"`
}

// Subscribe builds a subscribe command for a symbol.
func Subscribe(symbol string) Command {
	return Command{Type: "subscribe", Ticker: symbol}
}

// Unsubscribe builds an unsubscribe command for a symbol.
func Unsubscribe(symbol string) Command {
	return Command{Type: "unsubscribe", Ticker: symbol}
}

// Ping builds a liveness probe command.
func Ping() Command {
	return Command{Type: "ping"}
}

// Encode serializes a command to its wire form.
func Encode(cmd Command) ([]byte, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode %q command: %w", cmd.Type, err)
	}
	return data, nil
}

// Message is one decoded inbound frame. Only the fields for its Kind are set.
type Message struct {
	Kind     Kind
	RawType  string             // The wire "type" value; set for KindUnknown
	ClientID string             // KindConnected
	Ticker   string             // KindSubscribed, KindUnsubscribed
	Update   *model.PriceUpdate // KindPriceUpdate
	ErrText  string             // KindError
}

// DecodeError reports an inbound frame that failed to parse as the envelope
// format. The frame is dropped; the connection is unaffected.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame: %v", e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// envelope is the superset of all inbound frame fields.
type envelope struct {
	Type          string   `json:"type"`
	ClientID      string   `json:"client_id"`
	Ticker        string   `json:"ticker"`
	Price         float64  `json:"price"`
	Change        *float64 `json:"change"`
	ChangePercent *float64 `json:"change_percent"`
	Timestamp     float64  `json:"timestamp"` // Fractional Unix epoch seconds
	Message       string   `json:"message"`
}

// Decode parses one inbound frame. receivedAt is the local receive time; it is
// carried on price updates and used as the observation time when the feed
// omits a timestamp. A malformed envelope yields a *DecodeError; it never
// panics past the decode boundary.
func Decode(data []byte, receivedAt time.Time) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, &DecodeError{Cause: err}
	}
	if env.Type == "" {
		return Message{}, &DecodeError{Cause: fmt.Errorf("frame has no type")}
	}

	switch Kind(env.Type) {
	case KindConnected:
		return Message{Kind: KindConnected, ClientID: env.ClientID}, nil

	case KindSubscribed:
		return Message{Kind: KindSubscribed, Ticker: env.Ticker}, nil

	case KindUnsubscribed:
		return Message{Kind: KindUnsubscribed, Ticker: env.Ticker}, nil

	case KindPriceUpdate:
		update := &model.PriceUpdate{
			Symbol:        env.Ticker,
			Price:         env.Price,
			Change:        env.Change,
			ChangePercent: env.ChangePercent,
			ObservedAt:    EpochSeconds(env.Timestamp, receivedAt),
			ReceivedAt:    receivedAt,
		}
		return Message{Kind: KindPriceUpdate, Update: update}, nil

	case KindPong:
		return Message{Kind: KindPong}, nil

	case KindError:
		return Message{Kind: KindError, ErrText: env.Message}, nil

	default:
		return Message{Kind: KindUnknown, RawType: env.Type}, nil
	}
}

// EpochSeconds converts fractional Unix epoch seconds to a time.Time,
// falling back to fallback when the feed sent no timestamp.
func EpochSeconds(ts float64, fallback time.Time) time.Time {
	if ts == 0 {
		return fallback
	}
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
}
