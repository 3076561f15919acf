package api

import (
	"context"
	"fmt"
	"time"

	"github.com/rickgao/pricestream/internal/model"
	"github.com/rickgao/pricestream/internal/protocol"
)

// quoteResponse is the wire shape of a single-symbol quote.
type quoteResponse struct {
	Ticker        string   `json:"ticker"`
	Price         float64  `json:"price"`
	Change        *float64 `json:"change"`
	ChangePercent *float64 `json:"change_percent"`
	Timestamp     float64  `json:"timestamp"` // Fractional Unix epoch seconds
}

// GetQuote fetches the latest quote for one symbol. Pull mode polls this in
// place of the streaming feed, so the result uses the same update type the
// push path dispatches.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*model.PriceUpdate, error) {
	var resp quoteResponse
	if err := c.get(ctx, "/api/quote/"+symbol, nil, &resp); err != nil {
		return nil, fmt.Errorf("get quote %s: %w", symbol, err)
	}

	now := time.Now()
	return &model.PriceUpdate{
		Symbol:        resp.Ticker,
		Price:         resp.Price,
		Change:        resp.Change,
		ChangePercent: resp.ChangePercent,
		ObservedAt:    protocol.EpochSeconds(resp.Timestamp, now),
		ReceivedAt:    now,
	}, nil
}
