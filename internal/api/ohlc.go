package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rickgao/pricestream/internal/model"
)

// GetOHLC fetches days worth of historical bars for one symbol.
func (c *Client) GetOHLC(ctx context.Context, symbol string, days int) (*model.ChartData, error) {
	query := url.Values{}
	if days > 0 {
		query.Set("days", strconv.Itoa(days))
	}

	var resp model.ChartData
	if err := c.get(ctx, "/api/ohlc/"+symbol, query, &resp); err != nil {
		return nil, fmt.Errorf("get ohlc %s: %w", symbol, err)
	}

	return &resp, nil
}
