package api

import (
	"context"
	"fmt"

	"github.com/rickgao/pricestream/internal/model"
)

// GetModes fetches the catalogue of acquisition modes offered by the backend.
func (c *Client) GetModes(ctx context.Context) (*model.ModeList, error) {
	var resp model.ModeList
	if err := c.get(ctx, "/api/stream/modes", nil, &resp); err != nil {
		return nil, fmt.Errorf("get modes: %w", err)
	}
	return &resp, nil
}

// GetStatus fetches the backend's view of the price feed.
func (c *Client) GetStatus(ctx context.Context) (*model.FeedStatus, error) {
	var resp model.FeedStatus
	if err := c.get(ctx, "/api/stream/status", nil, &resp); err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	return &resp, nil
}

// SetMode requests a mode switch and returns the backend's acknowledgement.
// A rejected switch surfaces as an *APIError carrying the backend's detail
// text.
func (c *Client) SetMode(ctx context.Context, modeID string) (*model.ModeChange, error) {
	req := struct {
		Mode string `json:"mode"`
	}{Mode: modeID}

	var resp model.ModeChange
	if err := c.post(ctx, "/api/stream/mode", req, &resp); err != nil {
		return nil, fmt.Errorf("set mode %s: %w", modeID, err)
	}
	return &resp, nil
}
