package modes

import (
	"context"
	"log/slog"

	"github.com/rickgao/pricestream/internal/model"
)

// Backend is the slice of the REST client the negotiator needs.
type Backend interface {
	GetModes(ctx context.Context) (*model.ModeList, error)
	GetStatus(ctx context.Context) (*model.FeedStatus, error)
	SetMode(ctx context.Context, modeID string) (*model.ModeChange, error)
}

// Negotiator asks the backend for available acquisition modes and requests
// switches. It owns no state beyond the client; the backend's answer is
// authoritative.
type Negotiator struct {
	backend Backend
	logger  *slog.Logger
}

// NewNegotiator creates a Negotiator.
func NewNegotiator(backend Backend, logger *slog.Logger) *Negotiator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Negotiator{backend: backend, logger: logger}
}

// List fetches the catalogue of modes and which one is active.
func (n *Negotiator) List(ctx context.Context) (*model.ModeList, error) {
	return n.backend.GetModes(ctx)
}

// Status fetches the backend's current view of the feed.
func (n *Negotiator) Status(ctx context.Context) (*model.FeedStatus, error) {
	return n.backend.GetStatus(ctx)
}

// Apply requests a mode switch and returns the backend's acknowledgement.
func (n *Negotiator) Apply(ctx context.Context, modeID string) (*model.ModeChange, error) {
	ack, err := n.backend.SetMode(ctx, modeID)
	if err != nil {
		return nil, err
	}

	n.logger.Info("acquisition mode applied",
		"mode", modeID,
		"display_name", ack.DisplayName,
		"use_websocket", ack.UseWebsocket,
		"poll_interval", ack.PollEvery(),
	)
	return ack, nil
}
