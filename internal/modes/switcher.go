package modes

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/pricestream/internal/model"
)

// StatusFetcher fetches the backend's feed status.
type StatusFetcher interface {
	GetStatus(ctx context.Context) (*model.FeedStatus, error)
}

// Hooks receive strategy transitions. OnPush fires when the backend wants a
// live websocket feed; OnPull fires when it wants periodic polling, with the
// interval to poll at. Hooks run on the switcher's goroutine.
type Hooks struct {
	OnPush func()
	OnPull func(every time.Duration)
}

// Switcher watches the backend's feed status and invokes hooks when the
// acquisition strategy changes. Fetch failures keep the last known strategy;
// the switcher only acts on an answer it actually got.
type Switcher struct {
	fetcher  StatusFetcher
	hooks    Hooks
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	current *model.FeedStatus
}

// NewSwitcher creates a Switcher polling status at the given interval.
func NewSwitcher(fetcher StatusFetcher, interval time.Duration, hooks Hooks, logger *slog.Logger) *Switcher {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Switcher{
		fetcher:  fetcher,
		hooks:    hooks,
		interval: interval,
		logger:   logger,
	}
}

// Run checks status immediately, then on every tick until ctx is cancelled.
func (s *Switcher) Run(ctx context.Context) {
	s.Refresh(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Refresh fetches status once and fires hooks if the strategy changed. It
// also fires after a successful Apply so a switch takes effect before the
// next tick.
func (s *Switcher) Refresh(ctx context.Context) {
	status, err := s.fetcher.GetStatus(ctx)
	if err != nil {
		s.logger.Warn("failed to fetch feed status", "error", err)
		return
	}

	s.mu.Lock()
	prev := s.current
	s.current = status
	changed := prev == nil ||
		prev.UseWebsocket != status.UseWebsocket ||
		(!status.UseWebsocket && prev.PollInterval != status.PollInterval)
	s.mu.Unlock()

	if !changed {
		return
	}

	s.logger.Info("acquisition strategy changed",
		"use_websocket", status.UseWebsocket,
		"poll_interval", status.PollEvery(),
		"sources", status.Sources,
	)

	if status.UseWebsocket {
		if s.hooks.OnPush != nil {
			s.hooks.OnPush()
		}
	} else {
		if s.hooks.OnPull != nil {
			s.hooks.OnPull(status.PollEvery())
		}
	}
}

// Current returns the last fetched status, if any.
func (s *Switcher) Current() (model.FeedStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return model.FeedStatus{}, false
	}
	return *s.current, true
}
