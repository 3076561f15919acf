package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/pricestream/internal/api"
	"github.com/rickgao/pricestream/internal/chart"
	"github.com/rickgao/pricestream/internal/config"
	"github.com/rickgao/pricestream/internal/database"
	"github.com/rickgao/pricestream/internal/model"
	"github.com/rickgao/pricestream/internal/modes"
	"github.com/rickgao/pricestream/internal/poller"
	"github.com/rickgao/pricestream/internal/quote"
	"github.com/rickgao/pricestream/internal/recorder"
	"github.com/rickgao/pricestream/internal/stream"
	"github.com/rickgao/pricestream/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/streamer.local.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting streamer",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	sessionID := uuid.NewString()
	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"session_id", sessionID,
		"ws_url", cfg.Feed.WSURL,
		"rest_url", cfg.Feed.RestURL,
		"symbols", len(cfg.Symbols),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// REST client for modes, quotes and historical bars
	apiClient := api.NewClient(
		cfg.Feed.RestURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.Feed.Timeout),
		api.WithRetries(cfg.Feed.MaxRetries, time.Second),
	)

	// Latest-price retention shared by the push and pull paths
	cache := quote.NewCache()

	// Optional tick recorder
	var ticks *recorder.TickWriter
	if cfg.Recorder.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)

		pool, err := database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		ticks = recorder.NewTickWriter(recorder.Config{
			BatchSize:     cfg.Recorder.BatchSize,
			FlushInterval: cfg.Recorder.FlushInterval,
			BufferSize:    cfg.Recorder.BufferSize,
		}, pool, sessionID, logger)

		if err := ticks.Start(ctx); err != nil {
			logger.Error("failed to start tick recorder", "error", err)
			os.Exit(1)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			ticks.Stop(stopCtx)
		}()
	}

	// onUpdate is the single ingestion point for both push and pull.
	onUpdate := func(u model.PriceUpdate) {
		cache.Apply(u)
		if ticks != nil {
			ticks.Offer(u)
		}
	}

	// Streaming client (push mode)
	manager := stream.NewManager(stream.Config{
		URL:                  cfg.Feed.WSURL,
		ReconnectBaseDelay:   cfg.Stream.ReconnectBaseDelay,
		MaxReconnectAttempts: cfg.Stream.MaxReconnectAttempts,
		PingInterval:         cfg.Stream.PingInterval,
		StaleTimeout:         cfg.Stream.StaleTimeout,
		DialTimeout:          cfg.Stream.DialTimeout,
		WriteTimeout:         cfg.Stream.WriteTimeout,
		BufferSize:           cfg.Stream.BufferSize,
	}, logger)
	defer manager.Close()

	manager.OnPrice(onUpdate)
	manager.OnError(func(err error) {
		logger.Warn("feed error", "error", err)
	})
	manager.OnStateChange(func(st stream.Status) {
		logger.Info("feed state changed",
			"state", st.State,
			"client_id", st.ClientID,
			"last_error", st.LastError,
		)
	})

	for _, sym := range cfg.Symbols {
		manager.Subscribe(sym)
	}

	// Pull-mode quote poller, started and stopped by mode transitions
	var pollerMu sync.Mutex
	var activePoller *poller.Poller

	stopPoller := func() {
		pollerMu.Lock()
		p := activePoller
		activePoller = nil
		pollerMu.Unlock()

		if p == nil {
			return
		}
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := p.Stop(stopCtx); err != nil {
			logger.Warn("failed to stop quote poller", "error", err)
		}
	}

	startPoller := func(every time.Duration) {
		stopPoller()

		p := poller.New(poller.Config{
			Interval:    every,
			Concurrency: cfg.Poller.Concurrency,
			Timeout:     cfg.Poller.Timeout,
		}, apiClient, manager, poller.UpdateHandlerFunc(func(u model.PriceUpdate) error {
			onUpdate(u)
			return nil
		}), logger)

		if err := p.Start(ctx); err != nil {
			logger.Error("failed to start quote poller", "error", err)
			return
		}

		pollerMu.Lock()
		activePoller = p
		pollerMu.Unlock()
	}

	// Mode negotiation: follow the backend's push/pull decision
	switcher := modes.NewSwitcher(apiClient, cfg.Modes.StatusInterval, modes.Hooks{
		OnPush: func() {
			stopPoller()
			if err := manager.Connect(ctx); err != nil {
				logger.Warn("failed to connect feed", "error", err)
			}
		},
		OnPull: func(every time.Duration) {
			manager.Disconnect()
			if every <= 0 {
				every = cfg.Poller.Interval
			}
			startPoller(every)
		},
	}, logger)
	go switcher.Run(ctx)

	// Default to push until the backend says otherwise.
	if err := manager.Connect(ctx); err != nil {
		logger.Warn("initial feed connect failed, retrying in background", "error", err)
	}

	// Historical bars for the chart endpoint
	charts := chart.NewFetcher(apiClient, cfg.Chart.Days, logger)

	// Local status server
	statusServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: createStatusHandler(manager, cache, switcher, charts, ticks),
	}

	go func() {
		logger.Info("starting status server", "port", cfg.Server.Port)
		if err := statusServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("status server error", "error", err)
		}
	}()

	logger.Info("streamer running",
		"instance_id", cfg.Instance.ID,
		"status_url", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	stopPoller()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	statusServer.Shutdown(shutdownCtx)

	logger.Info("streamer stopped")
}

// createStatusHandler builds the local HTTP surface: health, live status,
// cached quotes and on-demand chart loads.
func createStatusHandler(
	manager *stream.Manager,
	cache *quote.Cache,
	switcher *modes.Switcher,
	charts *chart.Fetcher,
	ticks *recorder.TickWriter,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		st := manager.Status()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		feed := map[string]any{
			"state":     st.State.String(),
			"connected": st.Connected,
		}
		if st.LastError != "" {
			feed["last_error"] = st.LastError
		}
		health.Components["feed"] = feed

		if _, ok := switcher.Current(); !ok {
			health.Status = "degraded"
			health.Components["backend"] = "unreachable"
		}

		if ticks != nil {
			stats := ticks.Stats()
			health.Components["recorder"] = map[string]any{
				"inserts": stats.Inserts,
				"errors":  stats.Errors,
				"dropped": stats.Dropped,
			}
			if stats.Errors > 0 {
				health.Status = "degraded"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		st := manager.Status()

		resp := map[string]any{
			"state":        st.State.String(),
			"connected":    st.Connected,
			"reconnecting": st.Reconnecting,
			"client_id":    st.ClientID,
			"symbols":      manager.Symbols(),
			"cached":       cache.Len(),
		}
		if backend, ok := switcher.Current(); ok {
			resp["backend"] = backend
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/quotes", func(w http.ResponseWriter, r *http.Request) {
		type quoteJSON struct {
			Symbol        string   `json:"symbol"`
			Price         float64  `json:"price"`
			Change        *float64 `json:"change,omitempty"`
			ChangePercent *float64 `json:"change_percent,omitempty"`
			ObservedAt    string   `json:"observed_at"`
		}

		all := cache.All()
		out := make([]quoteJSON, 0, len(all))
		for _, u := range all {
			out = append(out, quoteJSON{
				Symbol:        u.Symbol,
				Price:         u.Price,
				Change:        u.Change,
				ChangePercent: u.ChangePercent,
				ObservedAt:    u.ObservedAt.Format(time.RFC3339Nano),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	})

	mux.HandleFunc("/chart/", func(w http.ResponseWriter, r *http.Request) {
		symbol := strings.TrimPrefix(r.URL.Path, "/chart/")
		if symbol == "" {
			http.Error(w, "symbol required", http.StatusBadRequest)
			return
		}

		data, err := charts.Load(r.Context(), symbol)
		if err != nil {
			if err == chart.ErrSuperseded {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(data)
	})

	return mux
}
