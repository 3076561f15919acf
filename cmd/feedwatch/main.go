// feedwatch connects to the price WebSocket and streams parsed updates to console.
// Usage: go run ./cmd/feedwatch --url ws://localhost:8000/ws/prices AAPL MSFT
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rickgao/pricestream/internal/model"
	"github.com/rickgao/pricestream/internal/stream"
)

func main() {
	wsURL := flag.String("url", "ws://localhost:8000/ws/prices", "feed WebSocket URL")
	verbose := flag.Bool("verbose", false, "print change fields")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: feedwatch [-url URL] SYMBOL [SYMBOL...]")
		os.Exit(2)
	}

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	cfg := stream.DefaultConfig()
	cfg.URL = *wsURL

	manager := stream.NewManager(cfg, logger)
	defer manager.Close()

	var received atomic.Int64

	manager.OnPrice(func(u model.PriceUpdate) {
		received.Add(1)
		if *verbose {
			fmt.Printf("[PRICE] symbol=%s price=%.4f change=%s change_pct=%s observed=%s latency=%s\n",
				u.Symbol, u.Price, fmtPtr(u.Change), fmtPtr(u.ChangePercent),
				u.ObservedAt.Format(time.RFC3339Nano), u.ReceivedAt.Sub(u.ObservedAt))
		} else {
			fmt.Printf("[PRICE] symbol=%s price=%.4f\n", u.Symbol, u.Price)
		}
	})
	manager.OnError(func(err error) {
		logger.Warn("feed error", "error", err)
	})
	manager.OnStateChange(func(st stream.Status) {
		logger.Info("state", "state", st.State, "client_id", st.ClientID)
	})

	for _, sym := range flag.Args() {
		manager.Subscribe(sym)
	}

	logger.Info("connecting", "url", *wsURL, "symbols", flag.NArg())
	if err := manager.Connect(ctx); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := manager.Status()
				logger.Info("stats",
					"state", st.State,
					"connected", st.Connected,
					"updates_received", received.Load(),
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutdown complete")
}

func fmtPtr(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}
