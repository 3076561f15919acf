// modectl inspects and changes the backend's acquisition mode.
// Usage:
//
//	modectl -api http://localhost:8000 list
//	modectl -api http://localhost:8000 status
//	modectl -api http://localhost:8000 set economy
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rickgao/pricestream/internal/api"
	"github.com/rickgao/pricestream/internal/modes"
)

func main() {
	apiURL := flag.String("api", "http://localhost:8000", "backend base URL")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: modectl [-api URL] list|status|set <mode>")
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	client := api.NewClient(*apiURL, api.WithLogger(logger), api.WithTimeout(*timeout))
	negotiator := modes.NewNegotiator(client, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "list":
		err = runList(ctx, negotiator)
	case "status":
		err = runStatus(ctx, negotiator)
	case "set":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "usage: modectl set <mode>")
			os.Exit(2)
		}
		err = runSet(ctx, negotiator, flag.Arg(1))
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runList(ctx context.Context, n *modes.Negotiator) error {
	list, err := n.List(ctx)
	if err != nil {
		return err
	}

	for _, m := range list.Modes {
		marker := " "
		if m.ID == list.CurrentMode {
			marker = "*"
		}
		fmt.Printf("%s %-12s %-32s websocket=%-5t poll=%s\n",
			marker, m.ID, m.Name, m.UseWebsocket, m.PollEvery())
	}
	return nil
}

func runStatus(ctx context.Context, n *modes.Negotiator) error {
	status, err := n.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("status:      %s\n", status.Status)
	fmt.Printf("websocket:   %t\n", status.UseWebsocket)
	fmt.Printf("poll every:  %s\n", status.PollEvery())
	fmt.Printf("subscribed:  %d\n", status.SubscribedCount)
	for source, available := range status.SourceAvailability {
		fmt.Printf("source %-12s available=%t\n", source, available)
	}
	return nil
}

func runSet(ctx context.Context, n *modes.Negotiator, mode string) error {
	change, err := n.Apply(ctx, mode)
	if err != nil {
		return err
	}

	fmt.Printf("applied %s: websocket=%t poll=%s\n",
		change.DisplayName, change.UseWebsocket, change.PollEvery())
	return nil
}
