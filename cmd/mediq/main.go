package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"mediq/internal/backend"
	"mediq/internal/config"
	"mediq/internal/sse"
)

func main() {
	mode := flag.String("mode", "search", "query mode: search, reason or write")
	clinical := flag.Bool("clinical", false, "enable clinical answering")
	citations := flag.Bool("citations", true, "collect citations (search mode only)")
	flag.Parse()

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: mediq [-mode search|reason|write] [-clinical] <query>")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	client := backend.New(cfg)

	outcomes := make(chan sse.Outcome, 1)
	client.StartStream(ctx, query, backend.StreamOptions{
		Mode:      backend.Mode(*mode),
		Clinical:  *clinical,
		Citations: *citations,
	}, func(delta string) {
		fmt.Print(delta)
	}, func(o sse.Outcome) {
		outcomes <- o
	})

	select {
	case <-ctx.Done():
		// Ctrl-C: cancel the stream and leave quietly. Cancelled
		// streams never report an outcome.
		client.Cancel()
		fmt.Println()
	case o := <-outcomes:
		fmt.Println()
		if o.Err != nil {
			config.Logger.Error("stream failed", "error", o.Err)
			os.Exit(1)
		}
		printCitations(o.Citations)
	}
}

func printCitations(citations []sse.Citation) {
	if len(citations) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Sources:")
	for _, c := range citations {
		line := fmt.Sprintf("  [%d] %s - %s", c.Number, c.Title, c.URL)
		if c.Authors != "" {
			line += " (" + c.Authors + ")"
		}
		fmt.Println(line)
	}
}
