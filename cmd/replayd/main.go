package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mediq/internal/auth"
	"mediq/internal/config"
	"mediq/internal/replay"
)

func main() {
	script := replay.DefaultScript()
	if path := strings.TrimSpace(os.Getenv("MEDIQ_REPLAY_SCRIPT")); path != "" {
		loaded, err := replay.LoadScript(path)
		if err != nil {
			config.Logger.Error("failed to load scenario script", "path", path, "error", err)
			os.Exit(1)
		}
		script = loaded
	}

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "5601"
	}
	server := &replay.Server{Script: script, Token: auth.ReplayToken()}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: server.Router(),
	}

	// Start server in a goroutine so we can listen for shutdown signals.
	go func() {
		config.Logger.Info("starting replayd", "port", port, "scenarios", len(script.Scenarios))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			config.Logger.Error("server stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal (Ctrl+C / SIGTERM).
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	sig := <-quit
	config.Logger.Info("shutdown signal received", "signal", sig.String())

	// Graceful shutdown: allow up to 10 seconds for in-flight streams to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		config.Logger.Error("graceful shutdown failed, forcing exit", "error", err)
		os.Exit(1)
	}
	config.Logger.Info("server gracefully stopped")
}
