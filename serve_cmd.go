package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/daybreakapp/daybreak/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daybreak HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp()
	if err != nil {
		return err
	}

	// The server variable is captured by the transport's event hook, so
	// cache events recorded during Install land in the metrics too.
	var srv *server.Server
	transport, _, err := newResourceTransport(func(strategy, event string) {
		if srv != nil {
			srv.CacheEvent(strategy, event)
		}
	})
	if err != nil {
		return err
	}

	srv = server.New(server.Config{
		Daily:       a.daily,
		Journal:     a.journal,
		Speech:      a.generator.GenerateSpeech,
		SampleRate:  cfg.SampleRate,
		Channels:    cfg.Channels,
		AssetOrigin: cfg.AssetOrigin,
		AssetClient: &http.Client{Transport: transport},
	})

	// Prefetch the essential assets and drop stale generations before
	// accepting traffic. A failed install is not fatal; the cache fills
	// lazily as requests come in.
	if len(cfg.Manifest) > 0 {
		if err := transport.Install(ctx); err != nil {
			log.Warn("asset prefetch failed", "error", err)
		}
	}
	if err := transport.Activate(); err != nil {
		log.Warn("stale generation cleanup failed", "error", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.BindAddr, "generation", transport.Generation())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	transport.WaitRevalidations()

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
