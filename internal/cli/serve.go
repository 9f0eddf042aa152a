package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aretw0/relite/internal/config"
	"github.com/aretw0/relite/internal/hub"
	backend "github.com/redis/go-redis/v9"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions configures the inspector hub server.
type ServeOptions struct {
	Config config.Config
	Logger *slog.Logger
	Out    io.Writer
	// Redis also relays instances attached through the Redis transport.
	Redis bool
	// Ready receives the bound address once the listener is open.
	Ready func(addr string)
}

// RunServe runs the inspector hub until ctx is cancelled.
func RunServe(ctx context.Context, opts ServeOptions) error {
	logger := opts.Logger
	cfg := opts.Config

	h := hub.New(
		hub.WithLogger(logger),
		hub.WithMaxHistory(cfg.Hub.MaxHistory),
		hub.WithOrigins(cfg.Hub.Origins...),
	)

	ln, err := net.Listen("tcp", cfg.Hub.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Hub.Addr, err)
	}

	srv := &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Channel to listen for errors coming from the listener or the relay.
	serverErrors := make(chan error, 2)

	go func() {
		serverErrors <- srv.Serve(ln)
	}()

	if opts.Redis {
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		go func() {
			if err := h.RelayRedis(ctx, client, cfg.Redis.Prefix); err != nil {
				serverErrors <- fmt.Errorf("redis relay: %w", err)
			}
		}()
	}

	addr := ln.Addr().String()
	logger.Info("Hub listening", "addr", addr, "redis", opts.Redis)
	if opts.Out != nil {
		printSystemMessage(opts.Out, "Inspector hub on http://%s (ws://%s/ws)", addr, addr)
	}
	if opts.Ready != nil {
		opts.Ready(addr)
	}

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	case <-ctx.Done():
	}

	// Give outstanding requests a deadline for completion.
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
		_ = srv.Close()
	}
	logger.Info("Hub stopped")
	return runErr
}
