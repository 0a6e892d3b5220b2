package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcclellann/microLoan/pkg/cache"
	"github.com/mcclellann/microLoan/pkg/config"
	"github.com/mcclellann/microLoan/pkg/logging"
	"github.com/mcclellann/microLoan/pkg/store"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	sqliteStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer sqliteStore.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	quoteCache, closeCache := newQuoteCache(ctx, cfg.RedisAddr, logger)
	defer closeCache()

	server := NewServer(sqliteStore, quoteCache, cfg.QuoteCacheTTL, logger)
	go server.runOverdueScans(ctx, cfg.OverdueScanInterval)

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server.routes(cfg.CORSAllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", httpServer.Addr, "db", cfg.DBPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// newQuoteCache connects to Redis when an address is configured and falls
// back to an in-process cache otherwise, or when Redis is unreachable.
func newQuoteCache(ctx context.Context, addr string, logger *slog.Logger) (cache.Cache, func()) {
	if addr == "" {
		return cache.NewMemoryCache(), func() {}
	}

	rc := cache.NewRedisCache(addr)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		logger.Warn("redis unavailable, using in-memory quote cache", "addr", addr, "err", err)
		_ = rc.Close()
		return cache.NewMemoryCache(), func() {}
	}
	logger.Info("quote cache connected", "addr", addr)
	return rc, func() { _ = rc.Close() }
}
