package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"apotekpos/backend/internal/availability"
	"apotekpos/backend/internal/cache"
	"apotekpos/backend/internal/cart"
	"apotekpos/backend/internal/checkout"
	"apotekpos/backend/internal/config"
	"apotekpos/backend/internal/httpapi"
	"apotekpos/backend/internal/store"
	"apotekpos/backend/internal/store/memory"
	pgstore "apotekpos/backend/internal/store/postgres"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()
	if len(cfg.SessionSecret) < 32 {
		logger.Fatal("SESSION_SECRET must be set and at least 32 characters")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var ledger store.Ledger
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("postgres unavailable and DATABASE_URL is set; refusing in-memory fallback", zap.Error(err))
		}
		ledger = pg
		closers = append(closers, pg.Close)
		logger.Info("ledger: postgres")
	} else {
		ledger = memory.NewSeeded(cfg.TenantID)
		logger.Info("ledger: in-memory (seeded demo catalog)", zap.String("tenant_id", cfg.TenantID))
	}

	var sessions cache.SessionStore = cache.NewMemorySessionStore()
	if cfg.RedisAddr != "" {
		redisSessions, err := cache.NewRedisSessionStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("redis unavailable, carts stay in-process", zap.Error(err))
		} else {
			sessions = redisSessions
			closers = append(closers, redisSessions.Close)
			logger.Info("session store: redis")
		}
	} else {
		logger.Info("session store: in-process")
	}

	checker := availability.New(ledger)
	carts := cart.NewManager(checker, ledger, sessions, logger)
	carts.SetTTL(cfg.CartTTL)
	carts.SetAdvisoryWindow(cfg.AdvisoryWindow)
	committer := checkout.New(ledger, carts, logger)
	sessionMgr := httpapi.NewSessionManager(cfg.SessionSecret)
	api := httpapi.New(ledger, checker, carts, committer, sessionMgr, cfg.AllowedOrigin, logger)

	if cfg.DatabaseURL == "" {
		// Demo mode has no upstream auth service; log a usable token.
		token, err := sessionMgr.Issue(httpapi.Session{
			TenantID:   cfg.TenantID,
			TerminalID: "term-demo",
		}, 12*time.Hour)
		if err == nil {
			logger.Info("demo session token", zap.String("token", token))
		}
	}

	// No WriteTimeout: /api/v1/events holds its response open indefinitely.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("checkout engine listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Warn("close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}
