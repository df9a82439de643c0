package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DoyleJ11/rally-backend/internal/config"
	"github.com/DoyleJ11/rally-backend/internal/httpapi"
	"github.com/DoyleJ11/rally-backend/internal/hub"
	"github.com/DoyleJ11/rally-backend/internal/logging"
	"github.com/DoyleJ11/rally-backend/internal/table"
	"github.com/DoyleJ11/rally-backend/internal/ws"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownGrace = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(ctx, table.Options{
		Rules:      cfg.Rules(),
		TickPeriod: cfg.TickPeriod,
	}, log)
	if _, err := h.Ensure(cfg.DefaultTable); err != nil {
		return fmt.Errorf("start default table: %w", err)
	}

	handler := httpapi.SetupRoutes(h, ws.Options{
		DefaultTable:   cfg.DefaultTable,
		OutboxSize:     cfg.OutboxSize,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		OriginPatterns: cfg.OriginPatterns,
	}, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening",
			zap.String("addr", cfg.Addr),
			zap.Duration("tick", cfg.TickPeriod),
			zap.String("default_table", cfg.DefaultTable),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		stop()
		<-h.Done()
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", zap.Error(err))
		return err
	}
	log.Info("server stopped")
	return nil
}
