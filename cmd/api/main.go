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

	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/salesledger/internal/app"
	"github.com/MrJamesThe3rd/salesledger/internal/config"
	salesHttp "github.com/MrJamesThe3rd/salesledger/internal/http"
	accountHandler "github.com/MrJamesThe3rd/salesledger/internal/http/account"
	"github.com/MrJamesThe3rd/salesledger/internal/http/auth"
	salesHandler "github.com/MrJamesThe3rd/salesledger/internal/http/sales"
	"github.com/MrJamesThe3rd/salesledger/internal/logger"
	"github.com/MrJamesThe3rd/salesledger/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialise storage", zap.Error(err))
		return err
	}
	defer a.Close()

	if cfg.Auth.Secret == "" {
		log.Warn("AUTH_SECRET is empty, using an insecure development secret")
	}

	authn := auth.NewManager(cfg.Auth.Secret, cfg.Auth.TokenTTL, func() *session.Session {
		return a.NewSession(log)
	}, logger.Named(log, "auth"))

	var (
		accountsH = accountHandler.NewHandler(a.Users, authn, logger.Named(log, "http.account"))
		salesH    = salesHandler.NewHandler(logger.Named(log, "http.sales"))
	)

	router := salesHttp.New(cfg.Auth.AllowedOrigin, authn, accountsH, salesH)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		log.Info("starting server", zap.String("app", cfg.App.Name), zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", zap.Error(err))
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", zap.Error(err))
			return err
		}
	}

	return nil
}
