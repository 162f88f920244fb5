// Package app wires configuration to the stores and services shared by the
// API and the TUI.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/salesledger/internal/config"
	"github.com/MrJamesThe3rd/salesledger/internal/database"
	ledgerstore "github.com/MrJamesThe3rd/salesledger/internal/ledger/store"
	"github.com/MrJamesThe3rd/salesledger/internal/logger"
	"github.com/MrJamesThe3rd/salesledger/internal/password"
	"github.com/MrJamesThe3rd/salesledger/internal/session"
	"github.com/MrJamesThe3rd/salesledger/internal/user"
	userstore "github.com/MrJamesThe3rd/salesledger/internal/user/store"
)

const accountsFile = "users.csv"

type App struct {
	Users   *user.Service
	Ledgers session.Repository
	Resolve session.OwnerFunc
	// Books is shared by every session, so sessions on one owner share its cache.
	Books *session.Books

	logger *zap.Logger
	db     *sql.DB
}

func New(ctx context.Context, cfg *config.Config, base *zap.Logger) (*App, error) {
	hasher, err := password.New(cfg.Auth.Hasher)
	if err != nil {
		return nil, err
	}

	a := &App{Books: session.NewBooks(), logger: logger.Named(base, "app")}

	var users user.Repository

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db, err := database.New(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}

		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}

		a.db = db
		users = userstore.NewPostgres(db, logger.Named(base, "store.user"))
		a.Ledgers = ledgerstore.NewPostgres(db, logger.Named(base, "store.ledger"))
	default:
		users = userstore.NewCSV(filepath.Join(cfg.Storage.Dir, accountsFile), logger.Named(base, "store.user"))
		a.Ledgers = ledgerstore.NewCSV(cfg.Storage.Dir, logger.Named(base, "store.ledger"))
	}

	a.Users = user.NewService(users, hasher, logger.Named(base, "svc.user"))

	if cfg.Ledger.Mode == config.ModeShared {
		a.Resolve = session.Shared(cfg.Ledger.SharedName)
	} else {
		a.Resolve = session.PerUser
	}

	a.logger.Info("storage ready",
		zap.String("driver", cfg.Storage.Driver),
		zap.String("ledger_mode", cfg.Ledger.Mode),
		zap.String("hasher", cfg.Auth.Hasher),
	)

	return a, nil
}

// NewSession returns a logged-out session over the configured stores.
func (a *App) NewSession(base *zap.Logger) *session.Session {
	return session.New(a.Users, a.Ledgers, a.Resolve, logger.Named(base, "session"), session.WithBooks(a.Books))
}

func (a *App) Close() error {
	if a.db == nil {
		return nil
	}

	return a.db.Close()
}
