// Package app holds the database handles shared by the admin console
// screens.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/notepid/twilight_arcade/internal/account"
	"github.com/notepid/twilight_arcade/internal/config"
	"github.com/notepid/twilight_arcade/internal/db"
	"github.com/notepid/twilight_arcade/internal/ledger"
	"github.com/notepid/twilight_arcade/internal/moderation"
)

// OperatorID is recorded as the issuer of bans, warnings and grants made
// from the admin console.
const OperatorID int64 = 0

type App struct {
	ConfigPath string
	Config     *config.Config
	DBPath     string
	DB         *db.DB

	Accounts   *account.Repo
	Ledger     *ledger.Ledger
	Moderation *moderation.Service

	BusyTimeout time.Duration
}

func New(configPath string) (*App, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(cfg.Paths.Data, 0755); err != nil {
		return nil, nil, fmt.Errorf("create data directory: %w", err)
	}

	database, err := db.Open(cfg.Paths.Database)
	if err != nil {
		return nil, nil, err
	}

	a := &App{
		ConfigPath:  configPath,
		Config:      cfg,
		DBPath:      cfg.Paths.Database,
		DB:          database,
		Accounts:    account.NewRepo(database.DB),
		Ledger:      ledger.New(database.DB),
		Moderation:  moderation.NewService(database.DB, cfg.Admin.BootstrapIDs),
		BusyTimeout: 5 * time.Second,
	}

	// The arcade server may hold the database open; wait instead of failing
	// on SQLITE_BUSY.
	_, _ = database.Exec("PRAGMA busy_timeout = 5000")

	cleanup := func() {
		_ = database.Close()
	}

	return a, cleanup, nil
}

// Context returns a context bounded by BusyTimeout for one screen action.
func (a *App) Context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.BusyTimeout)
}
