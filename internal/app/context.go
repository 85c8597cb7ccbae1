// Package app wires configuration into the client and local backend.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"venuepass/internal/backend"
	"venuepass/internal/config"
	"venuepass/internal/db"
	"venuepass/internal/engine"
	"venuepass/internal/eventpage"
	"venuepass/internal/migrate"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger
	Client *backend.Client
}

// New builds the logger and API client described by cfg. Logs go to w.
func New(cfg *config.Config, w io.Writer) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = io.Discard
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	client := backend.New(cfg.API.BaseURL)
	client.Timeout = cfg.API.Timeout
	return &App{Config: cfg, Logger: logger, Client: client}, nil
}

// EventPage opens a page for eventID using the configured tick interval.
func (a *App) EventPage(eventID string) *eventpage.Page {
	return eventpage.New(eventID, a.Client,
		eventpage.WithLogger(a.Logger),
		eventpage.WithTickInterval(a.Config.Countdown.Interval),
	)
}

// OpenEngine opens and migrates the backend database in the configured
// workspace. The returned func closes the database.
func (a *App) OpenEngine(ctx context.Context) (engine.Engine, func() error, error) {
	conn, err := db.Open(db.Config{Workspace: a.Config.Backend.Workspace})
	if err != nil {
		return engine.Engine{}, nil, fmt.Errorf("open db: %w", err)
	}
	version, err := migrate.Migrate(ctx, conn)
	if err != nil {
		conn.Close()
		return engine.Engine{}, nil, fmt.Errorf("migrate: %w", err)
	}
	a.Logger.Debug("backend database ready", "path", db.Path(a.Config.Backend.Workspace), "schema_version", version)
	return engine.New(conn), conn.Close, nil
}
