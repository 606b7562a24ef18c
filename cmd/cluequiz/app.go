package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/playperu/cluequiz/internal/config"
	"github.com/playperu/cluequiz/internal/database"
	"github.com/playperu/cluequiz/internal/game"
	"github.com/playperu/cluequiz/internal/persistence"
	"github.com/playperu/cluequiz/internal/profiles"
	"github.com/playperu/cluequiz/internal/rehydration"
	"github.com/playperu/cluequiz/internal/shuffle"
	"github.com/playperu/cluequiz/internal/storage"
	"github.com/playperu/cluequiz/internal/telemetry"
)

// app holds the dependencies shared by the subcommands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *sql.DB
	sessions *storage.SessionStore
}

// newLogger writes JSON logs to w. Interactive commands pass stderr so
// logs stay out of the game output.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
}

func openApp(ctx context.Context, logw io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(cfg, logw)

	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to sqlite: %w", err)
	}
	logger.Debug("connected to sqlite", "path", cfg.DBPath)

	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		sessions: storage.NewSessionStore(db),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func (a *app) loader() *profiles.Loader {
	if a.cfg.DataURL != "" {
		client := &http.Client{Timeout: a.cfg.HTTPTimeout}
		return profiles.NewHTTPLoader(a.cfg.DataURL, client, a.cfg.DefaultLocale, a.logger)
	}
	return profiles.NewDirLoader(os.DirFS(a.cfg.DataDir), a.cfg.DefaultLocale, a.logger)
}

func (a *app) newStore(source game.ProfileSource) *game.Store {
	tracker := rehydration.NewTracker()
	svc := persistence.NewService(a.sessions, tracker, a.logger, persistence.Options{
		Delay:       a.cfg.SaveDebounce,
		SaveTimeout: a.cfg.SaveTimeout,
	})
	return game.New(
		game.Options{
			MinPlayers:      a.cfg.MinPlayers,
			MaxPlayers:      a.cfg.MaxPlayers,
			CluesPerProfile: a.cfg.CluesPerProfile,
			DefaultLocale:   a.cfg.DefaultLocale,
		},
		game.Deps{
			Source:      source,
			Persistence: svc,
			Tracker:     tracker,
			Sink:        telemetry.NewLogSink(a.logger),
			Rand:        shuffle.Default(),
			Logger:      a.logger,
		},
	)
}
