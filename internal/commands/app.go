package commands

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/statementd/statementd/internal/config"
	"github.com/statementd/statementd/internal/feeds"
	"github.com/statementd/statementd/internal/feeds/sqlite"
	"github.com/statementd/statementd/internal/freshness"
	"github.com/statementd/statementd/internal/logging"
	"github.com/statementd/statementd/internal/refreshlog"
	"github.com/statementd/statementd/internal/statement"
	"github.com/statementd/statementd/internal/upstream"
)

// sqliteFile is the database name inside the data dir for the sqlite store.
const sqliteFile = "feeds.db"

// clock is the wall clock used by every command.
var clock = time.Now

// app is the object graph shared by the subcommands.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	store      feeds.Store
	statements *statement.Service
	refreshLog *refreshlog.Log
	renderers  map[string]statement.Renderer
}

func openApp(configPath string) (*app, error) {
	cfg, err := config.Resolve(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("loading time zone: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	rlog := refreshlog.New(cfg.DataDir)
	gate := freshness.NewGate(store, loc,
		freshness.WithClock(clock),
		freshness.WithLogger(logger),
		freshness.WithObserver(rlog.Observer(clock, logger)))

	var fetcher freshness.Fetcher
	if cfg.Upstream.APIKey != "" {
		fetcher = upstream.New(cfg.Upstream.BaseURL, cfg.Upstream.APIKey, cfg.FromDate(),
			upstream.WithHTTPClient(&http.Client{Timeout: cfg.Upstream.Timeout}),
			upstream.WithToday(gate.Today),
			upstream.WithLogger(logger))
	} else {
		logger.Warn("no API key configured, refresh disabled", zap.String("env", config.EnvAPIKey))
	}

	renderers, err := statement.NewRenderers(cfg.Render.PDFFont)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		statements: statement.NewService(store, gate, fetcher, renderers[cfg.Render.Format], logger),
		refreshLog: rlog,
		renderers:  renderers,
	}, nil
}

func openStore(cfg *config.Config) (feeds.Store, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return sqlite.New(filepath.Join(cfg.DataDir, sqliteFile))
	default:
		return feeds.NewCSVStore(cfg.DataDir)
	}
}

func (a *app) Close() error {
	_ = a.logger.Sync()
	return a.store.Close()
}
