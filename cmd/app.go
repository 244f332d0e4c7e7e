package cmd

import (
	"context"
	"database/sql"
	stderrors "errors"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"flakecast/internal/annotation"
	"flakecast/internal/cache"
	"flakecast/internal/catalog"
	"flakecast/internal/config"
	"flakecast/internal/forecast"
	"flakecast/internal/observability"
	"flakecast/internal/security"
	"flakecast/internal/snowflake"
	"flakecast/internal/ui"
	"flakecast/pkg/errors"
	"flakecast/pkg/models"
)

// secretStore is the part of the credential manager the commands use.
type secretStore interface {
	config.PasswordSource
	StorePassword(account, user, password string) error
	DeletePassword(account, user string) error
}

// app holds everything one command invocation shares: a single warehouse
// session, one result cache and the terminal.
type app struct {
	cfg      *models.Config
	logger   *zap.Logger
	ui       *ui.UI
	prompter ui.Prompter
	secrets  secretStore
	manager  *snowflake.Manager
	cache    *cache.ResultCache

	querier snowflake.Querier
	timeout time.Duration
	local   *sql.DB
}

// newApp is replaced in tests to inject a sqlmock warehouse.
var newApp = defaultApp

func defaultApp(cmd *cobra.Command, cfg *models.Config, logger *zap.Logger) (*app, error) {
	out := ui.NewUI(verbose, quiet)
	out.Out = cmd.OutOrStdout()

	a := &app{
		cfg:      cfg,
		logger:   logger,
		ui:       out,
		prompter: ui.SurveyPrompter{},
		manager:  snowflake.NewManager(logger),
		cache:    cache.New(cache.WithTTL(cfg.Cache.TTL), cache.WithLogger(logger)),
	}

	creds, err := security.NewCredentialManager(security.CredentialOptions{})
	if err != nil {
		logger.Warn("credential store unavailable", zap.Error(err))
	} else {
		a.secrets = creds
	}
	return a, nil
}

// warehouse opens the session on first use. Commands that never query do
// not pay for a login.
func (a *app) warehouse(ctx context.Context) (snowflake.Querier, error) {
	if a.querier != nil {
		return a.querier, nil
	}

	var source config.PasswordSource
	if a.secrets != nil {
		source = a.secrets
	}
	if err := config.ResolvePassword(a.cfg, source); err != nil {
		return nil, err
	}

	a.ui.StartProgress("Connecting to Snowflake")
	session, err := a.manager.Session(ctx, snowflake.ConfigFrom(a.cfg.Snowflake))
	if err != nil {
		a.ui.StopProgress(false, "Connection failed")
		return nil, err
	}
	a.ui.StopProgress(true, "Connected")

	a.querier = session
	a.timeout = session.Timeout()
	return session, nil
}

func (a *app) forecasts(ctx context.Context) (*cache.Forecasts, error) {
	settings, err := forecast.SettingsFrom(a.cfg.Forecast)
	if err != nil {
		return nil, err
	}
	q, err := a.warehouse(ctx)
	if err != nil {
		return nil, err
	}
	b := forecast.NewBuilder(q, settings,
		forecast.WithTimeout(a.timeout),
		forecast.WithLogger(a.logger))
	return cache.NewForecasts(a.cache, b), nil
}

func (a *app) catalog(ctx context.Context) (*catalog.Catalog, error) {
	q, err := a.warehouse(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.New(q, a.cfg.Forecast, a.cfg.Catalog,
		catalog.WithTimeout(a.timeout),
		catalog.WithLogger(a.logger)), nil
}

// annotations opens the configured comment store and creates its table.
func (a *app) annotations(ctx context.Context) (*annotation.Store, error) {
	dialect, err := annotation.DialectFor(a.cfg.Annotations.Backend)
	if err != nil {
		return nil, err
	}

	var q snowflake.Querier
	if dialect.Name == annotation.SQLite.Name {
		if a.local == nil {
			path := a.cfg.Annotations.SQLitePath
			if path != ":memory:" {
				if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
					return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to create annotation directory").
						WithContext("path", path)
				}
			}
			if a.local, err = annotation.OpenSQLite(path); err != nil {
				return nil, err
			}
		}
		q = a.local
	} else if q, err = a.warehouse(ctx); err != nil {
		return nil, err
	}

	store, err := annotation.NewStore(q, dialect, a.cfg.Annotations.Table,
		annotation.WithUnique(a.cfg.Annotations.Unique),
		annotation.WithTimeout(a.timeout),
		annotation.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	if err := store.EnsureTable(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// pinger is satisfied by *sql.DB and *snowflake.Session.
type pinger interface {
	PingContext(ctx context.Context) error
}

// health registers a check for every store this app has opened.
func (a *app) health() *observability.HealthManager {
	hm := observability.NewHealthManager(a.timeout, a.logger)
	if p, ok := a.querier.(pinger); ok {
		hm.Register("warehouse", p.PingContext)
	}
	if a.local != nil {
		hm.Register("annotations", a.local.PingContext)
	}
	return hm
}

func (a *app) close() error {
	var errs []error
	if a.manager != nil {
		errs = append(errs, a.manager.Close())
	}
	if a.local != nil {
		errs = append(errs, a.local.Close())
		a.local = nil
	}
	return stderrors.Join(errs...)
}
