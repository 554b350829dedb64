// Package app assembles the service's components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/recurring-tracker/internal/classifier"
	"github.com/dvloznov/recurring-tracker/internal/config"
	"github.com/dvloznov/recurring-tracker/internal/gcsuploader"
	infraBQ "github.com/dvloznov/recurring-tracker/internal/infra/bigquery"
	"github.com/dvloznov/recurring-tracker/internal/infra/sqlite"
	"github.com/dvloznov/recurring-tracker/internal/logger"
	"github.com/dvloznov/recurring-tracker/internal/obligations"
	"github.com/dvloznov/recurring-tracker/internal/obligations/inmemory"
	"github.com/dvloznov/recurring-tracker/internal/pipeline"
	"github.com/dvloznov/recurring-tracker/internal/statement"
)

// App holds the wired components shared by the binaries.
type App struct {
	Config *config.Config
	Log    zerolog.Logger

	Store    obligations.Store
	Source   obligations.TransactionSource // nil for the memory driver
	Importer pipeline.TransactionImporter  // nil unless transactions are stored locally
	Service  *obligations.Service
	Loader   *statement.Loader

	closers []func() error
}

// New builds an App for cfg. Callers must Close it.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		Log:    log,
		Loader: statement.NewLoader(gcsuploader.NewGCSStorageService()),
	}
	ctx = logger.WithContext(ctx, log)

	if err := a.openStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}

	cls, err := a.newClassifier(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := []obligations.Option{
		obligations.WithClassifier(cls),
		obligations.WithDetectionOptions(cfg.DetectionOptions()),
	}
	if a.Source != nil {
		opts = append(opts, obligations.WithTransactionSource(a.Source))
	}
	a.Service = obligations.NewService(a.Store, opts...)

	log.Info().
		Str("driver", cfg.Storage.Driver).
		Bool("gemini", cfg.Gemini.Enabled).
		Msg("Application initialized")
	return a, nil
}

func (a *App) openStorage(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		a.Store = inmemory.NewStore()

	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.Init(); err != nil {
			return fmt.Errorf("init sqlite: %w", err)
		}
		a.Store = db
		a.Source = db
		a.Importer = db

	case config.DriverBigQuery:
		ds := infraBQ.Dataset{ProjectID: cfg.BigQuery.ProjectID, DatasetID: cfg.BigQuery.Dataset}
		txRepo, err := infraBQ.NewBigQueryTransactionRepository(ctx, ds)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, txRepo.Close)
		obRepo, err := infraBQ.NewBigQueryObligationRepository(ctx, ds)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, obRepo.Close)
		a.Store = infraBQ.NewObligationStore(obRepo)
		a.Source = infraBQ.NewTransactionSource(txRepo)

	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	return nil
}

func (a *App) newClassifier(ctx context.Context) (obligations.Classifier, error) {
	if !a.Config.Gemini.Enabled {
		return classifier.NewKeywordClassifier(), nil
	}
	g, err := classifier.NewGeminiClassifier(ctx, a.Config.Gemini.Model)
	if err != nil {
		return nil, fmt.Errorf("create gemini classifier: %w", err)
	}
	return g, nil
}

// Pipeline returns the standard scan pipeline over the app's components.
func (a *App) Pipeline() *pipeline.Pipeline {
	return pipeline.NewRecurringScanPipeline(pipeline.Deps{
		Loader:   a.Loader,
		Source:   a.Source,
		Importer: a.Importer,
		Service:  a.Service,
	})
}

// Close releases storage clients in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
