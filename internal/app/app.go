// Package app wires the configured storage, ledger and data source into runnable archive passes.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"britearchive/internal/config"
	"britearchive/internal/ingest"
	"britearchive/internal/ledger"
	"britearchive/internal/observation"
	"britearchive/internal/report"
	"britearchive/internal/source"
	"britearchive/internal/storage"
)

// App holds the long-lived collaborators shared by every run.
type App struct {
	cfg      config.Config
	store    storage.Client
	ledger   *ledger.Store
	manifest observation.Manifest
}

// Open connects the storage backend and the ledger.
func Open(cfg config.Config) (*App, error) {
	mode, err := observation.ParseCheckMode(cfg.ManifestCheck)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	var store storage.Client
	if cfg.Storage.Remote() {
		store, err = storage.NewS3(cfg.Storage)
	} else {
		store, err = storage.NewDir(cfg.Storage.LocalDir)
	}
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	led, err := ledger.New(cfg.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return &App{
		cfg:      cfg,
		store:    store,
		ledger:   led,
		manifest: observation.NewManifest(cfg.DataSourceExtensions, mode),
	}, nil
}

func (a *App) Close() error {
	return a.ledger.Close()
}

func (a *App) Ledger() *ledger.Store { return a.ledger }

// NewRunner assembles a runner whose report is written to reportDir with reportPrefix.
func (a *App) NewRunner(reportDir, reportPrefix string) *ingest.Runner {
	var lister source.Lister = source.DirLister{Recursive: a.cfg.RecurseDataSources}
	if a.cfg.RemoteDataSource {
		lister = source.BucketLister{Store: a.store}
	}
	reporter := report.NewReporter()
	src := source.New(source.Options{
		Roots:                   a.cfg.DataSources,
		Manifest:                a.manifest,
		CleanupFilesWhenStoring: a.cfg.CleanupFilesWhenStoring,
		SuccessDestination:      a.cfg.CleanupSuccessDestination,
		FailureDestination:      a.cfg.CleanupFailureDestination,
		StoreModifiedFilesOnly:  a.cfg.StoreModifiedFilesOnly,
		Remote:                  a.cfg.RemoteDataSource,
	}, lister, a.store, reporter)
	pipeline := ingest.NewPipeline(a.store, a.ledger, a.cfg.Collection, a.cfg.Scheme, a.cfg.RemoteDataSource)
	return ingest.NewRunner(src, pipeline, reporter, ingest.RunnerOptions{
		RetryFailures: a.cfg.RetryFailures,
		RetryCount:    a.cfg.RetryCount,
		LogDir:        reportDir,
		ReportPrefix:  reportPrefix,
		Location:      a.cfg.WorkingDirectory,
	})
}

// Execute performs one run. It matches run.Executor.
func (a *App) Execute(ctx context.Context, runID, reportDir string) (ingest.Result, error) {
	if reportDir == "" {
		reportDir = a.cfg.LogFileDirectory
	}
	prefix := filepath.Base(filepath.Clean(a.cfg.WorkingDirectory))
	if prefix == "." || prefix == string(filepath.Separator) {
		prefix = "brite"
	}
	log.Info().Str("run_id", runID).Str("report_dir", reportDir).Msg("executing run")
	return a.NewRunner(reportDir, prefix).Run(ctx) //nolint:wrapcheck
}
