// Package ingest drives one archive run: it builds the todo list from a source, hands every
// archivable file to the pipeline, and closes the run with a reconciled report.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"britearchive/internal/observation"
	"britearchive/internal/report"
)

// DataSource is what the runner needs from a source of work.
type DataSource interface {
	GetWork(ctx context.Context) error
	GroupWorkByObs() error
	RemoveUnarchived() error
	Work() []observation.FileRecord
	CleanUp(ctx context.Context, rec observation.FileRecord, ingested bool) error
}

// RunnerOptions configure retries and where the report goes.
type RunnerOptions struct {
	RetryFailures bool
	RetryCount    int
	LogDir        string
	ReportPrefix  string
	Location      string
}

// Result summarizes a finished run.
type Result struct {
	Summary    report.Summary
	ReportPath string
	Duration   time.Duration
}

// Succeeded is true when no input failed.
func (r Result) Succeeded() bool { return r.Summary.Failures == 0 }

type Runner struct {
	source   DataSource
	ingester Ingester
	reporter *report.Reporter
	opts     RunnerOptions
}

func NewRunner(source DataSource, ingester Ingester, reporter *report.Reporter, opts RunnerOptions) *Runner {
	if opts.ReportPrefix == "" {
		opts.ReportPrefix = "brite"
	}
	return &Runner{source: source, ingester: ingester, reporter: reporter, opts: opts}
}

// buildTodoList lists, drops incomplete Observations, then retires sentinels. The order matters:
// sentinels count toward completeness.
func (r *Runner) buildTodoList(ctx context.Context) ([]observation.FileRecord, error) {
	if err := r.source.GetWork(ctx); err != nil {
		return nil, err //nolint:wrapcheck
	}
	if err := r.source.GroupWorkByObs(); err != nil {
		return nil, err //nolint:wrapcheck
	}
	log.Info().Int("records", len(r.source.Work())).Msg("processing records")
	if err := r.source.RemoveUnarchived(); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return r.source.Work(), nil
}

// Run executes the whole pass. Errors returned here are fatal for the run; per-file ingestion
// failures are only reported.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	started := time.Now()
	todo, err := r.buildTodoList(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("build todo list: %w", err)
	}

	outcomes := make([]bool, len(todo))
	for i, rec := range todo {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("run cancelled: %w", err)
		}
		outcomes[i] = r.ingestWithRetry(ctx, rec)
	}
	// clean up after the whole pass so sibling files stay readable while their group is ingested
	for i, rec := range todo {
		if err := r.source.CleanUp(ctx, rec, outcomes[i]); err != nil {
			return Result{}, fmt.Errorf("clean up: %w", err)
		}
	}

	if err := r.reporter.Reconcile(); err != nil {
		return Result{}, err //nolint:wrapcheck
	}
	reportPath, err := r.reporter.Write(r.opts.LogDir, r.opts.ReportPrefix, r.opts.Location)
	if err != nil {
		return Result{}, err //nolint:wrapcheck
	}
	res := Result{Summary: r.reporter.Summary(), ReportPath: reportPath, Duration: time.Since(started)}
	log.Info().
		Int("inputs", res.Summary.Inputs).
		Int("successes", res.Summary.Successes).
		Int("failures", res.Summary.Failures).
		Int("skipped", res.Summary.Skipped).
		Str("report", reportPath).
		Msg("run complete")
	return res, nil
}

// ingestWithRetry records exactly one outcome for rec, whatever the number of attempts.
func (r *Runner) ingestWithRetry(ctx context.Context, rec observation.FileRecord) bool {
	attempts := 1
	if r.opts.RetryFailures {
		attempts += r.opts.RetryCount
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			r.reporter.CaptureRetry()
			log.Info().Str("file", rec.Name).Int("attempt", attempt).Msg("retrying")
		}
		if err = r.ingester.Ingest(ctx, rec); err == nil {
			r.reporter.CaptureSuccess(rec.GroupID, rec.Path, time.Now())
			return true
		}
		log.Warn().Err(err).Str("obs_id", rec.GroupID).Str("file", rec.Name).Msg("ingestion failed")
	}
	r.reporter.CaptureFailure(rec.GroupID, rec.Path, report.ReasonIngest, err.Error())
	return false
}
