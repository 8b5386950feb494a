package run

import (
	"time"

	"britearchive/internal/report"
)

type Status string

const (
	StatusCreated    Status = "created"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Run is one archive pass over the configured data sources.
type Run struct {
	ID         string         `json:"id"`
	Status     Status         `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Summary    report.Summary `json:"summary"`
	ReportPath string         `json:"report_path,omitempty"`
	Error      string         `json:"error,omitempty"`
}

type Options struct {
	DataDir string
	// Runs touch the same directories, so one at a time is the sane default.
	MaxConcurrentRuns int
}

const defaultMaxConcurrent = 1
