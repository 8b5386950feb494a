package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	fileutil "britearchive/internal/file"

	"github.com/rs/zerolog/log"
)

// ErrAccounting is returned when the run tally does not reconcile.
var ErrAccounting = errors.New("accounting mismatch")

type Outcome string

const (
	Success Outcome = "success"
	Failure Outcome = "failure"
	Skipped Outcome = "skipped"
)

// Reason tags a failure. The zero value means no reason.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonManifestErrors Reason = "manifest errors"
	ReasonIngest         Reason = "ingestion errors"
	ReasonUnchanged      Reason = "unchanged in archive"
)

// Entry is one disposition captured during a run.
type Entry struct {
	SubjectID string    `json:"subject_id"`
	FileName  string    `json:"file_name"`
	Path      string    `json:"path"`
	Outcome   Outcome   `json:"outcome"`
	Reason    Reason    `json:"reason,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary holds the running counters for one run.
type Summary struct {
	Inputs    int `json:"inputs"`
	Successes int `json:"successes"`
	Failures  int `json:"failures"`
	Skipped   int `json:"skipped"`
	Retries   int `json:"retries"`
}

// Reporter is the run-scoped tally. Inputs must equal Successes+Failures+Skipped when the
// report is written.
type Reporter struct {
	mu       sync.Mutex
	summary  Summary
	entries  []Entry
	// keyed by path: the same base name may appear under several roots or subdirectories
	captured map[string]int
	started  time.Time
	now      func() time.Time
}

func NewReporter() *Reporter {
	return NewReporterWithClock(time.Now)
}

// NewReporterWithClock is used by tests that need fixed timestamps.
func NewReporterWithClock(now func() time.Time) *Reporter {
	return &Reporter{
		captured: make(map[string]int),
		started:  now(),
		now:      now,
	}
}

// AddInputs records files that entered the run.
func (r *Reporter) AddInputs(n int) {
	r.mu.Lock()
	r.summary.Inputs += n
	r.mu.Unlock()
}

// CaptureSuccess records the outcome of the input at filePath. The same holds for CaptureFailure and
// CaptureSkipped: filePath identifies the input, its base name is what the logs show.
func (r *Reporter) CaptureSuccess(subjectID, filePath string, ts time.Time) {
	r.capture(Entry{
		SubjectID: subjectID,
		FileName:  filepath.Base(filePath),
		Path:      filePath,
		Outcome:   Success,
		Timestamp: ts,
	})
}

func (r *Reporter) CaptureFailure(subjectID, filePath string, reason Reason, detail string) {
	r.capture(Entry{
		SubjectID: subjectID,
		FileName:  filepath.Base(filePath),
		Path:      filePath,
		Outcome:   Failure,
		Reason:    reason,
		Detail:    detail,
		Timestamp: r.now(),
	})
}

func (r *Reporter) CaptureSkipped(subjectID, filePath string, reason Reason) {
	r.capture(Entry{
		SubjectID: subjectID,
		FileName:  filepath.Base(filePath),
		Path:      filePath,
		Outcome:   Skipped,
		Reason:    reason,
		Timestamp: r.now(),
	})
}

// CaptureRetry counts one extra attempt. Retries are not outcomes.
func (r *Reporter) CaptureRetry() {
	r.mu.Lock()
	r.summary.Retries++
	r.mu.Unlock()
}

func (r *Reporter) capture(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch e.Outcome {
	case Success:
		r.summary.Successes++
	case Failure:
		r.summary.Failures++
	case Skipped:
		r.summary.Skipped++
	}
	r.entries = append(r.entries, e)
	r.captured[e.Path]++
	log.Debug().Str("obs_id", e.SubjectID).Str("file", e.Path).Str("outcome", string(e.Outcome)).
		Str("reason", string(e.Reason)).Msg("captured")
}

func (r *Reporter) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

func (r *Reporter) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Reconcile checks that every input has exactly one outcome.
func (r *Reporter) Reconcile() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, n := range r.captured {
		if n > 1 {
			return fmt.Errorf("%w: %s captured %d times", ErrAccounting, key, n)
		}
	}
	s := r.summary
	if s.Inputs != s.Successes+s.Failures+s.Skipped {
		return fmt.Errorf("%w: inputs %d != successes %d + failures %d + skipped %d",
			ErrAccounting, s.Inputs, s.Successes, s.Failures, s.Skipped)
	}
	return nil
}

// WriteTo renders the textual run report.
func (r *Reporter) WriteTo(w io.Writer, location string) error {
	s := r.Summary()
	end := r.now()
	_, err := fmt.Fprintf(w,
		"Date: %s\nLocation: %s\nDuration: %.2f\nNumber of Inputs: %d\nNumber of Successes: %d\n"+
			"Number of Retries: %d\nNumber of Errors: %d\nNumber of Skipped Files: %d\n",
		r.started.UTC().Format(time.RFC3339), location, end.Sub(r.started).Seconds(),
		s.Inputs, s.Successes, s.Retries, s.Failures, s.Skipped)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Write puts <prefix>_report.txt, success_log.txt and failure_log.txt under dir.
// It returns the report path.
func (r *Reporter) Write(dir, prefix, location string) (string, error) {
	var buf bytes.Buffer
	if err := r.WriteTo(&buf, location); err != nil {
		return "", err
	}
	reportPath := filepath.Join(dir, prefix+"_report.txt")
	if err := fileutil.CopyAtomic(reportPath, &buf); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	var successes, failures bytes.Buffer
	for _, e := range r.Entries() {
		switch e.Outcome {
		case Success:
			fmt.Fprintf(&successes, "%s %s %s\n", e.Timestamp.UTC().Format(time.RFC3339), e.SubjectID, e.FileName)
		case Failure:
			fmt.Fprintf(&failures, "%s %s %s %s\n", e.Timestamp.UTC().Format(time.RFC3339), e.SubjectID, e.FileName, e.Reason)
		}
	}
	if err := fileutil.CopyAtomic(filepath.Join(dir, "success_log.txt"), &successes); err != nil {
		return "", fmt.Errorf("write success log: %w", err)
	}
	if err := fileutil.CopyAtomic(filepath.Join(dir, "failure_log.txt"), &failures); err != nil {
		return "", fmt.Errorf("write failure log: %w", err)
	}
	return reportPath, nil
}
