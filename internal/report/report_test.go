package report

import (
	"bufio"
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	t0 := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time { return t0 }
}

func reportValue(t *testing.T, text, key string) string {
	t.Helper()
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		if strings.Contains(sc.Text(), key) {
			parts := strings.Split(sc.Text(), ":")
			return strings.TrimSpace(parts[len(parts)-1])
		}
	}
	t.Fatalf("no %q line in report:\n%s", key, text)
	return ""
}

func TestReconcileBalanced(t *testing.T) {
	r := NewReporterWithClock(fixedClock())
	r.AddInputs(4)
	r.CaptureSuccess("HD1", "HD1.lst", time.Now())
	r.CaptureFailure("HD2", "HD2.orig", ReasonManifestErrors, "")
	r.CaptureSkipped("HD3", "HD3.orig", ReasonUnchanged)
	r.CaptureSuccess("HD1", "HD1.md5", time.Now())
	r.CaptureRetry()

	require.NoError(t, r.Reconcile())
	s := r.Summary()
	require.Equal(t, Summary{Inputs: 4, Successes: 2, Failures: 1, Skipped: 1, Retries: 1}, s)
	require.Len(t, r.Entries(), 4)
}

func TestReconcileDetectsMissingOutcome(t *testing.T) {
	r := NewReporter()
	r.AddInputs(2)
	r.CaptureSuccess("HD1", "HD1.lst", time.Now())
	err := r.Reconcile()
	require.True(t, errors.Is(err, ErrAccounting), "got %v", err)
}

func TestReconcileDetectsDoubleCapture(t *testing.T) {
	r := NewReporter()
	r.AddInputs(2)
	r.CaptureSuccess("HD1", "HD1.lst", time.Now())
	r.CaptureSuccess("HD1", "HD1.lst", time.Now())
	err := r.Reconcile()
	require.ErrorIs(t, err, ErrAccounting)
	require.Contains(t, err.Error(), "captured 2 times")
}

func TestReconcileSameNameInDifferentDirectories(t *testing.T) {
	r := NewReporter()
	r.AddInputs(2)
	r.CaptureFailure("HD1", "/data/night1/HD1.rlogdb", ReasonManifestErrors, "")
	r.CaptureFailure("HD1", "/data/night2/HD1.rlogdb", ReasonManifestErrors, "")
	require.NoError(t, r.Reconcile())
	for _, e := range r.Entries() {
		require.Equal(t, "HD1.rlogdb", e.FileName)
	}
}

func TestWriteToInputsEqualSuccesses(t *testing.T) {
	r := NewReporterWithClock(fixedClock())
	r.AddInputs(7)
	for _, n := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		r.CaptureSuccess("HD1", "HD1."+n, time.Now())
	}
	var buf bytes.Buffer
	require.NoError(t, r.WriteTo(&buf, "/data"))
	text := buf.String()
	require.Equal(t, "7", reportValue(t, text, "Number of Inputs"))
	require.Equal(t, reportValue(t, text, "Number of Inputs"), reportValue(t, text, "Number of Successes"))
	require.Equal(t, "0", reportValue(t, text, "Number of Errors"))
}

func TestWriteCreatesLogs(t *testing.T) {
	dir := t.TempDir()
	r := NewReporterWithClock(fixedClock())
	r.AddInputs(2)
	r.CaptureSuccess("HD1", "HD1.lst", fixedClock()())
	r.CaptureFailure("HD2", "HD2.orig", ReasonManifestErrors, "missing .rlogdb")

	path, err := r.Write(dir, "run1", dir)
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), "Number of Inputs: 2")

	failures, err := os.ReadFile(dir + "/failure_log.txt")
	require.NoError(t, err)
	require.Contains(t, string(failures), "HD2 HD2.orig manifest errors")

	successes, err := os.ReadFile(dir + "/success_log.txt")
	require.NoError(t, err)
	require.Contains(t, string(successes), "HD1 HD1.lst")
}
