package run

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	fileutil "britearchive/internal/file"
)

// RunStore abstracts persistence of run state.
type RunStore interface {
	SaveRun(ctx context.Context, r *Run) error
	LoadRuns(ctx context.Context) ([]*Run, error)
	RunDir(runID string) string
}

// fileStore implements RunStore using the local filesystem under dataDir.
type fileStore struct {
	dataDir string
}

func NewFileStore(dataDir string) RunStore { //nolint:ireturn
	if dataDir == "" {
		dataDir = "logs"
	}
	return &fileStore{dataDir: dataDir}
}

func (s *fileStore) RunDir(runID string) string {
	return filepath.Join(s.dataDir, "runs", runID)
}

func (s *fileStore) statusPath(runID string) string {
	return filepath.Join(s.RunDir(runID), "status.json")
}

func (s *fileStore) SaveRun(_ context.Context, r *Run) error {
	return fileutil.WriteJSONAtomic(s.statusPath(r.ID), r) //nolint:wrapcheck
}

func (s *fileStore) LoadRuns(_ context.Context) ([]*Run, error) {
	root := filepath.Join(s.dataDir, "runs")
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}
	runs := make([]*Run, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		b, err := os.ReadFile(s.statusPath(e.Name())) //nolint:gosec // path is controlled by application
		if err != nil {
			continue
		}
		var r Run
		if err := json.Unmarshal(b, &r); err != nil {
			continue
		}
		runs = append(runs, &r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.Before(runs[j].CreatedAt) })
	return runs, nil
}
