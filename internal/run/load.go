package run

import (
	"context"
	"fmt"
)

// LoadFromDisk loads persisted runs into memory.
// A run still in progress from a previous process is marked as failed.
func (m *Manager) LoadFromDisk() error {
	loaded, err := m.store.LoadRuns(context.Background())
	if err != nil {
		return fmt.Errorf("load runs: %w", err)
	}
	for _, r := range loaded {
		if r.Status == StatusInProgress || r.Status == StatusCreated {
			r.Status = StatusFailed
			r.Error = "interrupted"
			_ = m.persistRun(r)
		}
		m.mu.Lock()
		m.runs[r.ID] = r
		m.mu.Unlock()
	}
	return nil
}
