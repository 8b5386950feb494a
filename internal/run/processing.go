package run

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// process executes the run. The caller holds a slot.
func (m *Manager) process(runID string) {
	m.mu.Lock()
	current, ok := m.runs[runID]
	if !ok {
		m.mu.Unlock()
		return
	}
	current.Status = StatusInProgress
	ctx := m.baseCtx
	m.mu.Unlock()
	if err := m.persistRun(current); err != nil {
		log.Warn().Str("run_id", runID).Err(err).Msg("persist in_progress failed")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	log.Info().Str("run_id", runID).Msg("run started")
	result, err := m.execute(ctx, runID, m.store.RunDir(runID))

	finished := time.Now()
	m.mu.Lock()
	current.FinishedAt = &finished
	if err != nil {
		current.Status = StatusFailed
		current.Error = err.Error()
	} else {
		current.Status = StatusDone
		current.Summary = result.Summary
		current.ReportPath = result.ReportPath
	}
	m.mu.Unlock()
	if err != nil {
		log.Error().Str("run_id", runID).Err(err).Msg("run failed")
	}
	if err := m.persistRun(current); err != nil {
		log.Warn().Str("run_id", runID).Err(err).Msg("persist final state failed")
	}
}
