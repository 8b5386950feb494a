package run

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"britearchive/internal/ingest"
)

// Executor performs one run and writes its report under reportDir.
type Executor func(ctx context.Context, runID, reportDir string) (ingest.Result, error)

// Manager keeps runs in memory, persists their state and executes them in the background.
type Manager struct {
	mu        sync.RWMutex
	runs      map[string]*Run
	semaphore chan struct{}
	execute   Executor
	workersWG sync.WaitGroup
	baseCtx   context.Context
	store     RunStore
}

func NewManager(opts Options, execute Executor) *Manager {
	if opts.MaxConcurrentRuns <= 0 {
		opts.MaxConcurrentRuns = defaultMaxConcurrent
	}
	return &Manager{
		runs:      make(map[string]*Run),
		semaphore: make(chan struct{}, opts.MaxConcurrentRuns),
		execute:   execute,
		baseCtx:   context.Background(),
		store:     NewFileStore(opts.DataDir),
	}
}

// IsBusy reports whether every run slot is taken.
func (m *Manager) IsBusy() bool {
	return len(m.semaphore) >= cap(m.semaphore)
}

// Start creates a run and executes it in the background. It fails with ErrBusy instead of queueing.
func (m *Manager) Start() (*Run, error) {
	select {
	case m.semaphore <- struct{}{}:
	default:
		return nil, ErrBusy
	}

	newRun := &Run{
		ID:        uuid.NewString(),
		Status:    StatusCreated,
		CreatedAt: time.Now(),
	}
	m.mu.Lock()
	m.runs[newRun.ID] = newRun
	m.mu.Unlock()
	if err := m.persistRun(newRun); err != nil { // best-effort
		log.Warn().Str("run_id", newRun.ID).Err(err).Msg("persist run failed")
	}

	m.workersWG.Add(1)
	go func() {
		defer m.workersWG.Done()
		defer func() { <-m.semaphore }()
		m.process(newRun.ID)
	}()
	return m.snapshot(newRun), nil
}

// Get returns a copy of the run.
func (m *Manager) Get(runID string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	c := *r
	return &c, nil
}

// List returns copies of all runs, oldest first.
func (m *Manager) List() []*Run {
	m.mu.RLock()
	out := make([]*Run, 0, len(m.runs))
	for _, r := range m.runs {
		c := *r
		out = append(out, &c)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// SetBaseContext sets the context runs execute under. Cancel it during shutdown.
func (m *Manager) SetBaseContext(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()
}

// WaitAll blocks until all in-flight runs finish or the context is done.
// Returns true if all runs finished, false if timed out.
func (m *Manager) WaitAll(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		m.workersWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *Manager) snapshot(r *Run) *Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := *r
	return &c
}

// persistRun writes run state to disk atomically under runs/<id>/status.json
func (m *Manager) persistRun(r *Run) error {
	m.mu.RLock()
	c := *r
	m.mu.RUnlock()
	return m.store.SaveRun(context.Background(), &c) //nolint:wrapcheck
}
