package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// nowFunc supplies registry timestamps. Overridable in tests.
var nowFunc = time.Now

// RunStatus tracks a run through its lifecycle.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// Run is one tracked processing run. Result is nil until the run ends.
type Run struct {
	ID          string    `json:"run_id"`
	FileName    string    `json:"file_name"`
	Status      RunStatus `json:"status"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
	Result      *Result   `json:"result,omitempty"`
}

// Registry tracks runs in memory so callers can fetch status and reports
// after submitting. Entries older than the retention window are pruned on
// each write. Safe for concurrent use.
type Registry struct {
	retention time.Duration

	mu   sync.RWMutex
	runs map[string]*Run
}

// NewRegistry creates a Registry. A non-positive retention keeps runs for
// the life of the process.
func NewRegistry(retention time.Duration) *Registry {
	return &Registry{
		retention: retention,
		runs:      make(map[string]*Run),
	}
}

// Begin registers a new run and returns its ID.
func (r *Registry) Begin(fileName string) string {
	id := uuid.New().String()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune()
	r.runs[id] = &Run{
		ID:        id,
		FileName:  fileName,
		Status:    StatusRunning,
		StartedAt: nowFunc().UTC(),
	}
	return id
}

// Complete marks a run finished and attaches its result. The run's status
// follows the report: failed when the run stopped early or overall success
// is false, completed otherwise.
func (r *Registry) Complete(id string, result *Result) {
	status := StatusCompleted
	if result != nil && (result.FailedStage != "" || !result.Output.Report.OverallSuccess) {
		status = StatusFailed
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return
	}
	run.Status = status
	run.CompletedAt = nowFunc().UTC()
	run.Result = result
}

// Get returns a snapshot of one run.
func (r *Registry) Get(id string) (Run, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return Run{}, false
	}
	return *run, true
}

// List returns snapshots of every tracked run, newest first.
func (r *Registry) List() []Run {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Run, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, *run)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// prune drops finished runs older than the retention window. Caller holds
// the write lock.
func (r *Registry) prune() {
	if r.retention <= 0 {
		return
	}
	cutoff := nowFunc().UTC().Add(-r.retention)
	for id, run := range r.runs {
		if run.Status != StatusRunning && run.StartedAt.Before(cutoff) {
			delete(r.runs, id)
		}
	}
}
