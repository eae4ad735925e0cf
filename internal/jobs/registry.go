package jobs

import (
	"sort"
	"sync"
	"time"
)

// Registry holds job snapshots in memory and is safe for concurrent use.
// Reads return copies; every transition replaces the whole stored value, so
// pollers never observe a partially updated job.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]Job
	done map[string]chan struct{}
}

// NewRegistry constructs a Registry.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]Job),
		done: make(map[string]chan struct{}),
	}
}

// Create registers a new job.
func (r *Registry) Create(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[job.ID] = job
	r.done[job.ID] = make(chan struct{})
}

// Get returns a snapshot of the job.
func (r *Registry) Get(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.byID[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// List returns all job snapshots, newest first.
func (r *Registry) List() []Job {
	r.mu.RLock()
	out := make([]Job, 0, len(r.byID))
	for _, job := range r.byID {
		out = append(out, job)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Done returns a channel closed when the job reaches a terminal stage.
func (r *Registry) Done(id string) (<-chan struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.done[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ch, nil
}

// Advance moves the job to a later non-terminal stage. Progress never moves
// backward and terminal jobs are never mutated.
func (r *Registry) Advance(id string, stage Stage) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	if job.Stage.Terminal() {
		return job, ErrTerminal
	}
	if stageOrder[stage] < stageOrder[job.Stage] {
		return job, ErrStageOrder
	}

	now := time.Now().UTC()
	job.Stage = stage
	if pct := stage.Percent(); pct > job.ProgressPercent {
		job.ProgressPercent = pct
	}
	if job.StartedAt == nil {
		job.StartedAt = &now
	}
	job.UpdatedAt = now
	r.byID[id] = job
	return job, nil
}

// Complete performs the exactly-once transition to Completed and attaches the
// report. The report is never mutated afterward.
func (r *Registry) Complete(id string, report string) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	if job.Stage.Terminal() {
		return job, ErrTerminal
	}

	now := time.Now().UTC()
	job.Stage = StageCompleted
	job.ProgressPercent = StageCompleted.Percent()
	job.Report = report
	job.UpdatedAt = now
	job.CompletedAt = &now
	r.byID[id] = job
	close(r.done[id])
	return job, nil
}

// Fail performs the exactly-once transition to Failed. Progress freezes at
// its current value.
func (r *Registry) Fail(id string, info ErrorInfo) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	if job.Stage.Terminal() {
		return job, ErrTerminal
	}

	now := time.Now().UTC()
	job.Stage = StageFailed
	job.Err = &info
	job.UpdatedAt = now
	job.CompletedAt = &now
	r.byID[id] = job
	close(r.done[id])
	return job, nil
}
