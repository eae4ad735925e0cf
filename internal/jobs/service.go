package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"analyzer-backend/internal/shared/metrics"
	"analyzer-backend/internal/shared/storage/object"
	"analyzer-backend/internal/shared/telemetry"
	"analyzer-backend/internal/validate"
)

// Service orchestrates analysis jobs: validation, stage execution, progress
// visibility, cancellation, and result retrieval.
type Service struct {
	Registry     *Registry
	Runner       Runner
	Store        object.ObjectStore
	Policy       validate.Policy
	StageTimeout time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewService constructs a Service around a registry and runner.
func NewService(registry *Registry, runner Runner, store object.ObjectStore, policy validate.Policy, stageTimeout time.Duration) *Service {
	return &Service{
		Registry:     registry,
		Runner:       runner,
		Store:        store,
		Policy:       policy,
		StageTimeout: stageTimeout,
		cancels:      make(map[string]context.CancelFunc),
	}
}

// Submit validates the upload, registers a queued job, and kicks off
// asynchronous stage execution. It never blocks on the pipeline.
func (s *Service) Submit(ctx context.Context, up Upload) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	if err := s.Policy.Check(up.Name, up.MediaType, up.SizeBytes); err != nil {
		return Job{}, err
	}

	now := time.Now().UTC()
	job := Job{
		ID:              uuid.NewString(),
		FileName:        up.Name,
		MediaType:       up.MediaType,
		SizeBytes:       up.SizeBytes,
		Stage:           StageQueued,
		ProgressPercent: StageQueued.Percent(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	job.StorageKey = s.archiveUpload(ctx, job.ID, up)
	s.Registry.Create(job)

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[job.ID] = cancel
	s.mu.Unlock()

	metrics.IncJobStarted()
	telemetry.Info("job.submitted", map[string]any{
		"job_id":     job.ID,
		"file_name":  job.FileName,
		"media_type": job.MediaType,
		"size_bytes": job.SizeBytes,
	})

	go s.run(runCtx, job.ID, up)

	return job, nil
}

// Get returns the current snapshot of a job.
func (s *Service) Get(id string) (Job, error) {
	if strings.TrimSpace(id) == "" {
		return Job{}, ErrNotFound
	}
	return s.Registry.Get(id)
}

// List returns all known job snapshots, newest first.
func (s *Service) List() []Job {
	return s.Registry.List()
}

// Await blocks until the job reaches a terminal stage or ctx is done.
func (s *Service) Await(ctx context.Context, id string) (Job, error) {
	done, err := s.Registry.Done(id)
	if err != nil {
		return Job{}, err
	}
	select {
	case <-ctx.Done():
		return Job{}, ctx.Err()
	case <-done:
	}
	return s.Registry.Get(id)
}

// Cancel requests cooperative cancellation of a running job. The current
// stage finishes or aborts at its next checkpoint; the job then terminates
// in Failed with reason Cancelled.
func (s *Service) Cancel(id string) error {
	job, err := s.Registry.Get(id)
	if err != nil {
		return err
	}
	if job.Stage.Terminal() {
		return ErrTerminal
	}

	s.mu.Lock()
	cancel := s.cancels[id]
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	telemetry.Info("job.cancel_requested", map[string]any{"job_id": id, "stage": string(job.Stage)})
	return nil
}

func (s *Service) run(ctx context.Context, id string, up Upload) {
	defer s.clearCancel(id)
	defer func() {
		if r := recover(); r != nil {
			s.fail(id, StageFailed, ErrorCodeInternal, fmt.Sprintf("panic: %v", r))
		}
	}()

	work := &Work{
		FileName:  up.Name,
		MediaType: up.MediaType,
		SizeBytes: up.SizeBytes,
		Data:      up.Data,
	}

	prev := StageQueued
	for _, stage := range workStages {
		if ctx.Err() != nil {
			s.fail(id, stage, ErrorCodeCancelled, "job cancelled")
			return
		}

		job, err := s.Registry.Advance(id, stage)
		if err != nil {
			if errors.Is(err, ErrTerminal) {
				return
			}
			s.fail(id, stage, ErrorCodeInternal, fmt.Sprintf("advance to %s: %v", stage, err))
			return
		}
		telemetry.Info("job.stage", map[string]any{
			"job_id":           id,
			"stage":            string(stage),
			"stage_transition": fmt.Sprintf("%s->%s", prev, stage),
			"progress":         job.ProgressPercent,
		})
		prev = stage

		stageCtx := ctx
		var cancelStage context.CancelFunc
		if s.StageTimeout > 0 {
			stageCtx, cancelStage = context.WithTimeout(ctx, s.StageTimeout)
		}
		err = s.Runner.RunStage(stageCtx, stage, work)
		if cancelStage != nil {
			cancelStage()
		}
		if err != nil {
			code, msg := classifyStageFailure(ctx, err)
			s.fail(id, stage, code, msg)
			return
		}

		if stage == StageExtracting {
			// The raw upload is consumed; only derived text travels on.
			work.Data = nil
		}
	}

	s.archiveReport(id, work.Report)

	job, err := s.Registry.Complete(id, work.Report)
	if err != nil {
		return
	}
	metrics.IncJobCompleted()
	metrics.ObserveJobDurationMs(durationMs(job.StartedAt, job.CompletedAt))
	telemetry.Info("job.stage", map[string]any{
		"job_id":           id,
		"stage":            string(StageCompleted),
		"stage_transition": fmt.Sprintf("%s->%s", prev, StageCompleted),
		"progress":         job.ProgressPercent,
		"duration_ms":      durationMs(job.StartedAt, job.CompletedAt),
	})
}

func (s *Service) fail(id string, stage Stage, code, msg string) {
	job, err := s.Registry.Fail(id, ErrorInfo{
		Stage:   stage,
		Code:    code,
		Message: sanitizeError(msg),
	})
	if err != nil {
		return
	}
	if code == ErrorCodeCancelled {
		metrics.IncJobCancelled()
	} else {
		metrics.IncJobFailed()
	}
	metrics.ObserveJobDurationMs(durationMs(job.StartedAt, job.CompletedAt))
	telemetry.Error("job.failed", map[string]any{
		"job_id":      id,
		"stage":       string(stage),
		"code":        code,
		"message":     job.Err.Message,
		"progress":    job.ProgressPercent,
		"duration_ms": durationMs(job.StartedAt, job.CompletedAt),
	})
}

// archiveUpload stores the original document so it outlives the in-memory
// pipeline buffer. Best effort: a storage failure never blocks submission.
func (s *Service) archiveUpload(ctx context.Context, id string, up Upload) string {
	if s.Store == nil || len(up.Data) == 0 {
		return ""
	}
	key, _, _, err := s.Store.Save(ctx, "uploads", up.Name, bytes.NewReader(up.Data))
	if err != nil {
		telemetry.Error("job.upload_archive_failed", map[string]any{
			"job_id":    id,
			"file_name": up.Name,
			"err":       err.Error(),
		})
		return ""
	}
	return key
}

func (s *Service) archiveReport(id, report string) {
	if s.Store == nil || report == "" {
		return
	}
	key := reportKey(id)
	if _, err := s.Store.SaveWithKey(context.Background(), key, "text/markdown; charset=utf-8", strings.NewReader(report)); err != nil {
		telemetry.Error("job.report_archive_failed", map[string]any{
			"job_id": id,
			"key":    key,
			"err":    err.Error(),
		})
	}
}

// OpenReport streams the archived report of a completed job from the object
// store.
func (s *Service) OpenReport(ctx context.Context, id string) (io.ReadCloser, error) {
	job, err := s.Registry.Get(id)
	if err != nil {
		return nil, err
	}
	switch job.Stage {
	case StageCompleted:
	case StageFailed:
		return nil, ErrNotFound
	default:
		return nil, ErrNotReady
	}
	if s.Store == nil {
		return nil, ErrNotFound
	}
	return s.Store.Open(ctx, reportKey(id))
}

func reportKey(id string) string {
	return path.Join("reports", id+".md")
}

func (s *Service) clearCancel(id string) {
	s.mu.Lock()
	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
	s.mu.Unlock()
}

func classifyStageFailure(ctx context.Context, err error) (string, string) {
	switch {
	case ctx.Err() != nil, errors.Is(err, context.Canceled):
		return ErrorCodeCancelled, "job cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorCodeTimeout, "stage timed out"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "extract"):
		return ErrorCodeExtraction, err.Error()
	case strings.Contains(msg, "llm"):
		return ErrorCodeLLM, err.Error()
	default:
		return ErrorCodeInternal, err.Error()
	}
}

func sanitizeError(msg string) string {
	msg = strings.ReplaceAll(msg, "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}

func durationMs(startedAt, completedAt *time.Time) float64 {
	if startedAt == nil || completedAt == nil {
		return 0
	}
	return float64(completedAt.Sub(*startedAt).Microseconds()) / 1000.0
}
