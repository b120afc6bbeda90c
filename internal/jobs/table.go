// internal/jobs/table.go
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"repohealth/internal/model"
)

// Runner is the pipeline entrypoint a job executes.
type Runner interface {
	Run(ctx context.Context, id, token string) model.PipelineResult
}

// Job is one submitted pipeline run. Its result becomes available to any
// number of waiters once the done channel closes.
type Job struct {
	ID      string
	Started time.Time

	done   chan struct{}
	result model.PipelineResult
}

// Done reports whether the job has finished.
func (j *Job) Done() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Result returns the job's result and whether it is ready yet.
func (j *Job) Result() (model.PipelineResult, bool) {
	if !j.Done() {
		return model.PipelineResult{}, false
	}
	return j.result, true
}

// Wait blocks until the job finishes or the context is cancelled.
func (j *Job) Wait(ctx context.Context) (model.PipelineResult, error) {
	select {
	case <-j.done:
		return j.result, nil
	case <-ctx.Done():
		return model.PipelineResult{}, ctx.Err()
	}
}

// Table tracks the in-flight pipeline run per identifier and dispatches new
// runs onto a bounded set of workers. Repeat submissions for an identifier
// join the existing job instead of starting a second one, keeping the
// at-most-one-pipeline-per-identifier contract. The table is constructed
// once at process start and torn down with its base context at shutdown.
type Table struct {
	runner Runner
	logger *slog.Logger
	base   context.Context
	sem    chan struct{}

	mu   sync.Mutex
	jobs map[string]*Job
}

// NewTable creates a Table running at most workers pipelines at once. Jobs
// run under base, not the submitting request's context: a pipeline outlives
// the web request that started it.
func NewTable(base context.Context, runner Runner, workers int, logger *slog.Logger) *Table {
	return &Table{
		runner: runner,
		logger: logger,
		base:   base,
		sem:    make(chan struct{}, workers),
		jobs:   make(map[string]*Job),
	}
}

// Submit returns the job for the identifier, starting one if none exists.
// The second return reports whether this call started it.
func (t *Table) Submit(id, token string) (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if job, ok := t.jobs[id]; ok {
		return job, false
	}

	job := &Job{ID: id, Started: time.Now().UTC(), done: make(chan struct{})}
	t.jobs[id] = job

	go t.execute(job, token)
	return job, true
}

// Get returns the tracked job for the identifier, if any.
func (t *Table) Get(id string) (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	return job, ok
}

// Remove drops the identifier from the table; used together with cache
// invalidation to force a fresh run.
func (t *Table) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.jobs, id)
}

func (t *Table) execute(job *Job, token string) {
	select {
	case t.sem <- struct{}{}:
		defer func() { <-t.sem }()
	case <-t.base.Done():
		job.result = model.PipelineResult{Status: 500, Message: t.base.Err().Error()}
		close(job.done)
		return
	}

	t.logger.Info("Pipeline job started", "repo", job.ID)
	job.result = t.runner.Run(t.base, job.ID, token)
	close(job.done)
	t.logger.Info("Pipeline job finished", "repo", job.ID, "status", job.result.Status)
}
