package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/forPelevin/adcut/internal/logging"
	"github.com/forPelevin/adcut/internal/pipeline"
	"github.com/forPelevin/adcut/internal/store"
	"github.com/forPelevin/adcut/internal/types"
)

// ErrBusy rejects a submit while another job holds the engine.
var ErrBusy = errors.New("a job is already running")

type RunnerConfig struct {
	Store  *store.Store
	Hub    *WSHub
	Logger *zap.Logger
}

// Runner executes render jobs one at a time. The engine session has a
// single workspace, so overlapping renders would corrupt each other;
// submits while busy are rejected instead of queued.
type Runner struct {
	cfg RunnerConfig

	mu     sync.Mutex
	active string
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Hub == nil {
		cfg.Hub = NewWSHub()
	}
	return &Runner{cfg: cfg}
}

// Submit claims the runner, records the job, and starts rendering in the
// background. The job context is detached from ctx: the render outlives
// the HTTP request that started it.
func (r *Runner) Submit(ctx context.Context, job *store.Job, run pipeline.Config) error {
	r.mu.Lock()
	if r.active != "" {
		r.mu.Unlock()
		return ErrBusy
	}
	runCtx, cancel := context.WithCancel(context.Background())
	r.active = job.ID
	r.cancel = cancel
	r.mu.Unlock()

	if err := r.cfg.Store.CreateJob(ctx, job); err != nil {
		cancel()
		r.release(job.ID)
		return fmt.Errorf("create job: %w", err)
	}
	r.cfg.Hub.BroadcastJob(job)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release(job.ID)
		defer cancel()
		r.render(runCtx, *job, run)
	}()
	return nil
}

// Cancel stops the named job if it is the one currently running.
func (r *Runner) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != id || r.cancel == nil {
		return false
	}
	r.cancel()
	return true
}

// Active returns the id of the running job, or "" when idle.
func (r *Runner) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Close cancels any running job and waits for it to wind down.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Runner) release(id string) {
	r.mu.Lock()
	if r.active == id {
		r.active = ""
		r.cancel = nil
	}
	r.mu.Unlock()
}

func (r *Runner) render(ctx context.Context, job store.Job, run pipeline.Config) {
	log := logging.WithJob(r.cfg.Logger, job.ID)
	st := r.cfg.Store

	// Terminal writes use a fresh context: a canceled render still has
	// to record its final state.
	setStatus := func(status, errMsg string) {
		if err := st.UpdateJobStatus(context.Background(), job.ID, status, errMsg); err != nil {
			log.Warn("update job status", zap.Error(err))
		}
		job.Status = status
		job.Error = errMsg
		job.UpdatedAt = time.Now().UTC()
		r.cfg.Hub.BroadcastJob(&job)
	}

	setStatus(store.JobStatusRunning, "")

	run.OnProgress = func(p types.Progress) {
		if err := st.UpdateJobProgress(ctx, job.ID, p.Fraction, p.Message); err != nil {
			log.Warn("update job progress", zap.Error(err))
		}
		job.Progress = p.Fraction
		job.Message = p.Message
		job.UpdatedAt = time.Now().UTC()
		r.cfg.Hub.BroadcastJob(&job)
	}
	run.OnLog = func(line string) {
		r.cfg.Hub.BroadcastLog(job.ID, line)
	}
	run.Logf = log.Sugar().Infof

	log.Info("job started", zap.String("mode", string(run.Mode)), zap.String("input", job.Input))
	artifact, err := pipeline.Run(ctx, run)
	switch {
	case err == nil:
		if err := st.FinishJob(context.Background(), job.ID, artifact); err != nil {
			log.Warn("finish job", zap.Error(err))
		}
		job.Status = store.JobStatusSucceeded
		job.Progress = 1
		job.Artifact = artifact
		job.Error = ""
		job.UpdatedAt = time.Now().UTC()
		r.cfg.Hub.BroadcastJob(&job)
		log.Info("job succeeded", zap.String("artifact", artifact))
	case errors.Is(err, context.Canceled):
		setStatus(store.JobStatusCanceled, "canceled")
		log.Info("job canceled")
	default:
		setStatus(store.JobStatusFailed, err.Error())
		log.Warn("job failed", zap.Error(err))
	}
}
