package server

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cwbudde/gonlopt/internal/opt"
	"github.com/cwbudde/gonlopt/internal/store"
)

// progressInterval throttles SSE progress events
var progressInterval = 500 * time.Millisecond

// traceStore is implemented by stores that keep evaluation traces on disk
type traceStore interface {
	BaseDir() string
}

// runJob executes an optimization job in the background.
// If runStore is not nil the finished run is saved there, and its evaluation
// trace is recorded when the job's TraceEvery is positive.
func runJob(ctx context.Context, jm *JobManager, runStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}
	cfg := job.Config
	logger := slog.Default().With("job_id", jobID)

	p, err := cfg.BuildProblem()
	if err != nil {
		markJobFailed(jm, runStore, jobID, err)
		return err
	}
	optimizer, err := cfg.BuildOptimizer(logger)
	if err != nil {
		markJobFailed(jm, runStore, jobID, err)
		return err
	}

	if err := jm.UpdateJob(jobID, func(j *Job) { j.State = StateRunning }); err != nil {
		return err
	}
	logger.Info("Starting job", "problem", p.Name, "optimizer", optimizer.Name())

	var trace *store.TraceWriter
	if ts, ok := runStore.(traceStore); ok && cfg.TraceEvery > 0 {
		trace, err = store.NewTraceWriter(ts.BaseDir(), jobID, cfg.TraceEvery)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		}
	}

	observe := func(e opt.Evaluation) {
		jm.UpdateJob(jobID, func(j *Job) {
			j.Evaluations = e.Index
			if !math.IsNaN(e.Best) && !math.IsInf(e.Best, 0) {
				j.Best = e.Best
			}
		})
		if trace != nil {
			trace.Observe(e)
		}
	}

	progressDone := make(chan struct{})
	go monitorProgress(ctx, jm, jobID, progressDone)

	res, runErr := optimizer.Run(ctx, p, observe)
	close(progressDone)

	if trace != nil {
		if err := trace.Close(); err != nil {
			logger.Warn("Failed to write trace", "error", err)
		}
	}

	if runErr != nil {
		if ctx.Err() != nil {
			markJobCancelled(jm, runStore, jobID, runErr)
			return ctx.Err()
		}
		markJobFailed(jm, runStore, jobID, runErr)
		return runErr
	}

	saveRun(runStore, store.NewRunRecord(jobID, cfg, res, nil, false))
	final, err := jm.finish(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Status = res.Status
		j.Algorithm = res.Algorithm
		j.X = res.X
		j.Value = res.Value
		j.Evaluations = res.Evaluations
		if !math.IsNaN(res.Value) && !math.IsInf(res.Value, 0) {
			j.Best = res.Value
		}
	})
	if err != nil {
		return err
	}

	logger.Info("Job completed",
		"status", res.Status,
		"value", res.Value,
		"evaluations", res.Evaluations,
		"elapsed", res.Elapsed,
	)
	jm.broadcaster.Broadcast(newProgressEvent(final))
	return nil
}

// monitorProgress periodically broadcasts progress events during optimization
func monitorProgress(ctx context.Context, jm *JobManager, jobID string, done chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, exists := jm.GetJob(jobID)
			if !exists {
				return
			}
			jm.broadcaster.Broadcast(newProgressEvent(job))
		}
	}
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, runStore store.Store, jobID string, err error) {
	endJob(jm, runStore, jobID, StateFailed, err)
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, runStore store.Store, jobID string, err error) {
	endJob(jm, runStore, jobID, StateCancelled, err)
	slog.Info("Job cancelled", "job_id", jobID)
}

// endJob records a run that produced no result, then publishes the final
// state. The record is saved first so a finished job is always in the store.
func endJob(jm *JobManager, runStore store.Store, jobID string, state JobState, err error) {
	job, ok := jm.GetJob(jobID)
	if !ok {
		return
	}
	saveRun(runStore, store.NewRunRecord(jobID, job.Config, nil, err, state == StateCancelled))

	final, ferr := jm.finish(jobID, func(j *Job) {
		j.State = state
		j.Error = err.Error()
	})
	if ferr != nil {
		return
	}
	jm.broadcaster.Broadcast(newProgressEvent(final))
}

// saveRun persists a finished run; persistence failures are logged only
func saveRun(runStore store.Store, record *store.RunRecord) {
	if runStore == nil {
		return
	}
	if err := runStore.SaveRun(record); err != nil {
		slog.Error("Failed to save run", "run_id", record.ID, "error", err)
		return
	}
	slog.Debug("Run saved", "run_id", record.ID, "status", record.Status)
}
