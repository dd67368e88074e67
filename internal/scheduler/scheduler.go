// Package scheduler drives a validated task set to completion: a
// bounded-parallel coordinator admits ready tasks, spawns each as a
// subprocess, and persists every transition to the state store and the
// workspace before the coordinator observes it.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/ottohq/otto/internal/state"
	"github.com/ottohq/otto/internal/task"
	"github.com/ottohq/otto/internal/workspace"
)

// Options configures a Scheduler's concurrency caps.
type Options struct {
	// JobLimit bounds the total number of concurrently running tasks.
	// Zero means "use the host CPU count".
	JobLimit int
	// IOClassLimit bounds concurrently running IO-bound tasks
	// specifically, on top of JobLimit. Zero means "use the host CPU
	// count". IO-bound is the only class with a second cap; CPU-bound
	// and network-bound tasks are subject to JobLimit alone.
	IOClassLimit int
}

func (o Options) resolve() Options {
	if o.JobLimit <= 0 {
		o.JobLimit = runtime.NumCPU()
	}
	if o.IOClassLimit <= 0 {
		o.IOClassLimit = runtime.NumCPU()
	}
	return o
}

// ProjectInfo identifies the project a run belongs to, for the state
// store's project row.
type ProjectInfo struct {
	Hash         string
	OttofilePath string
}

// Scheduler drives one task set to completion against a workspace and a
// state store. A Scheduler is single-use: call ExecuteAll once.
type Scheduler struct {
	tasks   *task.Set
	ws      *workspace.Workspace
	store   *state.Store
	project ProjectInfo
	execCtx workspace.ExecutionContext
	opts    Options
}

// New constructs a Scheduler. Construction performs no additional
// validation beyond what task.NewSet already guaranteed about tasks;
// the caller is expected to have built tasks via task.NewSet.
func New(tasks *task.Set, ws *workspace.Workspace, store *state.Store, project ProjectInfo, execCtx workspace.ExecutionContext, opts Options) (*Scheduler, error) {
	if tasks == nil {
		return nil, fmt.Errorf("scheduler: nil task set")
	}
	if ws == nil {
		return nil, fmt.Errorf("scheduler: nil workspace")
	}
	if store == nil {
		return nil, fmt.Errorf("scheduler: nil state store")
	}
	return &Scheduler{
		tasks:   tasks,
		ws:      ws,
		store:   store,
		project: project,
		execCtx: execCtx,
		opts:    opts.resolve(),
	}, nil
}

// Result is the outcome of a fully-drained ExecuteAll call.
type Result struct {
	RunID           int64
	ExternalID      string
	Status          state.RunStatus
	DurationSeconds float64
	SizeBytes       int64
	Completed       []string
	Skipped         []string
}

// ExecuteAll runs every task in the set to completion, in dependency
// order, bounded by the Scheduler's concurrency caps. It returns a
// *RunFailure (wrapped as a plain error) if any task failed or was
// skipped; the Result is populated on both success and failure paths.
func (s *Scheduler) ExecuteAll(ctx context.Context) (Result, error) {
	start := time.Now()

	if err := s.ws.Init(); err != nil {
		return Result{}, fmt.Errorf("scheduler: workspace init: %w", err)
	}
	if err := s.ws.SaveExecutionContext(s.execCtx); err != nil {
		return Result{}, fmt.Errorf("scheduler: saving execution context: %w", err)
	}

	projectID, err := s.store.UpsertProject(ctx, s.project.Hash, s.project.OttofilePath, s.execCtx.Started)
	if err != nil {
		return Result{}, fmt.Errorf("scheduler: upserting project: %w", err)
	}

	runID, externalID, err := s.store.InsertRun(ctx, state.Run{
		ProjectID:    projectID,
		Timestamp:    s.execCtx.Started,
		Status:       state.RunRunning,
		OttofilePath: s.execCtx.Ottofile,
		Cwd:          s.execCtx.Cwd,
		User:         s.execCtx.User,
		Hostname:     s.execCtx.Hostname,
		Args:         joinArgs(s.execCtx.Args),
	})
	if err != nil {
		return Result{}, fmt.Errorf("scheduler: inserting run: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &runState{
		scheduler:  s,
		runID:      runID,
		externalID: externalID,
		runCtx:     runCtx,
		cancel:     cancel,
		taskRowID:  make(map[string]int64, s.tasks.Len()),
		remaining:  make(map[string]int, s.tasks.Len()),
	}

	if s.tasks.Len() == 0 {
		cancel()
		return s.finalize(ctx, run, start, nil, nil)
	}

	if err := run.insertPendingTasks(ctx); err != nil {
		cancel()
		return Result{}, fmt.Errorf("scheduler: inserting task rows: %w", err)
	}

	completed, skipped, failures := run.drain()

	res, finalizeErr := s.finalize(ctx, run, start, completed, skipped)
	if finalizeErr != nil {
		return res, finalizeErr
	}
	if len(failures) > 0 || len(skipped) > 0 {
		return res, &RunFailure{Failures: failures, Skipped: skipped}
	}
	return res, nil
}

func (s *Scheduler) finalize(ctx context.Context, run *runState, start time.Time, completed, skipped []string) (Result, error) {
	duration := time.Since(start).Seconds()
	if s.tasks.Len() == 0 {
		// An empty task set does no work: its run is stamped with zero duration.
		duration = 0
	}

	size, err := s.ws.Size()
	if err != nil {
		size = 0
	}

	status := state.RunSuccess
	if len(run.failures) > 0 || len(skipped) > 0 {
		status = state.RunFailed
	}

	if err := s.store.UpdateRunStatus(ctx, run.runID, status, duration, size, time.Now().Unix()); err != nil {
		return Result{}, fmt.Errorf("scheduler: finalizing run: %w", err)
	}
	finalizeWord := "success"
	if status == state.RunFailed {
		finalizeWord = "failed"
	}
	if err := s.ws.Finalize(finalizeWord); err != nil {
		return Result{}, fmt.Errorf("scheduler: finalizing workspace: %w", err)
	}

	return Result{
		RunID:           run.runID,
		ExternalID:      run.externalID,
		Status:          status,
		DurationSeconds: duration,
		SizeBytes:       size,
		Completed:       completed,
		Skipped:         skipped,
	}, nil
}

// joinArgs serializes argv as a JSON array for the run's args column.
// args is always plain strings, so Marshal cannot fail; a nil argv is
// still written as "[]", not JSON null.
func joinArgs(args []string) string {
	if args == nil {
		args = []string{}
	}
	data, _ := json.Marshal(args)
	return string(data)
}
