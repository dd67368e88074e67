package scheduler

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ottohq/otto/internal/state"
	"github.com/ottohq/otto/internal/task"
)

// outcome is one worker's report back to the coordinator — the only
// form of intra-process coordination a worker goroutine performs.
type outcome struct {
	name   string
	status task.Status
	reason string
}

// runState holds one ExecuteAll invocation's mutable scheduling state.
// Every field below is written only from the coordinator goroutine
// (drain's loop), so none of it needs its own lock. Workers only read
// scheduler, runCtx and taskRowID, which are fixed before the first
// worker starts, and report back exclusively over resultsCh.
type runState struct {
	scheduler  *Scheduler
	runID      int64
	externalID string

	runCtx context.Context
	cancel context.CancelFunc

	taskRowID map[string]int64
	remaining map[string]int
	terminal  map[string]bool

	ready     []string
	active    int
	ioActive  int
	resultsCh chan outcome

	// workers tracks every admitted task's goroutine so drain can confirm
	// they have all returned before reporting the run finished — runTask
	// itself never returns an error, so this never aborts the group early.
	workers *errgroup.Group

	completed []string
	skipped   []string
	failures  []TaskFailure
}

// insertPendingTasks creates a Pending TaskRun row for every task in the
// set and seeds the initial ready queue with tasks that have no
// dependencies, in the caller's original order.
func (r *runState) insertPendingTasks(ctx context.Context) error {
	s := r.scheduler
	for _, name := range s.tasks.Names() {
		t := s.tasks.Get(name)
		rowID, err := s.store.InsertTask(ctx, state.TaskRun{
			RunID:      r.runID,
			Name:       name,
			Status:     state.TaskPending,
			ScriptHash: task.ScriptHash(t.Action),
		})
		if err != nil {
			return err
		}
		r.taskRowID[name] = rowID
		r.remaining[name] = len(t.TaskDeps)
		if r.remaining[name] == 0 {
			r.ready = append(r.ready, name)
		}
	}
	return nil
}

// drain runs the execute-all loop to completion: admit while slots and
// ready tasks allow, then wait for the next worker report, until no
// task is ready and none is running.
func (r *runState) drain() (completed, skipped []string, failures []TaskFailure) {
	r.terminal = make(map[string]bool, len(r.remaining))
	r.resultsCh = make(chan outcome)
	r.workers = &errgroup.Group{}
	defer r.cancel()

	for !r.isDone() {
		r.schedule()
		if r.isDone() {
			break
		}
		r.handleOutcome(<-r.resultsCh)
	}
	r.workers.Wait() // every admitted task has already reported; this just reaps goroutines

	return r.completed, r.skipped, r.failures
}

func (r *runState) isDone() bool {
	return r.active == 0 && len(r.ready) == 0
}

// schedule admits as many ready tasks as the global job limit and the
// per-class IO cap allow. A task blocked only by the IO cap doesn't
// block tasks behind it in the ready queue — the coordinator keeps
// admitting whatever it can rather than idling slots.
func (r *runState) schedule() {
	s := r.scheduler
	i := 0
	for i < len(r.ready) && r.active < s.opts.JobLimit {
		name := r.ready[i]
		t := s.tasks.Get(name)

		if t.Type == task.ClassIOBound && r.ioActive >= s.opts.IOClassLimit {
			i++
			continue
		}

		r.ready = append(r.ready[:i], r.ready[i+1:]...)
		r.active++
		if t.Type == task.ClassIOBound {
			r.ioActive++
		}
		r.workers.Go(func() error {
			r.runTask(name, t)
			return nil
		})
	}
}

func (r *runState) handleOutcome(o outcome) {
	s := r.scheduler
	r.active--
	if s.tasks.Get(o.name).Type == task.ClassIOBound {
		r.ioActive--
	}
	r.terminal[o.name] = true

	switch o.status {
	case task.StatusCompleted:
		r.completed = append(r.completed, o.name)
		for _, dep := range s.tasks.Dependents(o.name) {
			if r.terminal[dep] {
				continue
			}
			r.remaining[dep]--
			if r.remaining[dep] == 0 {
				r.ready = append(r.ready, dep)
			}
		}

	case task.StatusFailed:
		r.failures = append(r.failures, TaskFailure{Name: o.name, Reason: o.reason})
		r.cancel()

		newlySkipped := r.skipSuccessors(o.name)
		if len(newlySkipped) > 0 {
			filtered := r.ready[:0]
			for _, n := range r.ready {
				if !r.terminal[n] {
					filtered = append(filtered, n)
				}
			}
			r.ready = filtered
			for _, n := range newlySkipped {
				r.markSkipped(n)
			}
		}
	}
}

// skipSuccessors walks every transitive successor of name (BFS over
// Dependents) not already terminal, marks it terminal, and returns the
// names in discovery order.
func (r *runState) skipSuccessors(name string) []string {
	s := r.scheduler
	var newlySkipped []string
	queue := []string{name}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range s.tasks.Dependents(cur) {
			if r.terminal[dep] {
				continue
			}
			r.terminal[dep] = true
			newlySkipped = append(newlySkipped, dep)
			queue = append(queue, dep)
		}
	}
	return newlySkipped
}

// markSkipped persists a Skipped transition. Persistence failures here
// are logged and suppressed rather than fatal — the run must still be
// able to finalize on disk per the core's error-handling policy. Uses a
// detached context: r.runCtx is already cancelled by the time a skip is
// recorded (cancellation is what triggered the skip in the first place).
func (r *runState) markSkipped(name string) {
	r.skipped = append(r.skipped, name)
	s := r.scheduler

	if err := s.store.UpdateTaskStatus(context.Background(), r.taskRowID[name], state.TaskSkipped,
		0, 0, time.Now().Unix(), 0, "", "", ""); err != nil {
		log.Printf("scheduler: persisting skipped status for task %q: %v", name, err)
	}
	if err := s.ws.WriteTaskStatus(name, "skipped"); err != nil {
		log.Printf("scheduler: writing skipped status file for task %q: %v", name, err)
	}
}
