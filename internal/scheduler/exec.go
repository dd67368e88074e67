package scheduler

import (
	"context"
	"errors"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/ottohq/otto/internal/state"
	"github.com/ottohq/otto/internal/task"
)

// gracePeriod is the fixed interval between a graceful terminate and a
// force-kill, for both timeout expiry and run-wide cancellation.
const gracePeriod = 5 * time.Second

// runTask executes one task's action under a POSIX shell and reports
// its terminal outcome on r.resultsCh. It has no return value: every
// path, including internal setup failures, ends in exactly one send.
func (r *runState) runTask(name string, t *task.Task) {
	s := r.scheduler
	rowID := r.taskRowID[name]

	now := time.Now()

	scriptPath, err := s.ws.WriteScript(name, t.Action)
	if err != nil {
		paths := taskPaths{
			stdout: filepath.Join(s.ws.RunDir(), "tasks", name, "stdout"),
			stderr: filepath.Join(s.ws.RunDir(), "tasks", name, "stderr"),
		}
		status, reason, _ := r.finishTask(name, scriptPath, paths, task.StatusFailed, "setup: "+err.Error(), -1, now)
		r.resultsCh <- outcome{name: name, status: status, reason: reason}
		return
	}

	if err := s.store.UpdateTaskStatus(r.runCtx, rowID, state.TaskRunning, 0, now.Unix(), 0, 0, scriptPath, "", ""); err != nil {
		log.Printf("scheduler: persisting running status for task %q: %v", name, err)
	}
	if err := s.ws.WriteTaskStatus(name, "running"); err != nil {
		log.Printf("scheduler: writing running status file for task %q: %v", name, err)
	}

	status, reason, _ := r.execute(name, t, scriptPath, now)

	r.resultsCh <- outcome{name: name, status: status, reason: reason}
}

// execute spawns the task's already-written script and waits for it to
// terminate or be cut off by timeout or run-wide cancellation. It
// persists the terminal transition before returning, per the scheduler's
// "transition is durable before it is observed" contract.
func (r *runState) execute(name string, t *task.Task, scriptPath string, startedAt time.Time) (status task.Status, reason string, exitCode int) {
	s := r.scheduler
	paths := taskPaths{
		stdout: filepath.Join(s.ws.RunDir(), "tasks", name, "stdout"),
		stderr: filepath.Join(s.ws.RunDir(), "tasks", name, "stderr"),
	}

	stdout, err := s.ws.TaskStdout(name)
	if err != nil {
		return r.finishTask(name, scriptPath, paths, task.StatusFailed, "setup: "+err.Error(), -1, startedAt)
	}
	defer stdout.Close()

	stderr, err := s.ws.TaskStderr(name)
	if err != nil {
		return r.finishTask(name, scriptPath, paths, task.StatusFailed, "setup: "+err.Error(), -1, startedAt)
	}
	defer stderr.Close()

	taskCtx, cancelTimeout := context.WithTimeout(r.runCtx, t.EffectiveTimeout())
	defer cancelTimeout()

	workDir := t.WorkingDir
	if workDir == "" {
		workDir = s.ws.RunDir()
	}

	cmd := exec.CommandContext(taskCtx, "sh", "-c", scriptPath)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), task.FoldedEnv(t)...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = gracePeriod

	runErr := cmd.Run()

	switch {
	case runErr == nil:
		return r.finishTask(name, scriptPath, paths, task.StatusCompleted, "", 0, startedAt)

	case r.runCtx.Err() != nil:
		// Run-wide cancellation fired first: a sibling failed and the
		// coordinator broadcast a cancel before this task's own timeout
		// could have expired.
		return r.finishTask(name, scriptPath, paths, task.StatusFailed, "cancelled", -1, startedAt)

	case errors.Is(taskCtx.Err(), context.DeadlineExceeded):
		return r.finishTask(name, scriptPath, paths, task.StatusFailed, "timeout", -1, startedAt)

	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			code := exitErr.ExitCode()
			return r.finishTask(name, scriptPath, paths, task.StatusFailed, exitReason(code), code, startedAt)
		}
		return r.finishTask(name, scriptPath, paths, task.StatusFailed, runErr.Error(), -1, startedAt)
	}
}

// taskPaths are the on-disk artifact paths recorded on the TaskRun row
// once a task finishes, for external readers of the database.
type taskPaths struct {
	stdout, stderr string
}

func exitReason(code int) string {
	if code < 0 {
		return "signaled"
	}
	return "exit code " + strconv.Itoa(code)
}

// finishTask persists the terminal status/exit_code/duration to both the
// state store and the workspace's per-task files, then returns the
// classification the coordinator needs.
//
// Persistence uses a detached context rather than r.runCtx: a task that
// failed its own timeout, or that is finishing after a sibling's
// cancellation, must still be able to record its own terminal row even
// though r.runCtx is already Done.
func (r *runState) finishTask(name, scriptPath string, paths taskPaths, status task.Status, reason string, exitCode int, startedAt time.Time) (task.Status, string, int) {
	s := r.scheduler
	ended := time.Now()
	duration := ended.Sub(startedAt).Seconds()

	storeStatus := state.TaskCompleted
	if status == task.StatusFailed {
		storeStatus = state.TaskFailed
	}

	if err := s.store.UpdateTaskStatus(context.Background(), r.taskRowID[name], storeStatus,
		int64(exitCode), startedAt.Unix(), ended.Unix(), duration, scriptPath, paths.stdout, paths.stderr); err != nil {
		log.Printf("scheduler: persisting terminal status for task %q: %v", name, err)
	}
	if err := s.ws.WriteTaskExitCode(name, exitCode); err != nil {
		log.Printf("scheduler: writing exit code for task %q: %v", name, err)
	}
	if err := s.ws.WriteTaskStatus(name, string(status)); err != nil {
		log.Printf("scheduler: writing terminal status file for task %q: %v", name, err)
	}

	return status, reason, exitCode
}
