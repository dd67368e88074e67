package scheduler

import "strings"

// TaskFailure records one task's terminal failure, carried on a
// RunFailure in dependency order.
type TaskFailure struct {
	Name   string
	Reason string
}

// RunFailure is the aggregate error ExecuteAll returns when any task
// failed or was skipped. It enumerates failed task names and reasons
// separately from the names that were only skipped as a consequence.
type RunFailure struct {
	Failures []TaskFailure
	Skipped  []string
}

func (e *RunFailure) Error() string {
	var b strings.Builder
	b.WriteString("scheduler: run failed")
	for _, f := range e.Failures {
		b.WriteString(": ")
		b.WriteString(f.Name)
		b.WriteString(" (")
		b.WriteString(f.Reason)
		b.WriteString(")")
	}
	if len(e.Skipped) > 0 {
		b.WriteString("; skipped: ")
		b.WriteString(strings.Join(e.Skipped, ", "))
	}
	return b.String()
}
