package state

// RunStatus is the lifecycle status of a Run row.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// TaskStatus is the lifecycle status of a TaskRun row.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskSkipped   TaskStatus = "skipped"
)

// Project indexes one ottofile's identity and run history.
type Project struct {
	ID           int64
	Hash         string
	OttofilePath string
	FirstSeen    int64
	LastSeen     int64
	RunCount     int64
}

// Run indexes one scheduler invocation.
type Run struct {
	ID              int64
	ProjectID       int64
	Timestamp       int64 // also names the run's on-disk directory
	ExternalID      string // opaque uuid, for log correlation only
	Status          RunStatus
	DurationSeconds float64
	SizeBytes       int64
	OttofilePath    string
	Cwd             string
	User            string
	Hostname        string
	Args            string // caller-serialized argv (e.g. JSON array)
	EndedAt         int64
}

// TaskRun indexes one task's execution within a Run.
type TaskRun struct {
	ID              int64
	RunID           int64
	Name            string
	Status          TaskStatus
	ScriptHash      string
	ExitCode        int64
	StartedAt       int64
	EndedAt         int64
	DurationSeconds float64
	StdoutPath      string
	StderrPath      string
	ScriptPath      string
}
