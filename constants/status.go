package constants

// RunStatus is the canonical status for rows in match_runs.
type RunStatus string

// Stable values (store these exact strings in DB).
const (
	RunStatusQueued    RunStatus = "QUEUED"    // accepted, waiting for a worker
	RunStatusRunning   RunStatus = "RUNNING"   // matrix build in progress
	RunStatusCompleted RunStatus = "COMPLETED" // matrix built and persisted
	RunStatusFailed    RunStatus = "FAILED"    // terminal failure
)
