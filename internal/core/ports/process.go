package ports

import (
	"context"
	"time"
)

// ProcessState is the coarse state of the target process as reported by the
// supervisor.
type ProcessState string

const (
	ProcessRunning ProcessState = "running"
	ProcessStopped ProcessState = "stopped"
	ProcessUnknown ProcessState = "unknown"
)

// ProcessInfo is the supervisor's view of one managed process.
type ProcessInfo struct {
	Name        string
	State       ProcessState
	RawState    string
	Description string
	StartedAt   time.Time
	PID         int
}

// ProcessController is the capability interface to the external supervisor.
// It carries no internal state: every method is a remote call.
//
// A Restart that returns nil guarantees the controller observed the process
// leave and re-enter a running state within the deadline. It says nothing
// about the process's internal health; that is the orchestrator's job via the
// HealthProbe.
type ProcessController interface {
	// Status returns the process's current state. Unreachable supervisors
	// yield ProcessUnknown together with domain.ErrSupervisorUnreachable.
	Status(ctx context.Context, name string) (ProcessState, error)

	// Restart stops then starts the process, bounded by timeout. Failures
	// surface as *domain.RestartError.
	Restart(ctx context.Context, name string, timeout time.Duration) error

	// Info returns full process details for the status surface.
	Info(ctx context.Context, name string) (ProcessInfo, error)

	// AllInfo lists every process the supervisor manages.
	AllInfo(ctx context.Context) ([]ProcessInfo, error)

	// TailStderr returns the last length bytes of the process's stderr log.
	TailStderr(ctx context.Context, name string, length int) (string, error)
}

// HealthProbe answers one liveness question about the target process. The
// orchestrator polls it with bounded backoff during the Verifying phase; a
// nil return means healthy.
type HealthProbe interface {
	Probe(ctx context.Context) error
}
