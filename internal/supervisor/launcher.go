package supervisor

import (
	"context"

	"modelgate/internal/config"
)

// Process is a running worker as seen by the supervisor.
type Process interface {
	PID() int
	// Done is closed when the process has exited.
	Done() <-chan struct{}
	// Err is the exit error once Done is closed, nil before.
	Err() error
	// Terminate asks the process to exit and returns without waiting.
	Terminate() error
}

// Launcher starts a worker for one model. Launch returns once the process is
// running; it does not wait for the model to load.
type Launcher interface {
	Launch(ctx context.Context, spec config.ModelSpec, launchID string) (Process, error)
}
