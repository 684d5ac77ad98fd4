package supervisor

import (
	"errors"
	"fmt"

	"modelgate/internal/probe"
)

// launchError reports that a worker process could not be started.
type launchError struct {
	model string
	err   error
}

func (e launchError) Error() string { return fmt.Sprintf("launch %s: %v", e.model, e.err) }
func (e launchError) Unwrap() error { return e.err }

// IsLaunchFailure reports whether err came from starting a worker process.
func IsLaunchFailure(err error) bool {
	var le launchError
	return errors.As(err, &le)
}

// notReadyError reports that a launched worker never proved it loaded its model.
type notReadyError struct {
	model string
	res   probe.Result
}

func (e notReadyError) Error() string {
	return fmt.Sprintf("model %s not ready after %d polls (%s): %v", e.model, e.res.Polls, e.res.Reason, e.res.Err)
}
func (e notReadyError) Unwrap() error { return e.res.Err }

// IsNotReady reports whether err is a readiness failure.
func IsNotReady(err error) bool {
	var nr notReadyError
	return errors.As(err, &nr)
}

// duplicateHandleError is returned by Registry.Put for a name already present.
type duplicateHandleError struct{ model string }

func (e duplicateHandleError) Error() string { return "worker already registered: " + e.model }

// IsDuplicateHandle reports whether err is a duplicate registry entry.
func IsDuplicateHandle(err error) bool {
	var de duplicateHandleError
	return errors.As(err, &de)
}
