package worker

import "errors"

// NotLoadedMessage is returned to callers that invoke before the model loaded.
const NotLoadedMessage = "Model not loaded"

type notLoadedError struct{}

func (notLoadedError) Error() string { return NotLoadedMessage }

// IsNotLoaded reports whether err means the model is not (or not yet) loaded.
func IsNotLoaded(err error) bool {
	var e notLoadedError
	return errors.As(err, &e)
}

// dependencyUnavailableError signals a backend compiled out of this binary.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}

type panicError struct{ v any }

func (e panicError) Error() string { return "generation panicked: " + toString(e.v) }

// IsPanic reports whether err came from a recovered backend panic.
func IsPanic(err error) bool {
	var e panicError
	return errors.As(err, &e)
}
