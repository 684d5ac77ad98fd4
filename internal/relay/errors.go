package relay

import (
	"errors"
	"fmt"
)

// Kind classifies why a relay did not produce a worker response.
type Kind int

const (
	// The model has no registered worker. No network call was made.
	KindUnknownModel Kind = iota + 1
	// The worker did not answer within the relay timeout.
	KindTimeout
	// The worker could not be reached (connection refused, reset, ...).
	KindUnavailable
	// The worker answered with something that is not a JSON object.
	KindInvalidResponse
)

func (k Kind) String() string {
	switch k {
	case KindUnknownModel:
		return "unknown_model"
	case KindTimeout:
		return "timeout"
	case KindUnavailable:
		return "unavailable"
	case KindInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// relayError carries the kind and the model; Error() is the caller-visible text.
type relayError struct {
	kind  Kind
	model string
	err   error
}

func (e relayError) Error() string {
	switch e.kind {
	case KindUnknownModel:
		return "Unknown model: " + e.model
	case KindTimeout:
		return fmt.Sprintf("Model %s timed out while generating response.", e.model)
	case KindUnavailable:
		return fmt.Sprintf("Model %s is unavailable: %v", e.model, e.err)
	case KindInvalidResponse:
		return fmt.Sprintf("Model %s returned an invalid response.", e.model)
	default:
		return fmt.Sprintf("Model %s: %v", e.model, e.err)
	}
}

func (e relayError) Unwrap() error { return e.err }

// KindOf returns the relay error kind of err, if it is one.
func KindOf(err error) (Kind, bool) {
	var re relayError
	if errors.As(err, &re) {
		return re.kind, true
	}
	return 0, false
}

// IsUnknownModel reports whether err means the model has no worker.
func IsUnknownModel(err error) bool { k, ok := KindOf(err); return ok && k == KindUnknownModel }

// IsTimeout reports whether err is an upstream generation timeout.
func IsTimeout(err error) bool { k, ok := KindOf(err); return ok && k == KindTimeout }

// IsUnavailable reports whether err is a transport failure reaching the worker.
func IsUnavailable(err error) bool { k, ok := KindOf(err); return ok && k == KindUnavailable }
