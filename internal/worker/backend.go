package worker

import (
	"context"
	"fmt"
	"strings"
)

// Backend loads a model file into a Session. Load may block for minutes.
type Backend interface {
	Load(ctx context.Context, modelPath string) (Session, error)
}

// Session is a loaded model. Generate is never called concurrently on the
// same Session; the Worker serializes calls.
type Session interface {
	Generate(ctx context.Context, prompt string, p Params) (string, error)
	Close() error
}

// BackendOptions are the load-time knobs shared by every backend.
type BackendOptions struct {
	CtxSize   int
	GPULayers int
	Threads   int
}

// NewBackend returns the backend registered under name.
func NewBackend(name string, opts BackendOptions) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "llama":
		return newLlamaBackend(opts), nil
	case "echo":
		return EchoBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want llama or echo)", name)
	}
}
