//go:build !llama

package worker

import "context"

// Without the llama build tag the binary is CGO-free and the llama backend
// refuses to load. Use the echo backend for development.
type llamaBackend struct{}

func newLlamaBackend(BackendOptions) Backend { return llamaBackend{} }

func (llamaBackend) Load(context.Context, string) (Session, error) {
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
