package worker

import (
	"context"
	"strings"
	"time"

	"modelgate/internal/common/fsutil"
)

// EchoBackend answers every prompt with the prompt itself, truncated to
// MaxTokens whitespace-separated words. It still requires the model file to
// exist so launch failures behave as with a real backend.
type EchoBackend struct {
	// LoadDelay simulates a slow model load.
	LoadDelay time.Duration
}

func (b EchoBackend) Load(ctx context.Context, modelPath string) (Session, error) {
	if _, err := fsutil.ResolveFile(modelPath); err != nil {
		return nil, err
	}
	if b.LoadDelay > 0 {
		select {
		case <-time.After(b.LoadDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return echoSession{}, nil
}

type echoSession struct{}

func (echoSession) Generate(ctx context.Context, prompt string, p Params) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	words := strings.Fields(prompt)
	if p.MaxTokens > 0 && len(words) > p.MaxTokens {
		words = words[:p.MaxTokens]
	}
	return strings.Join(words, " "), nil
}

func (echoSession) Close() error { return nil }
