//go:build llama

package worker

import (
	"context"
	"errors"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
)

type llamaBackend struct {
	opts BackendOptions
}

func newLlamaBackend(opts BackendOptions) Backend { return &llamaBackend{opts: opts} }

func (b *llamaBackend) Load(ctx context.Context, modelPath string) (Session, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	mo := []llama.ModelOption{llama.SetContext(b.opts.CtxSize)}
	if b.opts.GPULayers != 0 {
		mo = append(mo, llama.SetGPULayers(b.opts.GPULayers))
	}
	// llama.New cannot be interrupted; ctx is only checked before the load.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := llama.New(modelPath, mo...)
	if err != nil {
		return nil, err
	}
	return &llamaSession{model: m, threads: b.opts.Threads}, nil
}

type llamaSession struct {
	model   *llama.LLama
	threads int
}

func (s *llamaSession) Generate(ctx context.Context, prompt string, p Params) (string, error) {
	if s.model == nil {
		return "", errors.New("llama model not initialized")
	}
	// Returning false from the callback stops prediction.
	s.model.SetTokenCallback(func(string) bool { return ctx.Err() == nil })

	text, err := s.model.Predict(prompt, predictOptions(p, s.threads)...)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

func (s *llamaSession) Close() error {
	if s.model != nil {
		s.model.Free()
		s.model = nil
	}
	return nil
}

func predictOptions(p Params, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(max(1, p.MaxTokens)),
		llama.SetTopP(positive32(p.TopP, llama.DefaultOptions.TopP)),
		llama.SetTemperature(temperature32(p.Temperature, llama.DefaultOptions.Temperature)),
		llama.SetPenalty(positive32(p.RepeatPenalty, llama.DefaultOptions.Penalty)),
	}
	if threads > 0 {
		po = append(po, llama.SetThreads(threads))
	}
	return po
}

func positive32(v float64, def float32) float32 {
	if v > 0 {
		return float32(v)
	}
	return def
}
