//go:build llama

package e2e

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"modelgate/internal/config"
	"modelgate/internal/worker"
	"modelgate/pkg/types"
)

// TestLlama_Haiku prints a real haiku through the gateway using the llama
// backend in-process. Skips unless ~/models/llm holds a .gguf file; only the
// first one found is used.
func TestLlama_Haiku(t *testing.T) {
	home, _ := os.UserHomeDir()
	src := filepath.Join(home, "models", "llm")
	ents, _ := os.ReadDir(src)
	var model string
	for _, e := range ents {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".gguf") {
			model = e.Name()
			break
		}
	}
	if model == "" {
		t.Skip("no GGUF found under ~/models/llm")
	}
	dir := t.TempDir()
	if err := os.Symlink(filepath.Join(src, model), filepath.Join(dir, model)); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	l := &goroutineLauncher{newBackend: func(config.ModelSpec) worker.Backend {
		b, err := worker.NewBackend("llama", worker.BackendOptions{CtxSize: 2048})
		if err != nil {
			t.Fatalf("backend: %v", err)
		}
		return b
	}}
	srv, rep := startGateway(t, dir, l)
	if len(rep.Ready) != 1 {
		t.Fatalf("model did not load: %+v", rep)
	}
	name := strings.TrimSuffix(model, filepath.Ext(model))
	payload, _ := json.Marshal(map[string]any{
		"model":       name,
		"prompt":      "Write a 3-line haiku about the ocean.",
		"max_tokens":  128,
		"temperature": 0.7,
	})
	_, body := httpPostJSON(t, srv.URL+"/generate", payload)
	var gr types.GenerateResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		t.Fatalf("json: %v body=%s", err, body)
	}
	if gr.Error != "" || strings.TrimSpace(gr.Response) == "" {
		t.Fatalf("unexpected response: %s", body)
	}
	t.Logf("haiku:\n%s", gr.Response)
}
