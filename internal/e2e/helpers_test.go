package e2e

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"modelgate/internal/config"
	"modelgate/internal/gateway"
	"modelgate/internal/httpapi"
	"modelgate/internal/registry"
	"modelgate/internal/supervisor"
	"modelgate/internal/worker"
)

// createTempModelsDir creates a temporary directory populated with small .gguf files.
func createTempModelsDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte("gguf"), 0o644); err != nil {
			t.Fatalf("write temp model %s: %v", p, err)
		}
	}
	return dir
}

// freePortBase returns a port p such that p..p+n-1 were free a moment ago.
func freePortBase(t *testing.T, n int) int {
	t.Helper()
	for attempt := 0; attempt < 20; attempt++ {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		base := l.Addr().(*net.TCPAddr).Port
		_ = l.Close()
		ok := true
		for i := 1; i < n; i++ {
			c, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(base+i)))
			if err != nil {
				ok = false
				break
			}
			_ = c.Close()
		}
		if ok {
			return base
		}
	}
	t.Fatalf("no run of %d free ports", n)
	return 0
}

// goroutineLauncher runs workers in-process. newBackend picks the backend
// per model so tests can script failures.
type goroutineLauncher struct {
	newBackend func(spec config.ModelSpec) worker.Backend

	mu    sync.Mutex
	procs []*goroutineProcess
}

type goroutineProcess struct {
	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
	err    error
}

func (p *goroutineProcess) PID() int              { return 0 }
func (p *goroutineProcess) Done() <-chan struct{} { return p.done }
func (p *goroutineProcess) Terminate() error      { p.cancel(); return nil }
func (p *goroutineProcess) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (l *goroutineLauncher) Launch(_ context.Context, spec config.ModelSpec, launchID string) (supervisor.Process, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(spec.Port)))
	if err != nil {
		return nil, err
	}
	w := worker.New(worker.Options{
		Name:      spec.Name,
		ModelPath: spec.Path,
		LaunchID:  launchID,
		Backend:   l.newBackend(spec),
		Defaults:  worker.DefaultParams(config.Default().Generation),
		Logger:    zerolog.Nop(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	p := &goroutineProcess{cancel: cancel, done: make(chan struct{})}
	l.mu.Lock()
	l.procs = append(l.procs, p)
	l.mu.Unlock()
	go func() {
		err := w.Serve(ctx, ln)
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
	}()
	return p, nil
}

func (l *goroutineLauncher) wait() {
	l.mu.Lock()
	procs := append([]*goroutineProcess(nil), l.procs...)
	l.mu.Unlock()
	for _, p := range procs {
		<-p.done
	}
}

// startGateway scans modelsDir, starts every worker and serves the gateway
// mux. Everything is torn down at test cleanup.
func startGateway(t *testing.T, modelsDir string, l *goroutineLauncher) (*httptest.Server, supervisor.Report) {
	t.Helper()
	svc, srv := newGateway(t, modelsDir, l)
	return srv, svc.Start(context.Background())
}

// newGateway serves the gateway mux for modelsDir without starting workers.
func newGateway(t *testing.T, modelsDir string, l *goroutineLauncher) (*gateway.Service, *httptest.Server) {
	t.Helper()
	cfg := config.Default()
	cfg.ModelsDir = modelsDir
	entries, _ := os.ReadDir(modelsDir)
	cfg.PortStart = freePortBase(t, len(entries))
	cfg.ProbeIntervalSeconds = 1
	cfg.StartupTimeoutSeconds = 10
	models, err := registry.Resolve(cfg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	cfg.Models = models
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	svc := gateway.New(cfg, gateway.Options{Logger: zerolog.Nop(), Launcher: l})
	srv := httptest.NewServer(httpapi.NewMux(svc))
	t.Cleanup(func() {
		srv.Close()
		svc.Stop()
		l.wait()
	})
	return svc, srv
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}
