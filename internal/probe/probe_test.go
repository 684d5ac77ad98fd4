package probe

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// workerStub serves /health with the given handler and returns its port.
func workerStub(t *testing.T, h http.HandlerFunc) int {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	_, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil { t.Fatalf("split: %v", err) }
	port, _ := strconv.Atoi(portStr)
	return port
}

// closedPort returns a loopback port with nothing listening on it.
func closedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil { t.Fatalf("listen: %v", err) }
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()
	return port
}

func fast(opts Options) *Prober {
	if opts.Interval == 0 { opts.Interval = 10 * time.Millisecond }
	if opts.RequestTimeout == 0 { opts.RequestTimeout = 200 * time.Millisecond }
	return New(opts)
}

func TestCheckReasons(t *testing.T) {
	cases := []struct {
		name string
		h    http.HandlerFunc
		want Reason
	}{
		{"ready", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `{"model_loaded":true}`) }, ReasonReady},
		{"not loaded", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `{"model_loaded":false}`) }, ReasonNotLoaded},
		{"missing field", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `{}`) }, ReasonMalformed},
		{"garbage", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `<html>`) }, ReasonMalformed},
		{"500", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError); fmt.Fprint(w, `{"model_loaded":true}`) }, ReasonBadStatus},
		{"slow", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(time.Second):
			case <-r.Context().Done():
			}
		}, ReasonTimeout},
	}
	for _, tc := range cases {
		port := workerStub(t, tc.h)
		res := fast(Options{RequestTimeout: 50 * time.Millisecond}).Check(context.Background(), port)
		if res.Reason != tc.want {
			t.Fatalf("%s: reason=%s want %s (err=%v)", tc.name, res.Reason, tc.want, res.Err)
		}
		if res.Ready != (tc.want == ReasonReady) {
			t.Fatalf("%s: ready=%v", tc.name, res.Ready)
		}
		if !res.Ready && res.Err == nil {
			t.Fatalf("%s: expected an error for not-ready result", tc.name)
		}
	}
}

func TestCheckUnreachable(t *testing.T) {
	res := fast(Options{}).Check(context.Background(), closedPort(t))
	if res.Ready || res.Reason != ReasonUnreachable {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCheckCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := fast(Options{}).Check(ctx, closedPort(t))
	if res.Reason != ReasonCanceled {
		t.Fatalf("reason=%s", res.Reason)
	}
}

func TestWaitForReady_BecomesReady(t *testing.T) {
	var polls atomic.Int32
	port := workerStub(t, func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 3 {
			fmt.Fprint(w, `{"model_loaded":false}`)
			return
		}
		fmt.Fprint(w, `{"model_loaded":true}`)
	})
	res := fast(Options{}).WaitForReady(context.Background(), port, 2*time.Second)
	if !res.Ready || res.Polls != 3 {
		t.Fatalf("expected ready on third poll, got %+v", res)
	}
	if polls.Load() != 3 {
		t.Fatalf("worker polled %d times after ready", polls.Load())
	}
}

func TestWaitForReady_TimeoutOnClosedPort(t *testing.T) {
	start := time.Now()
	res := fast(Options{}).WaitForReady(context.Background(), closedPort(t), 100*time.Millisecond)
	if res.Ready {
		t.Fatalf("expected not ready")
	}
	if res.Reason != ReasonUnreachable || res.Err == nil || !strings.Contains(res.Err.Error(), "not ready after") {
		t.Fatalf("unexpected result: %+v", res)
	}
	if d := time.Since(start); d > 2*time.Second {
		t.Fatalf("wait overran its timeout: %s", d)
	}
	if res.Polls < 2 {
		t.Fatalf("expected several polls, got %d", res.Polls)
	}
}

func TestWaitForReady_ExitCause(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel(fmt.Errorf("%w: exit status 1", ErrExited))
	}()
	res := fast(Options{}).WaitForReady(ctx, closedPort(t), 5*time.Second)
	if res.Reason != ReasonExited {
		t.Fatalf("reason=%s err=%v", res.Reason, res.Err)
	}
}

func TestWaitForReady_LogsProgressEveryFourthPoll(t *testing.T) {
	var buf bytes.Buffer
	p := fast(Options{Logger: zerolog.New(&buf).Level(zerolog.InfoLevel)})
	port := workerStub(t, func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `{"model_loaded":false}`) })
	res := p.WaitForReady(context.Background(), port, 95*time.Millisecond)
	if res.Ready {
		t.Fatalf("expected not ready")
	}
	lines := strings.Count(buf.String(), "waiting for model to become ready")
	if want := res.Polls / 4; lines != want {
		t.Fatalf("progress lines=%d, polls=%d, want %d", lines, res.Polls, want)
	}
}

func TestReasonString(t *testing.T) {
	if ReasonExited.String() != "exited" || Reason(99).String() != "unknown" {
		t.Fatalf("unexpected strings")
	}
}
