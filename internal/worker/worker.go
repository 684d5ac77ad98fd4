// Package worker hosts one model behind a small HTTP API.
//
// A Worker starts listening before its model is loaded so that the gateway
// can watch it report model_loaded=false and then true. If the load fails
// the worker stops serving and Run returns the error; the process exits
// non-zero and the gateway sees the exit.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// State is the model lifecycle inside one worker.
type State int

const (
	StateLoading State = iota
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type loadState struct {
	state   State
	session Session
	err     error
}

var (
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelgate",
			Subsystem: "worker",
			Name:      "generations_total",
			Help:      "Generation calls handled by this worker, by outcome",
		},
		[]string{"model", "outcome"},
	)
	generationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "modelgate",
			Subsystem: "worker",
			Name:      "generation_seconds",
			Help:      "Time spent inside the backend per generation",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		},
		[]string{"model"},
	)
	modelLoaded = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "modelgate",
			Subsystem: "worker",
			Name:      "model_loaded",
			Help:      "1 once the model is loaded",
		},
		[]string{"model"},
	)
)

func init() {
	prometheus.MustRegister(generationsTotal, generationSeconds, modelLoaded)
}

// Options configures a Worker.
type Options struct {
	// Name labels logs and metrics; defaults to the model path.
	Name      string
	ModelPath string
	LaunchID  string
	Backend   Backend
	Defaults  Params
	Logger    zerolog.Logger
	// MaxBodyBytes limits the /invoke body; 0 means 1 MiB.
	MaxBodyBytes int64
}

// Worker owns one loaded model and serializes generation on it.
type Worker struct {
	name     string
	path     string
	launchID string
	backend  Backend
	defaults Params
	log      zerolog.Logger
	maxBody  int64

	state atomic.Pointer[loadState]
	// slot admits one generation at a time.
	slot chan struct{}
}

func New(opts Options) *Worker {
	w := &Worker{
		name:     opts.Name,
		path:     opts.ModelPath,
		launchID: opts.LaunchID,
		backend:  opts.Backend,
		defaults: opts.Defaults,
		maxBody:  opts.MaxBodyBytes,
		slot:     make(chan struct{}, 1),
	}
	if w.name == "" {
		w.name = w.path
	}
	if w.maxBody <= 0 {
		w.maxBody = 1 << 20
	}
	w.log = opts.Logger.With().Str("model", w.name).Logger()
	if w.launchID != "" {
		w.log = w.log.With().Str("launch_id", w.launchID).Logger()
	}
	w.state.Store(&loadState{state: StateLoading})
	return w
}

// State returns the current lifecycle state.
func (w *Worker) State() State { return w.state.Load().state }

// Loaded reports whether generation calls can be served.
func (w *Worker) Loaded() bool { return w.State() == StateLoaded }

// Load loads the model through the backend. It may only succeed once.
func (w *Worker) Load(ctx context.Context) error {
	if w.backend == nil {
		err := errors.New("no backend configured")
		w.state.Store(&loadState{state: StateFailed, err: err})
		return err
	}
	start := time.Now()
	w.log.Info().Str("path", w.path).Msg("loading model")
	sess, err := w.backend.Load(ctx, w.path)
	if err != nil {
		err = fmt.Errorf("load model %s: %w", w.path, err)
		w.state.Store(&loadState{state: StateFailed, err: err})
		w.log.Error().Err(err).Msg("model load failed")
		return err
	}
	w.state.Store(&loadState{state: StateLoaded, session: sess})
	modelLoaded.WithLabelValues(w.name).Set(1)
	w.log.Info().Dur("took", time.Since(start).Round(time.Millisecond)).Msg("model loaded")
	return nil
}

// Generate runs one generation. Callers wait for the single in-flight slot
// while ctx allows.
func (w *Worker) Generate(ctx context.Context, prompt string, p Params) (out string, err error) {
	st := w.state.Load()
	if st.state != StateLoaded {
		generationsTotal.WithLabelValues(w.name, "not_loaded").Inc()
		return "", notLoadedError{}
	}
	select {
	case w.slot <- struct{}{}:
	case <-ctx.Done():
		generationsTotal.WithLabelValues(w.name, "canceled").Inc()
		return "", ctx.Err()
	}
	defer func() { <-w.slot }()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = panicError{v: r}
			w.log.Error().Interface("panic", r).Msg("generation panicked")
		}
		generationSeconds.WithLabelValues(w.name).Observe(time.Since(start).Seconds())
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		generationsTotal.WithLabelValues(w.name, outcome).Inc()
	}()
	return st.session.Generate(ctx, prompt, p)
}

// Close releases the loaded model, if any.
func (w *Worker) Close() error {
	st := w.state.Load()
	if st.session == nil {
		return nil
	}
	w.state.Store(&loadState{state: StateFailed, err: errors.New("closed")})
	modelLoaded.WithLabelValues(w.name).Set(0)
	return st.session.Close()
}

// Run listens on addr, loads the model in the background and serves until
// ctx ends or the load fails. A load failure is returned.
func (w *Worker) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return w.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (w *Worker) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{
		Handler:           w.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()
	w.log.Info().Str("addr", ln.Addr().String()).Msg("worker listening")

	loadErr := make(chan error, 1)
	go func() {
		if err := w.Load(ctx); err != nil && ctx.Err() == nil {
			loadErr <- err
		}
	}()

	var runErr error
	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	case err := <-loadErr:
		runErr = err
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	_ = w.Close()
	if runErr == nil {
		w.log.Info().Msg("worker stopped")
	}
	return runErr
}
