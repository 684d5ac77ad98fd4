package supervisor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"modelgate/internal/config"
	"modelgate/internal/probe"
	"modelgate/pkg/types"
)

// Readiness waits for a launched worker to report its model loaded.
// *probe.Prober satisfies it.
type Readiness interface {
	WaitForReady(ctx context.Context, port int, timeout time.Duration) probe.Result
}

// Options configures a Supervisor.
type Options struct {
	Launcher       Launcher
	Readiness      Readiness
	StartupTimeout time.Duration
	Logger         zerolog.Logger
	Publisher      EventPublisher
	// NewLaunchID defaults to uuid.NewString.
	NewLaunchID func() string
}

// Supervisor launches workers, gates them on readiness and terminates them
// at shutdown. It owns the Registry.
type Supervisor struct {
	launcher       Launcher
	readiness      Readiness
	startupTimeout time.Duration
	log            zerolog.Logger
	publisher      EventPublisher
	newLaunchID    func() string

	reg     *Registry
	started atomic.Bool

	mu     sync.RWMutex
	order  []string
	states map[string]*modelState
}

func New(opts Options) *Supervisor {
	s := &Supervisor{
		launcher:       opts.Launcher,
		readiness:      opts.Readiness,
		startupTimeout: opts.StartupTimeout,
		log:            opts.Logger,
		publisher:      opts.Publisher,
		newLaunchID:    opts.NewLaunchID,
		reg:            NewRegistry(),
		states:         make(map[string]*modelState),
	}
	if s.startupTimeout <= 0 {
		s.startupTimeout = time.Duration(config.DefaultStartupTimeoutSeconds) * time.Second
	}
	if s.publisher == nil {
		s.publisher = noopPublisher{}
	}
	if s.newLaunchID == nil {
		s.newLaunchID = uuid.NewString
	}
	return s
}

// Registry returns the routing table populated by StartAll.
func (s *Supervisor) Registry() *Registry { return s.reg }

// Started reports whether StartAll has finished.
func (s *Supervisor) Started() bool { return s.started.Load() }

// StartAll launches one worker per spec, in order, waiting for each to become
// ready before starting the next. A launch failure skips that model; the
// first readiness failure halts the sequence and the remaining models are
// never launched. Workers that did become ready stay registered either way.
func (s *Supervisor) StartAll(ctx context.Context, specs []config.ModelSpec) Report {
	defer s.started.Store(true)
	s.reset(specs)
	var rep Report
	for i, spec := range specs {
		if err := ctx.Err(); err != nil {
			s.halt(specs[i:], &rep, context.Cause(ctx))
			break
		}
		switch err := s.startOne(ctx, spec); {
		case err == nil:
			rep.Ready = append(rep.Ready, spec.Name)
		case IsLaunchFailure(err):
			rep.Failed = append(rep.Failed, spec.Name)
		default:
			rep.Failed = append(rep.Failed, spec.Name)
			s.halt(specs[i+1:], &rep, err)
		}
		if rep.Halted {
			break
		}
	}
	s.log.Info().
		Int("ready", len(rep.Ready)).
		Int("failed", len(rep.Failed)).
		Int("skipped", len(rep.Skipped)).
		Int("registered", s.reg.Len()).
		Msg("startup sequence finished")
	return rep
}

func (s *Supervisor) startOne(ctx context.Context, spec config.ModelSpec) error {
	log := s.log.With().Str("model", spec.Name).Int("port", spec.Port).Logger()
	launchID := s.newLaunchID()
	s.update(spec.Name, func(st *modelState) {
		st.phase = PhaseLaunching
		st.launchID = launchID
		st.launchedAt = time.Now()
	})
	log.Info().Str("launch_id", launchID).Str("path", spec.Path).Msg("launching worker")
	s.publisher.Publish(Event{Name: EventLaunchStart, Model: spec.Name, Fields: map[string]any{"port": spec.Port, "launch_id": launchID}})

	proc, err := s.launcher.Launch(ctx, spec, launchID)
	if err == nil {
		// Register before probing so StopAll can reach it even if it never loads.
		if perr := s.reg.Put(WorkerHandle{Name: spec.Name, Port: spec.Port, LaunchID: launchID, Process: proc}); perr != nil {
			_ = proc.Terminate()
			err = perr
		}
	}
	if err != nil {
		err = launchError{model: spec.Name, err: err}
		s.update(spec.Name, func(st *modelState) { st.phase = PhaseFailed; st.err = err.Error() })
		log.Error().Err(err).Msg("worker launch failed, continuing with next model")
		s.publisher.Publish(Event{Name: EventLaunchError, Model: spec.Name, Fields: map[string]any{"error": err.Error()}})
		launchesTotal.WithLabelValues(spec.Name, "launch_error").Inc()
		workerReady.WithLabelValues(spec.Name).Set(0)
		return err
	}

	pid := proc.PID()
	s.update(spec.Name, func(st *modelState) { st.phase = PhaseProbing; st.pid = pid })
	log.Info().Int("pid", pid).Dur("timeout", s.startupTimeout).Msg("worker started, waiting for model to load")

	pctx, cancel := context.WithCancelCause(ctx)
	go func() {
		select {
		case <-proc.Done():
			cancel(fmt.Errorf("%w: %v", probe.ErrExited, proc.Err()))
		case <-pctx.Done():
		}
	}()
	res := s.readiness.WaitForReady(pctx, spec.Port, s.startupTimeout)
	cancel(nil)

	if !res.Ready {
		err := notReadyError{model: spec.Name, res: res}
		s.update(spec.Name, func(st *modelState) { st.phase = PhaseFailed; st.err = err.Error() })
		log.Error().Err(err).Stringer("reason", res.Reason).Int("pid", pid).Msg("worker failed to become ready")
		s.publisher.Publish(Event{Name: EventProbeFailed, Model: spec.Name, Fields: map[string]any{"reason": res.Reason.String(), "polls": res.Polls}})
		launchesTotal.WithLabelValues(spec.Name, "not_ready").Inc()
		workerReady.WithLabelValues(spec.Name).Set(0)
		return err
	}

	var after time.Duration
	s.update(spec.Name, func(st *modelState) {
		st.phase = PhaseReady
		st.err = ""
		st.readyAfter = time.Since(st.launchedAt)
		after = st.readyAfter
	})
	log.Info().Int("pid", pid).Dur("after", after.Round(time.Millisecond)).Int("polls", res.Polls).Msg("worker ready")
	s.publisher.Publish(Event{Name: EventProbeReady, Model: spec.Name, Fields: map[string]any{"pid": pid, "polls": res.Polls}})
	launchesTotal.WithLabelValues(spec.Name, "ready").Inc()
	readySeconds.WithLabelValues(spec.Name).Observe(after.Seconds())
	workerReady.WithLabelValues(spec.Name).Set(1)
	return nil
}

// halt marks rest as skipped and records why the sequence stopped.
func (s *Supervisor) halt(rest []config.ModelSpec, rep *Report, cause error) {
	rep.Halted = true
	skipped := make([]string, 0, len(rest))
	for _, spec := range rest {
		skipped = append(skipped, spec.Name)
		s.update(spec.Name, func(st *modelState) { st.phase = PhaseSkipped })
		workerReady.WithLabelValues(spec.Name).Set(0)
	}
	rep.Skipped = append(rep.Skipped, skipped...)
	s.log.Warn().Err(cause).Strs("skipped", skipped).Msg("startup halted, remaining models will not be launched")
	s.publisher.Publish(Event{Name: EventStartupHalted, Fields: map[string]any{"skipped": skipped}})
}

// StopAll terminates every registered worker and empties the registry.
// Termination is requested, not awaited; failures are logged and dropped.
func (s *Supervisor) StopAll() {
	for _, h := range s.reg.Drain() {
		log := s.log.With().Str("model", h.Name).Int("pid", h.Process.PID()).Logger()
		if err := h.Process.Terminate(); err != nil {
			log.Warn().Err(err).Msg("terminate worker")
		} else {
			log.Info().Msg("worker terminated")
		}
		s.update(h.Name, func(st *modelState) { st.phase = PhaseStopped })
		workerReady.WithLabelValues(h.Name).Set(0)
		s.publisher.Publish(Event{Name: EventStop, Model: h.Name, Fields: map[string]any{}})
	}
}

// phase returns the current startup phase of a configured model.
func (s *Supervisor) phase(name string) (Phase, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[name]
	if !ok {
		return "", false
	}
	return st.phase, true
}

// Status returns per-model startup state in configuration order.
func (s *Supervisor) Status() []types.WorkerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.WorkerStatus, 0, len(s.order))
	for _, name := range s.order {
		st := s.states[name]
		out = append(out, types.WorkerStatus{
			Model:        name,
			Phase:        string(st.phase),
			Port:         st.spec.Port,
			PID:          st.pid,
			LaunchID:     st.launchID,
			ReadySeconds: st.readyAfter.Seconds(),
			Error:        st.err,
		})
	}
	return out
}

func (s *Supervisor) reset(specs []config.ModelSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = s.order[:0]
	s.states = make(map[string]*modelState, len(specs))
	for _, spec := range specs {
		s.order = append(s.order, spec.Name)
		s.states[spec.Name] = &modelState{spec: spec, phase: PhaseIdle}
	}
}

func (s *Supervisor) update(name string, fn func(*modelState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[name]; ok {
		fn(st)
	}
}
