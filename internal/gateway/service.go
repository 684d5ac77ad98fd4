// Package gateway wires the supervisor, router and health aggregator into
// the Service consumed by the HTTP layer.
package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"modelgate/internal/config"
	"modelgate/internal/health"
	"modelgate/internal/probe"
	"modelgate/internal/relay"
	"modelgate/internal/supervisor"
	"modelgate/pkg/types"
)

// Options overrides the collaborators derived from Config. Zero values use
// the production implementations.
type Options struct {
	Logger    zerolog.Logger
	Launcher  supervisor.Launcher
	Publisher supervisor.EventPublisher
}

// Service is the gateway: it owns the worker fleet for cfg.Models.
type Service struct {
	cfg     config.Config
	log     zerolog.Logger
	sup     *supervisor.Supervisor
	relay   *relay.Relay
	health  *health.Aggregator
	started time.Time
}

// New builds a Service. cfg must already be validated; it is not mutated.
func New(cfg config.Config, opts Options) *Service {
	log := opts.Logger
	launcher := opts.Launcher
	if launcher == nil {
		launcher = supervisor.NewExecLauncher(supervisor.ExecConfig{
			Bin:        cfg.Worker.Bin,
			Host:       cfg.Worker.Host,
			Backend:    cfg.Worker.Backend,
			ExtraArgs:  cfg.Worker.ExtraArgs,
			Generation: cfg.Generation,
			Logger:     log,
		})
	}
	prober := probe.New(probe.Options{
		Host:           cfg.Worker.Host,
		Interval:       cfg.ProbeInterval(),
		RequestTimeout: cfg.ProbeTimeout(),
		Logger:         log,
	})
	sup := supervisor.New(supervisor.Options{
		Launcher:       launcher,
		Readiness:      prober,
		StartupTimeout: cfg.StartupTimeout(),
		Logger:         log,
		Publisher:      opts.Publisher,
	})
	return &Service{
		cfg: cfg,
		log: log,
		sup: sup,
		relay: relay.New(sup.Registry(), relay.Options{
			Host:    cfg.Worker.Host,
			Timeout: cfg.RelayTimeout(),
			Logger:  log,
		}),
		health:  health.New(cfg.Models, prober, cfg.HealthTimeout(), log),
		started: time.Now(),
	}
}

// Start runs the sequential startup for every configured model. It returns
// once each model is ready, failed or skipped.
func (s *Service) Start(ctx context.Context) supervisor.Report {
	return s.sup.StartAll(ctx, s.cfg.Models)
}

// Stop terminates every launched worker.
func (s *Service) Stop() { s.sup.StopAll() }

// Generate routes req and returns the body to send to the caller. Routing
// and upstream failures become {"error": ...} bodies; only the caller's
// context ending is returned as an error.
func (s *Service) Generate(ctx context.Context, req types.GenerateRequest) (json.RawMessage, error) {
	body, err := s.relay.Generate(ctx, req)
	if err == nil {
		return body, nil
	}
	if _, ok := relay.KindOf(err); !ok {
		return nil, err
	}
	b, merr := json.Marshal(types.GenerateResponse{Error: err.Error()})
	if merr != nil {
		return nil, merr
	}
	return b, nil
}

// Health reports every configured model.
func (s *Service) Health(ctx context.Context) types.HealthReport {
	return s.health.Health(ctx)
}

// Models lists the configured models in launch order.
func (s *Service) Models() []types.Model {
	out := make([]types.Model, 0, len(s.cfg.Models))
	for _, m := range s.cfg.Models {
		out = append(out, m.Public())
	}
	return out
}

func (s *Service) Status() types.StatusResponse {
	return types.StatusResponse{
		Started:       s.sup.Started(),
		Workers:       s.sup.Status(),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	}
}

// Ready reports whether the startup sequence has finished.
func (s *Service) Ready() bool { return s.sup.Started() }
