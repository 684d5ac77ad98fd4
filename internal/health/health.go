// Package health reports, for every configured model, whether its worker
// currently answers ready.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"modelgate/internal/config"
	"modelgate/internal/probe"
	"modelgate/pkg/types"
)

// Checker performs one bounded readiness query. *probe.Prober satisfies it.
type Checker interface {
	CheckWithin(ctx context.Context, port int, timeout time.Duration) probe.Result
}

var probeFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "modelgate",
		Subsystem: "health",
		Name:      "probe_failures_total",
		Help:      "Health queries that reported a model as not loaded, by model and reason",
	},
	[]string{"model", "reason"},
)

func init() {
	prometheus.MustRegister(probeFailures)
}

// Aggregator queries every configured model on each call. Results are not
// cached.
type Aggregator struct {
	specs   []config.ModelSpec
	checker Checker
	timeout time.Duration
	log     zerolog.Logger
}

func New(specs []config.ModelSpec, checker Checker, timeout time.Duration, log zerolog.Logger) *Aggregator {
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultHealthTimeoutSeconds) * time.Second
	}
	return &Aggregator{
		specs:   append([]config.ModelSpec(nil), specs...),
		checker: checker,
		timeout: timeout,
		log:     log,
	}
}

// Health returns one entry per configured model, registered or not. Any
// probe failure is reported as false; Health itself never fails. Models are
// queried concurrently, so the call takes about one timeout at worst.
func (a *Aggregator) Health(ctx context.Context) types.HealthReport {
	report := make(types.HealthReport, len(a.specs))
	var mu sync.Mutex
	var g errgroup.Group
	for _, spec := range a.specs {
		spec := spec
		g.Go(func() error {
			res := a.checker.CheckWithin(ctx, spec.Port, a.timeout)
			if !res.Ready {
				probeFailures.WithLabelValues(spec.Name, res.Reason.String()).Inc()
				a.log.Debug().Str("model", spec.Name).Stringer("reason", res.Reason).Err(res.Err).Msg("health probe not ready")
			}
			mu.Lock()
			report[types.HealthKey(spec.Name)] = res.Ready
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return report
}
