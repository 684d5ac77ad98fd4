// Package probe answers "has this worker finished loading its model?".
//
// A single Check never fails: every outcome, including connection refused and
// garbage bodies, is folded into a Result with a Reason. WaitForReady repeats
// Check on a fixed interval until the worker is ready, a deadline passes, or
// the caller's context ends.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Reason classifies the outcome of one readiness query.
type Reason int

const (
	ReasonReady Reason = iota
	// Worker answered but reported model_loaded=false.
	ReasonNotLoaded
	// Connection refused or any other dial/transport failure.
	ReasonUnreachable
	// The query did not complete within the per-request timeout.
	ReasonTimeout
	// Non-2xx status.
	ReasonBadStatus
	// Body was not JSON or lacked model_loaded.
	ReasonMalformed
	// Caller context ended.
	ReasonCanceled
	// The worker process exited while being probed.
	ReasonExited
)

func (r Reason) String() string {
	switch r {
	case ReasonReady:
		return "ready"
	case ReasonNotLoaded:
		return "not_loaded"
	case ReasonUnreachable:
		return "unreachable"
	case ReasonTimeout:
		return "timeout"
	case ReasonBadStatus:
		return "bad_status"
	case ReasonMalformed:
		return "malformed"
	case ReasonCanceled:
		return "canceled"
	case ReasonExited:
		return "exited"
	default:
		return "unknown"
	}
}

// ErrExited is used as a context cancel cause by callers that watch the
// worker process; WaitForReady reports it as ReasonExited.
var ErrExited = errors.New("worker process exited")

// Result is the outcome of Check or WaitForReady.
type Result struct {
	Ready  bool
	Reason Reason
	// Err carries the underlying failure, nil when Ready.
	Err error
	// Polls and Elapsed are filled by WaitForReady.
	Polls   int
	Elapsed time.Duration
}

const (
	defaultInterval       = 5 * time.Second
	defaultRequestTimeout = 2 * time.Second
	defaultProgressEvery  = 4
	maxHealthBody         = 4096
)

var checksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "modelgate",
		Subsystem: "probe",
		Name:      "checks_total",
		Help:      "Worker readiness queries by outcome",
	},
	[]string{"reason"},
)

func init() {
	prometheus.MustRegister(checksTotal)
}

// Options configures a Prober. Zero values take package defaults.
type Options struct {
	Host           string
	Interval       time.Duration
	RequestTimeout time.Duration
	// ProgressEvery controls how often WaitForReady logs a progress line.
	ProgressEvery int
	Client        *http.Client
	Logger        zerolog.Logger
}

// Prober queries worker /health endpoints on the loopback interface.
type Prober struct {
	host          string
	interval      time.Duration
	reqTimeout    time.Duration
	progressEvery int
	client        *http.Client
	log           zerolog.Logger
}

// New constructs a Prober.
func New(opts Options) *Prober {
	p := &Prober{
		host:          opts.Host,
		interval:      opts.Interval,
		reqTimeout:    opts.RequestTimeout,
		progressEvery: opts.ProgressEvery,
		client:        opts.Client,
		log:           opts.Logger,
	}
	if p.host == "" {
		p.host = "127.0.0.1"
	}
	if p.interval <= 0 {
		p.interval = defaultInterval
	}
	if p.reqTimeout <= 0 {
		p.reqTimeout = defaultRequestTimeout
	}
	if p.progressEvery <= 0 {
		p.progressEvery = defaultProgressEvery
	}
	if p.client == nil {
		// Timeout=0: every request carries a context deadline instead.
		p.client = &http.Client{Timeout: 0}
	}
	return p
}

// URL returns the readiness endpoint for a worker port.
func (p *Prober) URL(port int) string {
	return "http://" + net.JoinHostPort(p.host, strconv.Itoa(port)) + "/health"
}

// Check performs one readiness query bounded by the prober's request timeout.
func (p *Prober) Check(ctx context.Context, port int) Result {
	return p.CheckWithin(ctx, port, p.reqTimeout)
}

// CheckWithin is Check with an explicit per-request timeout.
func (p *Prober) CheckWithin(ctx context.Context, port int, timeout time.Duration) Result {
	res := p.check(ctx, port, timeout)
	checksTotal.WithLabelValues(res.Reason.String()).Inc()
	return res
}

func (p *Prober) check(ctx context.Context, port int, timeout time.Duration) Result {
	if ctx.Err() != nil {
		return canceled(ctx)
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(rctx, http.MethodGet, p.URL(port), nil)
	if err != nil {
		return Result{Reason: ReasonUnreachable, Err: err}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return canceled(ctx)
		}
		if isTimeout(err) {
			return Result{Reason: ReasonTimeout, Err: err}
		}
		return Result{Reason: ReasonUnreachable, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHealthBody))
	if err != nil {
		if isTimeout(err) {
			return Result{Reason: ReasonTimeout, Err: err}
		}
		return Result{Reason: ReasonUnreachable, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{Reason: ReasonBadStatus, Err: fmt.Errorf("health status %s", resp.Status)}
	}
	var payload struct {
		ModelLoaded *bool `json:"model_loaded"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Result{Reason: ReasonMalformed, Err: err}
	}
	if payload.ModelLoaded == nil {
		return Result{Reason: ReasonMalformed, Err: errors.New("missing model_loaded")}
	}
	if !*payload.ModelLoaded {
		return Result{Reason: ReasonNotLoaded, Err: errors.New("model not loaded")}
	}
	return Result{Ready: true, Reason: ReasonReady}
}

// WaitForReady polls the worker on port until it reports ready or timeout
// elapses. Transient failures are not errors: they keep the loop going and
// the last one is reported if the deadline passes. A progress line is logged
// every ProgressEvery polls.
func (p *Prober) WaitForReady(ctx context.Context, port int, timeout time.Duration) Result {
	start := time.Now()
	deadline := start.Add(timeout)
	log := p.log.With().Int("port", port).Logger()

	for polls := 1; ; polls++ {
		res := p.Check(ctx, port)
		res.Polls = polls
		res.Elapsed = time.Since(start)
		if res.Ready || res.Reason == ReasonCanceled || res.Reason == ReasonExited {
			return res
		}
		log.Debug().Int("poll", polls).Stringer("reason", res.Reason).Msg("worker not ready")
		if polls%p.progressEvery == 0 {
			log.Info().Int("poll", polls).Dur("elapsed", res.Elapsed.Round(time.Second)).Msg("waiting for model to become ready")
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			res.Err = fmt.Errorf("not ready after %s (last: %s): %w", timeout, res.Reason, res.Err)
			return res
		}
		select {
		case <-time.After(min(p.interval, remaining)):
		case <-ctx.Done():
			c := canceled(ctx)
			c.Polls = polls
			c.Elapsed = time.Since(start)
			return c
		}
	}
}

func canceled(ctx context.Context) Result {
	cause := context.Cause(ctx)
	if errors.Is(cause, ErrExited) {
		return Result{Reason: ReasonExited, Err: cause}
	}
	return Result{Reason: ReasonCanceled, Err: cause}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
