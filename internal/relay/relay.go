// Package relay forwards generation requests from the gateway to the worker
// serving the requested model.
package relay

import (
	"bytes"
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

	"modelgate/pkg/types"
)

// Resolver maps a model name to its worker port. *supervisor.Registry
// satisfies it.
type Resolver interface {
	Port(model string) (int, bool)
}

const (
	defaultTimeout   = 300 * time.Second
	maxResponseBytes = 16 << 20
)

var (
	relayTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelgate",
			Subsystem: "relay",
			Name:      "requests_total",
			Help:      "Generation relays by model and outcome",
		},
		[]string{"model", "outcome"},
	)
	relayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "modelgate",
			Subsystem: "relay",
			Name:      "duration_seconds",
			Help:      "Time spent waiting for a worker's generation response",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"model"},
	)
)

func init() {
	prometheus.MustRegister(relayTotal, relayDuration)
}

// Options configures a Relay.
type Options struct {
	Host    string
	Timeout time.Duration
	Client  *http.Client
	Logger  zerolog.Logger
}

// Relay sends each request to its worker exactly once. Requests are
// independent: nothing is queued or retried, and concurrent calls proceed
// concurrently.
type Relay struct {
	resolver Resolver
	host     string
	timeout  time.Duration
	client   *http.Client
	log      zerolog.Logger
}

func New(resolver Resolver, opts Options) *Relay {
	r := &Relay{
		resolver: resolver,
		host:     opts.Host,
		timeout:  opts.Timeout,
		client:   opts.Client,
		log:      opts.Logger,
	}
	if r.host == "" {
		r.host = "127.0.0.1"
	}
	if r.timeout <= 0 {
		r.timeout = defaultTimeout
	}
	if r.client == nil {
		r.client = &http.Client{Timeout: 0}
	}
	return r
}

// Generate relays req to the worker for req.Model and returns the worker's
// JSON body unchanged, whether it holds a response or an application error.
// Routing and transport failures are returned as errors whose text is the
// message to show the caller. If ctx ends first, ctx's error is returned.
func (r *Relay) Generate(ctx context.Context, req types.GenerateRequest) (json.RawMessage, error) {
	port, ok := r.resolver.Port(req.Model)
	if !ok {
		relayTotal.WithLabelValues("", KindUnknownModel.String()).Inc()
		return nil, relayError{kind: KindUnknownModel, model: req.Model}
	}
	log := r.log.With().Str("model", req.Model).Int("port", port).Logger()
	start := time.Now()
	body, err := r.invoke(ctx, port, types.InvokeRequest{Prompt: req.Prompt, Overrides: req.Overrides})
	relayDuration.WithLabelValues(req.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			relayTotal.WithLabelValues(req.Model, "canceled").Inc()
			return nil, ctx.Err()
		}
		kind := KindUnavailable
		if isTimeout(err) {
			kind = KindTimeout
		}
		relayTotal.WithLabelValues(req.Model, kind.String()).Inc()
		log.Warn().Err(err).Stringer("kind", kind).Dur("dur", time.Since(start)).Msg("relay failed")
		return nil, relayError{kind: kind, model: req.Model, err: err}
	}
	if !isJSONObject(body) {
		relayTotal.WithLabelValues(req.Model, KindInvalidResponse.String()).Inc()
		log.Warn().Int("bytes", len(body)).Msg("worker returned non-JSON body")
		return nil, relayError{kind: KindInvalidResponse, model: req.Model, err: errors.New("body is not a JSON object")}
	}
	relayTotal.WithLabelValues(req.Model, "ok").Inc()
	log.Debug().Dur("dur", time.Since(start)).Msg("relay done")
	return json.RawMessage(body), nil
}

func (r *Relay) invoke(ctx context.Context, port int, payload types.InvokeRequest) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	url := "http://" + net.JoinHostPort(r.host, strconv.Itoa(port)) + "/invoke"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
}

func isJSONObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{' && json.Valid(b)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
