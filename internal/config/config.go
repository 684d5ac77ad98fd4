package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"modelgate/pkg/types"
)

// Defaults applied when the corresponding Config fields are unset.
const (
	DefaultAddr                  = "127.0.0.1:8000"
	DefaultStartupTimeoutSeconds = 600
	DefaultProbeIntervalSeconds  = 5
	DefaultProbeTimeoutSeconds   = 2
	DefaultHealthTimeoutSeconds  = 2
	DefaultRelayTimeoutSeconds   = 300
	DefaultMaxBodyBytes          = 1 << 20
	DefaultWorkerHost            = "127.0.0.1"
	DefaultWorkerBackend         = "llama"

	DefaultTemperature   = 0.7
	DefaultTopP          = 0.95
	DefaultMaxTokens     = 512
	DefaultRepeatPenalty = 1.1
	DefaultCtxSize       = 4096
)

// ModelSpec is one routable model: a unique name, the model file, and the
// loopback port its worker listens on.
type ModelSpec struct {
	Name string `json:"name" yaml:"name" toml:"name"`
	Path string `json:"path" yaml:"path" toml:"path"`
	Port int    `json:"port" yaml:"port" toml:"port"`
}

// Public returns the wire view of the model.
func (s ModelSpec) Public() types.Model {
	return types.Model{Name: s.Name, Path: s.Path, Port: s.Port}
}

// GenerationDefaults are the process-wide generation parameters every worker
// falls back to when a caller omits an override.
type GenerationDefaults struct {
	// Temperature is nil when unset; 0 selects greedy decoding.
	Temperature   *float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopP          float64  `json:"top_p" yaml:"top_p" toml:"top_p"`
	MaxTokens     int      `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	RepeatPenalty float64  `json:"repeat_penalty" yaml:"repeat_penalty" toml:"repeat_penalty"`
	CtxSize       int      `json:"n_ctx" yaml:"n_ctx" toml:"n_ctx"`
	// GPULayers is passed to llama.cpp as is: 0 keeps the model on the CPU,
	// a negative value offloads every layer.
	GPULayers     int      `json:"n_gpu_layers" yaml:"n_gpu_layers" toml:"n_gpu_layers"`
	Threads       int      `json:"threads" yaml:"threads" toml:"threads"`
}

// WorkerConfig controls how worker processes are spawned.
type WorkerConfig struct {
	// Bin is the executable started for each worker. Empty means this binary.
	Bin       string   `json:"bin" yaml:"bin" toml:"bin"`
	Backend   string   `json:"backend" yaml:"backend" toml:"backend"`
	Host      string   `json:"host" yaml:"host" toml:"host"`
	ExtraArgs []string `json:"extra_args" yaml:"extra_args" toml:"extra_args"`
}

// CORSConfig is opt-in; when disabled no CORS middleware is installed.
type CORSConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods" toml:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers" yaml:"allowed_headers" toml:"allowed_headers"`
}

// Config holds runtime parameters for the gateway.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	// Models is the ordered set of routable models. Launch order follows it.
	Models []ModelSpec `json:"models" yaml:"models" toml:"models"`
	// ModelsDir and PortStart are used only when Models is empty.
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	PortStart int    `json:"port_start" yaml:"port_start" toml:"port_start"`

	StartupTimeoutSeconds int   `json:"startup_timeout_seconds" yaml:"startup_timeout_seconds" toml:"startup_timeout_seconds"`
	ProbeIntervalSeconds  int   `json:"probe_interval_seconds" yaml:"probe_interval_seconds" toml:"probe_interval_seconds"`
	ProbeTimeoutSeconds   int   `json:"probe_timeout_seconds" yaml:"probe_timeout_seconds" toml:"probe_timeout_seconds"`
	HealthTimeoutSeconds  int   `json:"health_timeout_seconds" yaml:"health_timeout_seconds" toml:"health_timeout_seconds"`
	RelayTimeoutSeconds   int   `json:"relay_timeout_seconds" yaml:"relay_timeout_seconds" toml:"relay_timeout_seconds"`
	MaxBodyBytes          int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`

	Generation GenerationDefaults `json:"generation" yaml:"generation" toml:"generation"`
	Worker     WorkerConfig       `json:"worker" yaml:"worker" toml:"worker"`
	CORS       CORSConfig         `json:"cors" yaml:"cors" toml:"cors"`
}

// Default returns a Config with every default applied and no models.
func Default() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills unset fields. Safe to call more than once.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	setInt(&c.StartupTimeoutSeconds, DefaultStartupTimeoutSeconds)
	setInt(&c.ProbeIntervalSeconds, DefaultProbeIntervalSeconds)
	setInt(&c.ProbeTimeoutSeconds, DefaultProbeTimeoutSeconds)
	setInt(&c.HealthTimeoutSeconds, DefaultHealthTimeoutSeconds)
	setInt(&c.RelayTimeoutSeconds, DefaultRelayTimeoutSeconds)
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	g := &c.Generation
	if g.Temperature == nil {
		t := float64(DefaultTemperature)
		g.Temperature = &t
	}
	if g.TopP <= 0 {
		g.TopP = DefaultTopP
	}
	setInt(&g.MaxTokens, DefaultMaxTokens)
	if g.RepeatPenalty <= 0 {
		g.RepeatPenalty = DefaultRepeatPenalty
	}
	setInt(&g.CtxSize, DefaultCtxSize)
	if c.Worker.Host == "" {
		c.Worker.Host = DefaultWorkerHost
	}
	if c.Worker.Backend == "" {
		c.Worker.Backend = DefaultWorkerBackend
	}
}

// EffectiveTemperature returns the configured temperature, or the default
// when unset.
func (g GenerationDefaults) EffectiveTemperature() float64 {
	if g.Temperature == nil {
		return DefaultTemperature
	}
	return *g.Temperature
}

func setInt(p *int, def int) {
	if *p <= 0 {
		*p = def
	}
}

// Validate checks the model list and the gateway address.
func (c Config) Validate() error {
	if len(c.Models) == 0 {
		return fmt.Errorf("no models configured")
	}
	names := make(map[string]bool, len(c.Models))
	ports := make(map[int]string, len(c.Models))
	for i, m := range c.Models {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("models[%d]: empty name", i)
		}
		if names[m.Name] {
			return fmt.Errorf("models[%d]: duplicate name %q", i, m.Name)
		}
		names[m.Name] = true
		if strings.TrimSpace(m.Path) == "" {
			return fmt.Errorf("model %q: empty path", m.Name)
		}
		if m.Port < 1 || m.Port > 65535 {
			return fmt.Errorf("model %q: port %d out of range", m.Name, m.Port)
		}
		if other, ok := ports[m.Port]; ok {
			return fmt.Errorf("model %q: port %d already used by %q", m.Name, m.Port, other)
		}
		ports[m.Port] = m.Name
	}
	_, portStr, err := net.SplitHostPort(c.Addr)
	if err != nil {
		return fmt.Errorf("addr %q: %w", c.Addr, err)
	}
	if p, err := strconv.Atoi(portStr); err == nil {
		if other, ok := ports[p]; ok {
			return fmt.Errorf("addr %q collides with worker port of %q", c.Addr, other)
		}
	}
	return nil
}

// StartupTimeout is the per-model readiness budget.
func (c Config) StartupTimeout() time.Duration { return seconds(c.StartupTimeoutSeconds) }

// ProbeInterval is the pause between readiness polls.
func (c Config) ProbeInterval() time.Duration { return seconds(c.ProbeIntervalSeconds) }

// ProbeTimeout bounds a single readiness poll during startup.
func (c Config) ProbeTimeout() time.Duration { return seconds(c.ProbeTimeoutSeconds) }

// HealthTimeout bounds each per-model query of GET /health.
func (c Config) HealthTimeout() time.Duration { return seconds(c.HealthTimeoutSeconds) }

// RelayTimeout bounds one generation call to a worker.
func (c Config) RelayTimeout() time.Duration { return seconds(c.RelayTimeoutSeconds) }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
