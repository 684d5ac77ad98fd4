package main

import (
	"fmt"

	"modelgate/internal/config"
	"modelgate/internal/registry"
)

// serveOpts are the flags that may override the config file.
type serveOpts struct {
	configPath  string
	addr        string
	modelsDir   string
	portStart   int
	corsEnabled bool
	corsOrigins string
}

// loadConfig reads the file (if any), applies flag overrides, resolves the
// model list and validates the result.
func loadConfig(o serveOpts, g *globalOpts) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		c, err := config.Load(o.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}
	if o.addr != "" {
		cfg.Addr = o.addr
	}
	if o.modelsDir != "" {
		cfg.ModelsDir = o.modelsDir
		cfg.Models = nil
	}
	if o.portStart > 0 {
		cfg.PortStart = o.portStart
	}
	if o.corsEnabled {
		cfg.CORS.Enabled = true
	}
	if origins := splitCSV(o.corsOrigins); len(origins) > 0 {
		cfg.CORS.AllowedOrigins = origins
	}
	cfg.LogLevel = firstNonEmpty(g.logLevel, cfg.LogLevel)
	cfg.LogFormat = firstNonEmpty(g.logFormat, cfg.LogFormat)

	models, err := registry.Resolve(cfg)
	if err != nil {
		return cfg, fmt.Errorf("resolve models: %w", err)
	}
	cfg.Models = models
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
