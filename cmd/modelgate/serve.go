package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"modelgate/internal/config"
	"modelgate/internal/gateway"
	"modelgate/internal/httpapi"
)

func newServeCmd(g *globalOpts) *cobra.Command {
	o := serveOpts{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Launch one worker per model, then serve the gateway API",
		Example: "  modelgate serve --config modelgate.yaml\n" +
			"  modelgate serve --models-dir ~/models/llm --addr :8000",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(o, g)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.configPath, "config", envStr("MODELGATE_CONFIG", ""), "Config file (.yaml, .json, .toml)")
	f.StringVar(&o.addr, "addr", envStr("MODELGATE_ADDR", ""), "Gateway listen address (default "+config.DefaultAddr+")")
	f.StringVar(&o.modelsDir, "models-dir", "", "Scan this directory for *.gguf instead of the configured model list")
	f.IntVar(&o.portStart, "port-start", 0, "First worker port when scanning --models-dir")
	f.BoolVar(&o.corsEnabled, "cors-enabled", false, "Enable CORS on the gateway")
	f.StringVar(&o.corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins")
	return cmd
}

// runServe opens the gateway, starts every worker in order, then serves
// until ctx ends. Workers are terminated on the way out.
func runServe(ctx context.Context, cfg config.Config) error {
	log := newLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	httpapi.SetLogger(log)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders)
	httpapi.SetBaseContext(ctx)

	svc := gateway.New(cfg, gateway.Options{Logger: log})
	defer svc.Stop()

	// Bound before any worker is launched; /generate answers 503 until the
	// startup sequence has finished.
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:           httpapi.NewMux(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("gateway listening")
		errCh <- srv.Serve(ln)
	}()

	log.Info().Int("models", len(cfg.Models)).Msg("starting workers")
	rep := svc.Start(ctx)
	switch {
	case ctx.Err() != nil:
		log.Info().Msg("interrupted during startup")
	case len(rep.Failed) > 0 || len(rep.Skipped) > 0:
		log.Warn().Strs("ready", rep.Ready).Strs("failed", rep.Failed).Strs("skipped", rep.Skipped).Msg("serving with a partial fleet")
	default:
		log.Info().Strs("ready", rep.Ready).Msg("all workers ready")
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown")
	}
	return nil
}
