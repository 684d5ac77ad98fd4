package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"modelgate/internal/config"
	"modelgate/internal/worker"
)

type workerOpts struct {
	model       string
	name        string
	host        string
	port        int
	launchID    string
	backend     string
	// temperature backs --temperature; gen.Temperature points at it.
	temperature float64
	gen         config.GenerationDefaults
}

func newWorkerCmd(g *globalOpts) *cobra.Command {
	def := config.Default()
	o := workerOpts{gen: def.Generation, temperature: def.Generation.EffectiveTemperature()}
	o.gen.Temperature = &o.temperature
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Host one model behind /invoke and /health (started by serve)",
		Example: "  modelgate worker --model ~/models/llm/tiny.gguf --port 9001\n" +
			"  modelgate worker --model ./tiny.gguf --port 9001 --backend echo",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("model", o.model); err != nil {
				return err
			}
			if o.port < 1 || o.port > 65535 {
				return fmt.Errorf("--port %d out of range 1..65535", o.port)
			}
			log := newLogger(firstNonEmpty(g.logLevel, "info"), firstNonEmpty(g.logFormat, "console"), os.Stderr)
			backend, err := worker.NewBackend(o.backend, worker.BackendOptions{
				CtxSize:   o.gen.CtxSize,
				GPULayers: o.gen.GPULayers,
				Threads:   o.gen.Threads,
			})
			if err != nil {
				return err
			}
			w := worker.New(worker.Options{
				Name:      o.name,
				ModelPath: o.model,
				LaunchID:  o.launchID,
				Backend:   backend,
				Defaults:  worker.DefaultParams(o.gen),
				Logger:    log,
			})
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return w.Run(ctx, net.JoinHostPort(o.host, strconv.Itoa(o.port)))
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.model, "model", "", "Path to the model file")
	f.StringVar(&o.name, "name", "", "Model name used in logs")
	f.StringVar(&o.host, "host", config.DefaultWorkerHost, "Listen host")
	f.IntVar(&o.port, "port", 0, "Listen port")
	f.StringVar(&o.launchID, "launch-id", "", "Launch identifier assigned by the gateway")
	f.StringVar(&o.backend, "backend", config.DefaultWorkerBackend, "Inference backend: llama|echo")
	f.Float64Var(&o.temperature, "temperature", o.temperature, "Default sampling temperature (0 = greedy)")
	f.Float64Var(&o.gen.TopP, "top-p", o.gen.TopP, "Default nucleus sampling probability")
	f.IntVar(&o.gen.MaxTokens, "max-tokens", o.gen.MaxTokens, "Default maximum new tokens")
	f.Float64Var(&o.gen.RepeatPenalty, "repeat-penalty", o.gen.RepeatPenalty, "Default repeat penalty")
	f.IntVar(&o.gen.CtxSize, "ctx-size", o.gen.CtxSize, "Context window in tokens")
	f.IntVar(&o.gen.GPULayers, "gpu-layers", o.gen.GPULayers, "Layers offloaded to the GPU (-1 = all)")
	f.IntVar(&o.gen.Threads, "threads", o.gen.Threads, "Generation threads (0 = backend default)")
	return cmd
}
