package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"
)

// A stand-in for `modelgate worker`. Behavior is chosen by FAKE_WORKER_MODE:
//
//	ready (default)  listen, report model_loaded after FAKE_LOAD_DELAY
//	never            never open the port
//	exit             write to stderr and exit 1
func main() {
	if len(os.Args) < 2 || os.Args[1] != "worker" {
		log.Fatalf("expected worker subcommand, got %v", os.Args[1:])
	}
	fs := flag.NewFlagSet("worker", flag.ExitOnError)
	host := fs.String("host", "127.0.0.1", "")
	port := fs.String("port", "0", "")
	for _, name := range []string{"model", "name", "launch-id", "backend", "temperature", "top-p", "max-tokens", "repeat-penalty", "ctx-size", "gpu-layers", "threads"} {
		fs.String(name, "", "")
	}
	_ = fs.Parse(os.Args[2:])

	switch os.Getenv("FAKE_WORKER_MODE") {
	case "exit":
		fmt.Fprintln(os.Stderr, "failed to load model: out of memory")
		os.Exit(1)
	case "never":
		waitSignal()
		return
	}

	delay, _ := time.ParseDuration(os.Getenv("FAKE_LOAD_DELAY"))
	var loaded atomic.Bool
	time.AfterFunc(delay, func() { loaded.Store(true) })

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"model_loaded": loaded.Load()})
	})
	mux.HandleFunc("/invoke", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Prompt string `json:"prompt"` }
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "echo: " + body.Prompt})
	})
	srv := &http.Server{Addr: net.JoinHostPort(*host, *port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()
	waitSignal()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

func waitSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
}
