package worker

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modelgate/pkg/types"
)

// Handler returns the worker's HTTP API:
//
//	POST /invoke   {prompt, overrides...} -> {response} | {error}
//	GET  /health   {model_loaded}
//	GET  /metrics  Prometheus
func (w *Worker) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Post("/invoke", w.handleInvoke)
	r.Get("/health", w.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (w *Worker) handleHealth(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, types.WorkerHealth{ModelLoaded: w.Loaded()})
}

// handleInvoke answers 200 for every generation outcome; only an unreadable
// request gets a 4xx.
func (w *Worker) handleInvoke(rw http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || !strings.EqualFold(mt, "application/json") {
			writeJSON(rw, http.StatusUnsupportedMediaType, types.ErrorResponse{Error: "content type must be application/json", Code: http.StatusUnsupportedMediaType})
			return
		}
	}
	r.Body = http.MaxBytesReader(rw, r.Body, w.maxBody)
	var req types.InvokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSON(rw, http.StatusRequestEntityTooLarge, types.ErrorResponse{Error: "request body too large", Code: http.StatusRequestEntityTooLarge})
			return
		}
		writeJSON(rw, http.StatusBadRequest, types.ErrorResponse{Error: "invalid JSON body", Code: http.StatusBadRequest})
		return
	}

	p := w.defaults.Merge(req.Overrides)
	log := w.log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
	log.Debug().Int("prompt_len", len(req.Prompt)).Int("max_tokens", p.MaxTokens).Float64("temperature", p.Temperature).Msg("invoke")

	out, err := w.Generate(r.Context(), req.Prompt, p)
	if err != nil {
		if r.Context().Err() != nil {
			// Caller went away; nobody reads the answer.
			return
		}
		if !IsNotLoaded(err) {
			log.Warn().Err(err).Msg("generation failed")
		}
		writeJSON(rw, http.StatusOK, types.GenerateResponse{Error: err.Error()})
		return
	}
	// A map keeps "response" present even when the model produced nothing.
	writeJSON(rw, http.StatusOK, map[string]string{"response": out})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
