package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modelgate/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
// *gateway.Service implements it.
type Service interface {
	// Generate returns the JSON body for POST /generate. Routing and worker
	// failures are encoded in the body; an error means the caller's context
	// ended.
	Generate(ctx context.Context, req types.GenerateRequest) (json.RawMessage, error)
	Health(ctx context.Context) types.HealthReport
	Models() []types.Model
	Status() types.StatusResponse
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		origins, methods, headers := corsDefaults()
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: methods,
			AllowedHeaders: headers,
			MaxAge:         300,
		}))
	}

	r.Post("/generate", generateHandler(svc))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Health(r.Context()))
	})

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.ModelsResponse{Models: svc.Models()})
	})
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("starting"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

func generateHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Workers are still being launched one by one.
		if !svc.Ready() {
			writeJSONError(w, http.StatusServiceUnavailable, "gateway is starting")
			return
		}
		if !isJSONContentType(r.Header.Get("Content-Type")) {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		lvl := requestLogLevel(r)
		start := time.Now()
		if lvl >= LevelDebug {
			if ev := reqEvent(r, LevelDebug); ev != nil {
				ev.Str("model", req.Model).Int("prompt_len", len(req.Prompt)).Msg("generate start")
			}
		}

		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		body, err := svc.Generate(ctx, req)
		if err != nil {
			// Client disconnect or shutdown: nobody is waiting for a body.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			if lvl >= LevelError {
				if ev := reqEvent(r, LevelError); ev != nil {
					ev.Str("model", req.Model).Err(err).Dur("dur", time.Since(start)).Msg("generate failed")
				}
			}
			return
		}

		failed := bodyHasError(body)
		if failed {
			generateErrorsTotal.WithLabelValues(req.Model).Inc()
		}
		if lvl >= LevelInfo {
			if ev := reqEvent(r, LevelInfo); ev != nil {
				ev.Str("model", req.Model).Bool("error", failed).Dur("dur", time.Since(start)).Msg("generate end")
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

func isJSONContentType(ct string) bool {
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	return err == nil && strings.EqualFold(mt, "application/json")
}

func bodyHasError(body []byte) bool {
	var probe struct {
		Error *string `json:"error"`
	}
	return json.Unmarshal(body, &probe) == nil && probe.Error != nil
}
