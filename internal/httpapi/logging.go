package httpapi

import (
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, falls back to log.Printf.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// defaultLogLevel is read once from MODELGATE_HTTP_LOG.
var defaultLogLevel = func() LogLevel {
	v := os.Getenv("MODELGATE_HTTP_LOG")
	if v == "" {
		return LevelInfo
	}
	return parseLevel(v)
}()

// requestLogLevel honors ?log= and X-Log-Level before the process default.
func requestLogLevel(r *http.Request) LogLevel {
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// reqEvent starts a zerolog event tagged with the request id, or returns nil
// when no structured logger is installed.
func reqEvent(r *http.Request, lvl LogLevel) *zerolog.Event {
	if zlog == nil {
		return nil
	}
	var ev *zerolog.Event
	switch lvl {
	case LevelError:
		ev = zlog.Error()
	case LevelDebug:
		ev = zlog.Debug()
	default:
		ev = zlog.Info()
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		ev = ev.Str("request_id", rid)
	}
	return ev.Str("path", r.URL.Path)
}

// logf is the fallback for messages outside a request.
func logf(lvl LogLevel, format string, args ...any) {
	if zlog != nil {
		switch lvl {
		case LevelError:
			zlog.Error().Msgf(format, args...)
		default:
			zlog.Info().Msgf(format, args...)
		}
		return
	}
	log.Printf(format, args...)
}
