package httpapi

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// zlog is the structured logger used by the HTTP layer. It defaults to the
// global zerolog logger.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

func logger() *zerolog.Logger {
	if zlog != nil {
		return zlog
	}
	return &log.Logger
}

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch strings.ToLower(s) {
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

// defaultLogLevel is read once from INFERD_HTTP_LOG_LEVEL.
var defaultLogLevel = func() LogLevel {
	if v, ok := os.LookupEnv("INFERD_HTTP_LOG_LEVEL"); ok {
		return parseLevel(v)
	}
	return LevelInfo
}()

// requestLogLevel honors ?log= and X-Log-Level overrides.
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

// reqLogger scopes log lines of one request: events at or below lvl are
// written, with the chi request id attached.
type reqLogger struct {
	lvl LogLevel
	z   zerolog.Logger
}

func newReqLogger(r *http.Request) reqLogger {
	z := logger().With().Str("path", r.URL.Path)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	return reqLogger{lvl: requestLogLevel(r), z: z.Logger()}
}

func (l reqLogger) Debug() *zerolog.Event {
	if l.lvl < LevelDebug {
		return nil
	}
	return l.z.Debug()
}

func (l reqLogger) Info() *zerolog.Event {
	if l.lvl < LevelInfo {
		return nil
	}
	return l.z.Info()
}

func (l reqLogger) Error() *zerolog.Event {
	if l.lvl < LevelError {
		return nil
	}
	return l.z.Error()
}
