package httpapi

import (
	"bytes"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is the structured logger used by the HTTP layer.
var zlog = zerolog.Nop()

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l }

// loggingLineWriter logs complete NDJSON lines at debug level.
type loggingLineWriter struct {
	buf []byte
	rid string
}

func (lw *loggingLineWriter) Write(p []byte) (int, error) {
	lw.buf = append(lw.buf, p...)
	for {
		idx := bytes.IndexByte(lw.buf, '\n')
		if idx < 0 {
			break
		}
		if idx > 0 {
			zlog.Debug().Str("request_id", lw.rid).Bytes("line", lw.buf[:idx]).Msg("generate>")
		}
		lw.buf = lw.buf[idx+1:]
	}
	return len(p), nil
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
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// global default, read once
var defaultLogLevel = parseLevel(os.Getenv("CLOVER_LOG_LEVEL"))

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

// requestLog carries the per-request logging decision for one handler.
type requestLog struct {
	lvl   LogLevel
	op    string
	rid   string
	start time.Time
}

func newRequestLog(r *http.Request, op string) requestLog {
	return requestLog{lvl: requestLogLevel(r), op: op, rid: middleware.GetReqID(r.Context()), start: time.Now()}
}

func (l requestLog) begin(fields map[string]any) {
	if l.lvl < LevelInfo {
		return
	}
	ev := zlog.Info().Str("op", l.op)
	if l.rid != "" {
		ev = ev.Str("request_id", l.rid)
	}
	ev.Fields(fields).Msg("request start")
}

func (l requestLog) end(status int, err error) {
	if l.lvl == LevelOff || (l.lvl == LevelError && err == nil) {
		return
	}
	ev := zlog.Info()
	if err != nil {
		ev = zlog.Error().Err(err)
	}
	if l.rid != "" {
		ev = ev.Str("request_id", l.rid)
	}
	ev.Str("op", l.op).Int("status", status).Dur("dur", time.Since(l.start)).Msg("request end")
}
