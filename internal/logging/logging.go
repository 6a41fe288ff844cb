package logging

import (
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// New builds the process logger. Unknown levels fall back to info.
func New(level, format string, out io.Writer) *logrus.Logger {
	if out == nil {
		out = os.Stderr
	}
	l := logrus.New()
	l.SetOutput(out)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}

// RequestLogger is a chi middleware that writes one entry per request.
func RequestLogger(l logrus.FieldLogger) func(http.Handler) http.Handler {
	return middleware.RequestLogger(&formatter{log: l})
}

type formatter struct{ log logrus.FieldLogger }

func (f *formatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &entry{log: f.log.WithFields(logrus.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"method":     r.Method,
		"path":       r.URL.Path,
		"remote":     r.RemoteAddr,
	})}
}

type entry struct{ log logrus.FieldLogger }

func (e *entry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	fields := e.log.WithFields(logrus.Fields{
		"status":   status,
		"bytes":    bytes,
		"duration": elapsed.String(),
	})
	switch {
	case status >= 500:
		fields.Error("request")
	case status >= 400:
		fields.Warn("request")
	default:
		fields.Info("request")
	}
}

func (e *entry) Panic(v interface{}, stack []byte) {
	e.log.WithFields(logrus.Fields{"panic": v, "stack": string(stack)}).Error("request panicked")
}

// FromRequest returns the per-request logger installed by RequestLogger,
// or fallback when the middleware is not in the chain.
func FromRequest(r *http.Request, fallback logrus.FieldLogger) logrus.FieldLogger {
	if e, ok := middleware.GetLogEntry(r).(*entry); ok {
		return e.log
	}
	return fallback
}
