package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	appCtx "github.com/baechuer/cityevents/services/discovery-service/internal/pkg/context"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Log is the process logger. It discards everything until Init runs so
// packages under test stay quiet.
var Log = zerolog.New(io.Discard)

func Init(level, format string) {
	InitWithWriter(os.Stdout, level, format)
}

// InitWithWriter replaces Log (and zerolog's global) with a logger writing
// to w. Unknown levels mean info; any format other than json is console.
func InitWithWriter(w io.Writer, level, format string) {
	l := New(w, level, format)
	Log = l
	zlog.Logger = l
}

func New(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := w
	if !strings.EqualFold(format, FormatJSON) {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// Ctx tags Log with the request id and, inside a sampled span, the trace id.
func Ctx(ctx context.Context) *zerolog.Logger {
	reqID := appCtx.GetRequestID(ctx)
	sc := trace.SpanContextFromContext(ctx)
	if reqID == "" && !sc.IsValid() {
		return &Log
	}

	c := Log.With()
	if reqID != "" {
		c = c.Str("request_id", reqID)
	}
	if sc.IsValid() {
		c = c.Str("trace_id", sc.TraceID().String())
	}
	l := c.Logger()
	return &l
}
