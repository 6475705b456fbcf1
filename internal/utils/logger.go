package utils

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Log event names.
const (
	EventCommandFailed         = "command_failed"
	EventTxRolledBack          = "tx_rolled_back"
	EventMakerAction           = "maker_action"
	EventCheckerAction         = "checker_action"
	EventWorkflowFailed        = "workflow_failed"
	EventNotificationQueued    = "notification_queued"
	EventNotificationDelivered = "notification_delivered"
	EventNotificationFailed    = "notification_failed"
	EventHTTPRequest           = "http_request"
)

var (
	loggerMu sync.RWMutex
	logger   = newLogger(os.Stdout, zerolog.InfoLevel, false)
)

func newLogger(out io.Writer, level zerolog.Level, pretty bool) zerolog.Logger {
	if pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Logger().Level(level)
}

// ConfigureLogger replaces the process logger. level is a zerolog level name.
func ConfigureLogger(out io.Writer, level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	SetLogger(newLogger(out, lvl, pretty))
}

func SetLogger(l zerolog.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

func Logger() *zerolog.Logger {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	return &l
}

// Module returns a logger tagged with module and request id.
func Module(module, requestID string) zerolog.Logger {
	ctx := Logger().With().Str("module", strings.ToLower(module))
	if req := strings.TrimSpace(requestID); req != "" {
		ctx = ctx.Str("request_id", req)
	}
	return ctx.Logger()
}

// LogEvent prints standardized log line with module/action/request_id.
// Avoid logging sensitive payload; message should be summarized.
func LogEvent(requestID, module, action, message string) {
	l := Module(module, requestID)
	l.Info().Str("action", action).Msg(message)
}

// LogError logs err with module/action/request_id plus extra string fields.
func LogError(requestID, module, action string, err error, fields map[string]string) {
	l := Module(module, requestID)
	ev := l.Error().Err(err).Str("action", action)
	for k, v := range fields {
		ev = ev.Str(k, v)
	}
	ev.Msg(action)
}
