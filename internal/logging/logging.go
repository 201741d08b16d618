// Package logging builds the zerolog-backed structured logger used
// across the hub and adapts it to the small manager.Logger interface.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the process-wide logger.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json, pretty
}

// New builds a zerolog.Logger with a timestamp, caller info, and a
// fixed "service" field, writing JSON by default or a human-readable
// console format when Format is "pretty".
func New(opts Options) zerolog.Logger {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stdout
	if opts.Format == "pretty" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).With().Timestamp().Caller().Str("service", "taghub").Logger()
}

// ManagerLogger adapts a zerolog.Logger to manager.Logger.
type ManagerLogger struct {
	Log zerolog.Logger
}

func (l ManagerLogger) Warn(msg string, kv ...any) {
	ev := l.Log.Warn()
	appendFields(ev, kv)
	ev.Msg(msg)
}

func (l ManagerLogger) Error(msg string, kv ...any) {
	ev := l.Log.Error()
	appendFields(ev, kv)
	ev.Msg(msg)
}

func appendFields(ev *zerolog.Event, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev.Interface(key, kv[i+1])
	}
}
