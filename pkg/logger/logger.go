package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var log = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init configures the process logger. Development gets a console writer and debug
// level, anything else JSON at info level.
func Init(environment string) {
	Setup(environment, os.Stdout)
}

func Setup(environment string, out io.Writer) {
	env := strings.ToLower(environment)
	if env == "development" || env == "dev" || env == "local" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		log = zerolog.New(out).Level(zerolog.DebugLevel).With().Timestamp().Logger()
		return
	}
	log = zerolog.New(out).Level(zerolog.InfoLevel).With().Timestamp().Str("env", env).Logger()
}

func Debug(msg string, args ...any) { emit(log.Debug(), msg, args) }
func Info(msg string, args ...any)  { emit(log.Info(), msg, args) }
func Warn(msg string, args ...any)  { emit(log.Warn(), msg, args) }
func Error(msg string, args ...any) { emit(log.Error(), msg, args) }

func Fatal(msg string, args ...any) {
	emit(log.Fatal(), msg, args)
}

// emit accepts slog-style key/value pairs. A bare error becomes the error field and
// any other unpaired value is logged under "detail".
func emit(ev *zerolog.Event, msg string, args []any) {
	for i := 0; i < len(args); i++ {
		switch v := args[i].(type) {
		case error:
			ev = ev.Err(v)
		case string:
			if i+1 < len(args) {
				ev = field(ev, v, args[i+1])
				i++
				continue
			}
			ev = ev.Str("detail", v)
		default:
			ev = ev.Interface("detail", v)
		}
	}
	ev.Msg(msg)
}

func field(ev *zerolog.Event, key string, val any) *zerolog.Event {
	switch v := val.(type) {
	case error:
		if key == "error" {
			return ev.Err(v)
		}
		return ev.AnErr(key, v)
	case string:
		return ev.Str(key, v)
	case int:
		return ev.Int(key, v)
	case int64:
		return ev.Int64(key, v)
	case uint:
		return ev.Uint(key, v)
	case uint64:
		return ev.Uint64(key, v)
	case bool:
		return ev.Bool(key, v)
	case time.Duration:
		return ev.Dur(key, v)
	case fmt.Stringer:
		return ev.Stringer(key, v)
	default:
		return ev.Interface(key, v)
	}
}
