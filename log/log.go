// Package log wraps zerolog with a small package-level API. Structured calls
// take alternating key/value pairs, as in Infow("msg", "key", value).
package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	logTestWriterName = "log_test_writer"
	logTestTimeFormat = "2006-01-02T15:04:05.000"
)

var (
	log zerolog.Logger

	// logTestWriter is the destination used when Init is called with
	// logTestWriterName as output.
	logTestWriter io.Writer

	panicOnInvalidChars = os.Getenv("LOG_PANIC_ON_INVALIDCHARS") == "true"
)

func init() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = LogLevelError
	}
	Init(level, "stderr", nil)
}

// invalidCharChecker panics whenever a log line carries the replacement
// character that zerolog writes for invalid UTF-8 input.
type invalidCharChecker struct{}

func (*invalidCharChecker) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte(`\ufffd`)) {
		panic(fmt.Sprintf("log line with invalid chars: %q", p))
	}
	return len(p), nil
}

// errorLevelWriter forwards only error (and higher) events.
type errorLevelWriter struct {
	io.Writer
}

func (w *errorLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < zerolog.ErrorLevel {
		return len(p), nil
	}
	return w.Write(p)
}

// Init configures the global logger. The output can be stdout, stderr or a
// file path. If errorOutput is not nil, errors are also written to it.
func Init(level, output string, errorOutput io.Writer) {
	var out io.Writer
	switch output {
	case "stdout":
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339Nano}
	case "stderr":
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339Nano}
	case logTestWriterName:
		out = logTestWriter
	default:
		f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			panic(fmt.Sprintf("cannot create log output: %v", err))
		}
		out = f
	}
	outputs := []io.Writer{out}
	if errorOutput != nil {
		outputs = append(outputs, &errorLevelWriter{zerolog.ConsoleWriter{
			Out:        errorOutput,
			TimeFormat: logTestTimeFormat,
			NoColor:    true,
		}})
	}
	if panicOnInvalidChars {
		outputs = append(outputs, &invalidCharChecker{})
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
		return fmt.Sprintf("%s/%s:%d", path.Base(path.Dir(file)), path.Base(file), line)
	}
	log = zerolog.New(zerolog.MultiLevelWriter(outputs...)).
		With().Timestamp().Caller().Logger()

	switch strings.ToLower(level) {
	case LogLevelDebug:
		log = log.Level(zerolog.DebugLevel)
	case LogLevelInfo:
		log = log.Level(zerolog.InfoLevel)
	case LogLevelWarn:
		log = log.Level(zerolog.WarnLevel)
	case LogLevelError:
		log = log.Level(zerolog.ErrorLevel)
	default:
		panic(fmt.Sprintf("invalid log level: %q", level))
	}
	log.Info().Msgf("logger construction succeeded at level %s with output %s", level, output)
}

// Logger provides access to the global logger, for callers needing the
// zerolog API directly.
func Logger() *zerolog.Logger {
	return &log
}

// Level returns the current log level as a string.
func Level() string {
	switch log.GetLevel() {
	case zerolog.DebugLevel:
		return LogLevelDebug
	case zerolog.InfoLevel:
		return LogLevelInfo
	case zerolog.WarnLevel:
		return LogLevelWarn
	case zerolog.ErrorLevel:
		return LogLevelError
	default:
		return "unknown"
	}
}

func Debug(args ...any) {
	log.Debug().CallerSkipFrame(1).Msg(fmt.Sprint(args...))
}

func Info(args ...any) {
	log.Info().CallerSkipFrame(1).Msg(fmt.Sprint(args...))
}

func Warn(args ...any) {
	log.Warn().CallerSkipFrame(1).Msg(fmt.Sprint(args...))
}

func Error(args ...any) {
	log.Error().CallerSkipFrame(1).Msg(fmt.Sprint(args...))
}

func Fatal(args ...any) {
	log.Fatal().CallerSkipFrame(1).Msg(fmt.Sprint(args...) + "\n" + string(debug.Stack()))
}

func Debugf(template string, args ...any) {
	log.Debug().CallerSkipFrame(1).Msgf(template, args...)
}

func Infof(template string, args ...any) {
	log.Info().CallerSkipFrame(1).Msgf(template, args...)
}

func Warnf(template string, args ...any) {
	log.Warn().CallerSkipFrame(1).Msgf(template, args...)
}

func Errorf(template string, args ...any) {
	log.Error().CallerSkipFrame(1).Msgf(template, args...)
}

func Fatalf(template string, args ...any) {
	log.Fatal().CallerSkipFrame(1).Msgf(template+"\n"+string(debug.Stack()), args...)
}

func Debugw(msg string, keyvalues ...any) {
	log.Debug().CallerSkipFrame(1).Fields(keyvalues).Msg(msg)
}

func Infow(msg string, keyvalues ...any) {
	log.Info().CallerSkipFrame(1).Fields(keyvalues).Msg(msg)
}

func Warnw(msg string, keyvalues ...any) {
	log.Warn().CallerSkipFrame(1).Fields(keyvalues).Msg(msg)
}

// Errorw logs err with msg as context.
func Errorw(err error, msg string) {
	log.Error().CallerSkipFrame(1).Err(err).Msg(msg)
}
