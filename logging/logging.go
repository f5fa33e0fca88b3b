package logging

import (
	"fmt"
	"log/slog"
	"strings"

	"kafji.net/rekam/console"
)

var level = new(slog.LevelVar)

// Init installs the default slog handler writing to the console writer.
func Init() {
	handler := slog.NewTextHandler(console.Writer, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func SetLogLevel(name string) {
	switch strings.ToLower(name) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

type Logger struct {
	namespace string
}

func NewLogger(namespace string) *Logger {
	return &Logger{namespace: namespace}
}

func (l *Logger) transform(msg string, args []any) (string, []any) {
	return fmt.Sprintf("%s: %s", l.namespace, msg), args
}

func (l *Logger) Debug(msg string, args ...any) {
	msg, args = l.transform(msg, args)
	slog.Debug(msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	msg, args = l.transform(msg, args)
	slog.Info(msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	msg, args = l.transform(msg, args)
	slog.Warn(msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	msg, args = l.transform(msg, args)
	slog.Error(msg, args...)
}
