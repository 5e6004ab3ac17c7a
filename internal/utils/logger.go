package utils

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

type Logger struct {
	*slog.Logger
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func NewLogger(level string) *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewFileLogger fans records out to stdout and, when logFile is set, to a JSON file.
// The returned cleanup closes the file.
func NewFileLogger(level, logFile string) (*Logger, func() error) {
	if logFile == "" {
		return NewLogger(level), func() error { return nil }
	}

	logLevel := parseLevel(level)
	stdoutHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		l := &Logger{Logger: slog.New(stdoutHandler)}
		l.Error("Failed to open log file, using stdout only", "error", err, "file", logFile)
		return l, func() error { return nil }
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: logLevel})

	return &Logger{
		Logger: slog.New(slogmulti.Fanout(stdoutHandler, fileHandler)),
	}, file.Close
}

// NewWriterLogger writes JSON records to w instead of stdout.
func NewWriterLogger(w io.Writer, level string) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})),
	}
}

// NewTestLogger logs everything to w. Tests pass io.Discard.
func NewTestLogger(w io.Writer) *Logger {
	return NewWriterLogger(w, "debug")
}

func (l *Logger) Fatal(msg string, args ...any) {
	l.Error(msg, args...)
	os.Exit(1)
}
