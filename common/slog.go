package common

import (
	"io"
	"log/slog"
)

// SetDefaultSlog installs a text handler on w at level as the default logger,
// with args attached to every record.
func SetDefaultSlog(w io.Writer, level slog.Level, args ...any) {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler).With(args...))
}

// SlogResetLevel sets the level of the log package bridge and returns a function
// that restores the previous level. Pairs well with defer:
//
//	defer common.SlogResetLevel(slog.LevelWarn + 1)()
func SlogResetLevel(level slog.Level) (reset func()) {
	oldLevel := slog.SetLogLoggerLevel(level)
	return func() {
		slog.SetLogLoggerLevel(oldLevel)
	}
}
