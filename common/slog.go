package common

import "log/slog"

// SlogResetLevel sets the default logger's level and returns a func restoring
// the previous one. Tests quiet the tracker with
//
//	t.Cleanup(common.SlogResetLevel(slog.LevelWarn))
func SlogResetLevel(level slog.Level) (reset func()) {
	previous := slog.SetLogLoggerLevel(level)
	return func() {
		slog.SetLogLoggerLevel(previous)
	}
}
