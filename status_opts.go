package mohyung

import "log/slog"

// StatusOption configures a Status operation.
type StatusOption func(*statusConfig)

type statusConfig struct {
	untracked bool
	workers   int
	logger    *slog.Logger
	progress  ProgressFunc
}

// StatusWithUntracked also reports package files present in the tree but
// absent from the archive, in StatusResult.OnlyInFilesystem.
func StatusWithUntracked(enabled bool) StatusOption {
	return func(cfg *statusConfig) {
		cfg.untracked = enabled
	}
}

// StatusWithWorkers sets the number of files fingerprinted concurrently.
// Zero or negative uses GOMAXPROCS.
func StatusWithWorkers(n int) StatusOption {
	return func(cfg *statusConfig) {
		cfg.workers = n
	}
}

// StatusWithLogger sets the logger for status operations.
// If not set, logging is disabled.
func StatusWithLogger(logger *slog.Logger) StatusOption {
	return func(cfg *statusConfig) {
		cfg.logger = logger
	}
}

// StatusWithProgress sets a callback that receives one event per compared file.
func StatusWithProgress(fn ProgressFunc) StatusOption {
	return func(cfg *statusConfig) {
		cfg.progress = fn
	}
}
