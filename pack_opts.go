package mohyung

import (
	"log/slog"
)

// PackOption configures a Pack operation.
type PackOption func(*packConfig)

type packConfig struct {
	level         int
	codec         Codec
	lockfile      bool
	lockfileNames []string
	workers       int
	logger        *slog.Logger
	progress      ProgressFunc
}

// DefaultLockfileNames are the lockfiles looked for, in order, next to the
// packed tree.
var DefaultLockfileNames = []string{"package-lock.json", "pnpm-lock.yaml", "yarn.lock"}

func defaultPackConfig() packConfig {
	return packConfig{
		level:         DefaultLevel,
		codec:         DefaultCodec,
		lockfileNames: DefaultLockfileNames,
	}
}

// PackWithLevel sets the compression level, from MinLevel (fastest) to
// MaxLevel (smallest). Default: DefaultLevel.
func PackWithLevel(level int) PackOption {
	return func(cfg *packConfig) {
		cfg.level = level
	}
}

// PackWithCodec sets the blob compression codec. Default: DefaultCodec.
func PackWithCodec(c Codec) PackOption {
	return func(cfg *packConfig) {
		cfg.codec = c
	}
}

// PackWithLockfile records the fingerprint of the project lockfile found
// in the directory containing the source tree. A missing lockfile is
// silently ignored.
func PackWithLockfile(include bool) PackOption {
	return func(cfg *packConfig) {
		cfg.lockfile = include
	}
}

// PackWithLockfileNames sets the lockfile names tried, in order, when
// lockfile recording is enabled.
func PackWithLockfileNames(names ...string) PackOption {
	return func(cfg *packConfig) {
		if len(names) > 0 {
			cfg.lockfileNames = names
		}
	}
}

// PackWithWorkers sets the number of concurrent scan and compression
// workers. Zero or negative uses GOMAXPROCS.
func PackWithWorkers(n int) PackOption {
	return func(cfg *packConfig) {
		cfg.workers = n
	}
}

// PackWithLogger sets the logger for pack operations.
// If not set, logging is disabled.
func PackWithLogger(logger *slog.Logger) PackOption {
	return func(cfg *packConfig) {
		cfg.logger = logger
	}
}

// PackWithProgress sets a callback for progress updates.
// The callback receives events for scanning, compressing, and committing.
func PackWithProgress(fn ProgressFunc) PackOption {
	return func(cfg *packConfig) {
		cfg.progress = fn
	}
}
