package mohyung

import "log/slog"

// UnpackOption configures an Unpack operation.
type UnpackOption func(*unpackConfig)

type unpackConfig struct {
	force          bool
	workers        int
	cacheThreshold int
	batchBytes     int
	preserveTimes  bool
	logger         *slog.Logger
	progress       ProgressFunc
}

// UnpackWithForce removes an existing output directory instead of
// failing with ErrOutputExists.
func UnpackWithForce(force bool) UnpackOption {
	return func(cfg *unpackConfig) {
		cfg.force = force
	}
}

// UnpackWithWorkers sets the number of concurrent file writers.
// Zero or negative uses GOMAXPROCS.
func UnpackWithWorkers(n int) UnpackOption {
	return func(cfg *unpackConfig) {
		cfg.workers = n
	}
}

// UnpackWithCacheThreshold sets the decompressed size, in bytes, below
// which blob content is kept for reuse by later files sharing it.
// Zero disables the cache. Default: 100 KiB.
func UnpackWithCacheThreshold(n int) UnpackOption {
	return func(cfg *unpackConfig) {
		cfg.cacheThreshold = n
	}
}

// UnpackWithBatchBytes bounds the decompressed bytes held in memory before
// they are written out. Default: 64 MiB.
func UnpackWithBatchBytes(n int) UnpackOption {
	return func(cfg *unpackConfig) {
		cfg.batchBytes = n
	}
}

// UnpackWithPreserveTimes restores recorded modification times.
// By default, files carry the time they were written.
func UnpackWithPreserveTimes(preserve bool) UnpackOption {
	return func(cfg *unpackConfig) {
		cfg.preserveTimes = preserve
	}
}

// UnpackWithLogger sets the logger for unpack operations.
// If not set, logging is disabled.
func UnpackWithLogger(logger *slog.Logger) UnpackOption {
	return func(cfg *unpackConfig) {
		cfg.logger = logger
	}
}

// UnpackWithProgress sets a callback for reading and writing progress.
func UnpackWithProgress(fn ProgressFunc) UnpackOption {
	return func(cfg *unpackConfig) {
		cfg.progress = fn
	}
}
