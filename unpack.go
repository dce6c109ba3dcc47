package mohyung

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/cbcruk/mohyung/internal/extract"
	"github.com/cbcruk/mohyung/internal/store"
)

// Unpack restores every file recorded in archive beneath output, with its
// original content and permission bits.
//
// Files whose blob is missing from the archive are skipped and counted in
// UnpackResult.Skipped. Files that cannot be decoded or written are listed
// in UnpackResult.Failures. Neither stops the run.
func Unpack(ctx context.Context, archive, output string, opts ...UnpackOption) (*UnpackResult, error) {
	cfg := unpackConfig{
		cacheThreshold: extract.DefaultCacheThreshold,
		batchBytes:     extract.DefaultBatchBytes,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := loggerOrDiscard(cfg.logger)

	if err := requireArchive(archive); err != nil {
		return nil, err
	}

	if _, err := os.Lstat(output); err == nil {
		if !cfg.force {
			return nil, fmt.Errorf("%w: %s", ErrOutputExists, output)
		}
		log.Info("removing existing output", "path", output)
		if err := os.RemoveAll(output); err != nil {
			return nil, fmt.Errorf("remove %s: %w", output, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	st, err := store.Open(ctx, archive, store.WithLogger(log))
	if err != nil {
		return nil, err
	}
	defer st.Close()

	codec, err := archiveCodec(ctx, st)
	if err != nil {
		return nil, err
	}
	files, err := st.Files(ctx)
	if err != nil {
		return nil, err
	}

	log.Info("extracting", "archive", archive, "output", output, "file_count", len(files))
	return extract.Extract(ctx, st, files, output,
		extract.WithCodec(codec),
		extract.WithWorkers(cfg.workers),
		extract.WithCacheThreshold(cfg.cacheThreshold),
		extract.WithBatchBytes(cfg.batchBytes),
		extract.WithPreserveTimes(cfg.preserveTimes),
		extract.WithLogger(log),
		extract.WithProgress(cfg.progress),
	)
}

// requireArchive returns ErrArchiveNotFound if archive is not a file.
func requireArchive(archive string) error {
	info, err := os.Stat(archive)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrArchiveNotFound, archive)
		}
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrArchiveNotFound, archive)
	}
	return nil
}

// archiveCodec returns the codec recorded in the archive. Archives without
// a recorded codec use zstd.
func archiveCodec(ctx context.Context, st *store.Store) (Codec, error) {
	name, _, err := st.Metadata(ctx, store.KeyCompression)
	if err != nil {
		return 0, err
	}
	return ParseCodec(name)
}
