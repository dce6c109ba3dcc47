// Package extract restores archived files into a directory tree.
//
// Extraction runs in batches. Each batch is prepared on the calling
// goroutine, where blobs are fetched and decompressed and small results
// are cached for reuse, and is then written by a pool of workers. A batch
// holds at most the configured number of decompressed bytes, which bounds
// peak memory regardless of archive size.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/cbcruk/mohyung/internal/archivetype"
	"github.com/cbcruk/mohyung/internal/compress"
	"github.com/cbcruk/mohyung/internal/hashing"
	"github.com/cbcruk/mohyung/internal/parallel"
	"github.com/cbcruk/mohyung/internal/progress"
)

// Defaults for extraction.
const (
	// DefaultCacheThreshold is the decompressed size below which blob
	// content is cached for reuse by later files.
	DefaultCacheThreshold = 100 * 1024

	// DefaultBatchBytes bounds the decompressed bytes held per batch.
	DefaultBatchBytes = 64 << 20
)

var (
	// ErrInvalidPath is recorded for archived paths that are not local,
	// slash-separated, and free of ".." elements.
	ErrInvalidPath = errors.New("extract: invalid path")

	// ErrInvalidHash is recorded for files whose blob hash is not a
	// well-formed fingerprint.
	ErrInvalidHash = errors.New("extract: invalid blob hash")
)

// Source provides compressed blob content by hash.
type Source interface {
	Blob(ctx context.Context, hash string) (content []byte, ok bool, err error)
}

// Failure records a file that could not be restored.
type Failure struct {
	Path string
	Err  error
}

// Result summarizes an extraction.
type Result struct {
	// FileCount is the number of file records considered.
	FileCount int

	// Written is the number of files restored.
	Written int

	// TotalBytes is the number of decompressed bytes written.
	TotalBytes uint64

	// Skipped counts records whose blob is missing from the archive.
	Skipped int

	// Failures lists files whose content could not be decoded or written.
	Failures []Failure
}

// Option configures an extraction.
type Option func(*extractor)

// WithCodec sets the codec blobs were compressed with.
func WithCodec(c compress.Codec) Option {
	return func(e *extractor) {
		e.codec = c
	}
}

// WithWorkers sets the number of concurrent writers.
// Zero or negative uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(e *extractor) {
		e.workers = n
	}
}

// WithCacheThreshold sets the decompressed size below which blob content
// is cached. Zero disables the cache.
func WithCacheThreshold(n int) Option {
	return func(e *extractor) {
		e.cacheThreshold = n
	}
}

// WithBatchBytes bounds the decompressed bytes prepared per batch.
// Values <= 0 use DefaultBatchBytes.
func WithBatchBytes(n int) Option {
	return func(e *extractor) {
		e.batchBytes = n
	}
}

// WithPreserveTimes restores recorded modification times.
// By default, files carry the time they were written.
func WithPreserveTimes(preserve bool) Option {
	return func(e *extractor) {
		e.preserveTimes = preserve
	}
}

// WithLogger sets the logger for extraction.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(e *extractor) {
		e.logger = logger
	}
}

// WithProgress sets a callback for reading and writing progress.
func WithProgress(fn progress.Func) Option {
	return func(e *extractor) {
		e.progress = fn
	}
}

type extractor struct {
	codec          compress.Codec
	workers        int
	cacheThreshold int
	batchBytes     int
	preserveTimes  bool
	logger         *slog.Logger
	progress       progress.Func

	cache map[string][]byte
}

// job is one file ready to be written.
type job struct {
	path    string
	content []byte
	mode    uint32
	mtime   int64
}

// Extract writes every record in files under dest, creating dest and
// any parent directories as needed. Existing files are overwritten.
//
// Records with a missing blob are skipped with a warning. Records whose
// blob cannot be decoded or whose file cannot be written are collected in
// Result.Failures without stopping the run. Errors reading the archive and
// context cancellation are returned.
func Extract(ctx context.Context, src Source, files []archivetype.FileRecordWithPath, dest string, opts ...Option) (*Result, error) {
	e := &extractor{
		codec:          compress.DefaultCodec,
		cacheThreshold: DefaultCacheThreshold,
		batchBytes:     DefaultBatchBytes,
		cache:          make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.batchBytes <= 0 {
		e.batchBytes = DefaultBatchBytes
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("extract: create %s: %w", dest, err)
	}
	root, err := os.OpenRoot(dest)
	if err != nil {
		return nil, fmt.Errorf("extract: open %s: %w", dest, err)
	}
	defer root.Close()

	res := &Result{FileCount: len(files)}
	w := &writer{root: root, preserveTimes: e.preserveTimes}

	var mu sync.Mutex
	flush := func(batch []job) error {
		return parallel.ForEach(ctx, batch, e.workers, func(_ context.Context, j job) {
			err := w.write(j)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.logger.Warn("failed to write file", "path", j.path, "error", err)
				res.Failures = append(res.Failures, Failure{Path: j.path, Err: err})
				return
			}
			res.Written++
			res.TotalBytes += uint64(len(j.content))
			e.progress.Report(progress.StageWriting, res.Written, len(files), j.path)
		})
	}

	var (
		batch      []job
		batchBytes int
	)
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := f.TreePath()
		if !fs.ValidPath(path) {
			e.logger.Warn("refusing unsafe path", "path", path)
			res.Failures = append(res.Failures, Failure{Path: path, Err: fmt.Errorf("%w: %q", ErrInvalidPath, path)})
			continue
		}
		if !hashing.Valid(f.BlobHash) {
			e.logger.Warn("malformed blob hash", "path", path, "hash", f.BlobHash)
			res.Failures = append(res.Failures, Failure{Path: path, Err: fmt.Errorf("%w: %q", ErrInvalidHash, f.BlobHash)})
			continue
		}

		content, ok, err := e.content(ctx, src, f.BlobHash)
		if err != nil {
			if errors.Is(err, compress.ErrDecompression) {
				e.logger.Warn("failed to decode blob", "path", path, "hash", f.BlobHash, "error", err)
				res.Failures = append(res.Failures, Failure{Path: path, Err: err})
				continue
			}
			return nil, err
		}
		if !ok {
			e.logger.Warn("blob not found", "path", path, "hash", f.BlobHash)
			res.Skipped++
			continue
		}

		batch = append(batch, job{path: path, content: content, mode: f.Mode, mtime: f.MTime})
		batchBytes += len(content)
		e.progress.Report(progress.StageReading, i+1, len(files), path)

		if batchBytes >= e.batchBytes {
			if err := flush(batch); err != nil {
				return nil, err
			}
			batch, batchBytes = nil, 0
		}
	}
	if err := flush(batch); err != nil {
		return nil, err
	}

	e.logger.Info("extraction complete",
		"dest", dest,
		"file_count", res.FileCount,
		"written", res.Written,
		"skipped", res.Skipped,
		"failed", len(res.Failures),
		"total_bytes", res.TotalBytes,
	)
	return res, nil
}

// content returns the decompressed content of hash, consulting and filling
// the cache. ok is false if the blob does not exist.
func (e *extractor) content(ctx context.Context, src Source, hash string) ([]byte, bool, error) {
	if data, hit := e.cache[hash]; hit {
		return data, true, nil
	}

	compressed, ok, err := src.Blob(ctx, hash)
	if err != nil || !ok {
		return nil, ok, err
	}
	data, err := e.codec.Decompress(compressed)
	if err != nil {
		return nil, false, err
	}
	if len(data) < e.cacheThreshold {
		e.cache[hash] = data
	}
	return data, true, nil
}
