// Package diff compares archived file records with a live dependency tree.
package diff

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/cbcruk/mohyung/internal/archivetype"
	"github.com/cbcruk/mohyung/internal/hashing"
	"github.com/cbcruk/mohyung/internal/parallel"
	"github.com/cbcruk/mohyung/internal/progress"
	"github.com/cbcruk/mohyung/internal/scan"
)

// Result classifies every archived file.
//
// Each archived path lands in exactly one of Unchanged, Modified, or
// OnlyInArchive, and the lists are sorted.
type Result struct {
	// Unchanged counts files whose live content matches the archive.
	Unchanged int

	// Modified lists files whose live content differs or cannot be read.
	Modified []string

	// OnlyInArchive lists files missing from the tree.
	OnlyInArchive []string

	// OnlyInFilesystem lists package files present in the tree but not in
	// the archive. It is only filled when untracked detection is enabled.
	OnlyInFilesystem []string
}

// Clean reports whether every archived file is present and unchanged.
// Untracked files do not affect cleanliness.
func (r *Result) Clean() bool {
	return len(r.Modified) == 0 && len(r.OnlyInArchive) == 0
}

// Option configures a comparison.
type Option func(*comparer)

// WithWorkers sets the number of files fingerprinted concurrently.
// Zero or negative uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *comparer) {
		c.workers = n
	}
}

// WithUntracked enables detection of files present in the tree's packages
// but absent from the archive.
func WithUntracked(enabled bool) Option {
	return func(c *comparer) {
		c.untracked = enabled
	}
}

// WithLogger sets the logger for the comparison.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *comparer) {
		c.logger = logger
	}
}

// WithProgress sets a callback that receives one event per compared file.
func WithProgress(fn progress.Func) Option {
	return func(c *comparer) {
		c.progress = fn
	}
}

type comparer struct {
	workers   int
	untracked bool
	logger    *slog.Logger
	progress  progress.Func
}

type classification uint8

const (
	unchanged classification = iota
	modified
	missing
)

// Compare fingerprints the live counterpart of every record under root.
// A record whose file is absent is only in the archive. A record whose
// file cannot be read, or whose fingerprint differs, is modified.
func Compare(ctx context.Context, files []archivetype.FileRecordWithPath, root string, opts ...Option) (*Result, error) {
	c := &comparer{}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}

	var (
		mu   sync.Mutex
		done int
		res  = &Result{}
	)
	err := parallel.ForEach(ctx, files, c.workers, func(_ context.Context, f archivetype.FileRecordWithPath) {
		rel := f.TreePath()
		class := c.classify(filepath.Join(root, filepath.FromSlash(rel)), f.BlobHash)

		mu.Lock()
		defer mu.Unlock()
		switch class {
		case unchanged:
			res.Unchanged++
		case modified:
			res.Modified = append(res.Modified, rel)
		case missing:
			res.OnlyInArchive = append(res.OnlyInArchive, rel)
		}
		done++
		c.progress.Report(progress.StageComparing, done, len(files), rel)
	})
	if err != nil {
		return nil, err
	}

	if c.untracked {
		res.OnlyInFilesystem, err = c.findUntracked(ctx, files, root)
		if err != nil {
			return nil, err
		}
	}

	slices.Sort(res.Modified)
	slices.Sort(res.OnlyInArchive)

	c.logger.Info("comparison complete",
		"root", root,
		"unchanged", res.Unchanged,
		"modified", len(res.Modified),
		"only_in_archive", len(res.OnlyInArchive),
		"only_in_filesystem", len(res.OnlyInFilesystem),
	)
	return res, nil
}

func (c *comparer) classify(path, want string) classification {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return missing
		}
		c.logger.Debug("unreadable file", "path", path, "error", err)
		return modified
	}

	got, err := hashing.FingerprintFile(path)
	if err != nil {
		c.logger.Debug("unreadable file", "path", path, "error", err)
		return modified
	}
	if got != want {
		return modified
	}
	return unchanged
}

// findUntracked scans root the way pack does and returns the files that
// have no archived record.
func (c *comparer) findUntracked(ctx context.Context, files []archivetype.FileRecordWithPath, root string) ([]string, error) {
	archived := make(map[string]struct{}, len(files))
	for _, f := range files {
		archived[f.TreePath()] = struct{}{}
	}

	tree, err := scan.Scan(ctx, root, scan.WithWorkers(c.workers), scan.WithLogger(c.logger))
	if err != nil {
		return nil, err
	}

	var untracked []string
	for _, pkg := range tree.Packages {
		for _, f := range pkg.Files {
			rel := pkg.Info.Path + "/" + f.RelativePath
			if _, ok := archived[rel]; !ok {
				untracked = append(untracked, rel)
			}
		}
	}
	slices.Sort(untracked)
	return untracked, nil
}
