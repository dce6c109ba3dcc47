package mohyung

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cbcruk/mohyung/internal/diff"
	"github.com/cbcruk/mohyung/internal/store"
)

// StatusResult classifies every archived file against a live tree.
type StatusResult struct {
	// Unchanged counts files whose live content matches the archive.
	Unchanged int

	// Modified lists files whose live content differs or cannot be read.
	Modified []string

	// OnlyInArchive lists archived files missing from the tree.
	OnlyInArchive []string

	// OnlyInFilesystem lists package files not in the archive. It is only
	// filled when StatusWithUntracked is set.
	OnlyInFilesystem []string

	// LockfileDrift is true when the archive recorded a lockfile and the
	// lockfile next to the tree is missing or different.
	LockfileDrift bool
}

// Clean reports whether every archived file is present and unchanged.
func (r *StatusResult) Clean() bool {
	return len(r.Modified) == 0 && len(r.OnlyInArchive) == 0
}

// Status compares the files recorded in archive with the tree at tree.
// Paths in the result are relative to tree and sorted.
func Status(ctx context.Context, archive, tree string, opts ...StatusOption) (*StatusResult, error) {
	var cfg statusConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	log := loggerOrDiscard(cfg.logger)

	if err := requireArchive(archive); err != nil {
		return nil, err
	}
	root, err := filepath.Abs(tree)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTreeNotFound, tree)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrTreeNotFound, tree)
	}

	st, err := store.Open(ctx, archive, store.WithLogger(log))
	if err != nil {
		return nil, err
	}
	defer st.Close()

	files, err := st.Files(ctx)
	if err != nil {
		return nil, err
	}

	log.Info("comparing", "archive", archive, "tree", root, "file_count", len(files))
	d, err := diff.Compare(ctx, files, root,
		diff.WithWorkers(cfg.workers),
		diff.WithUntracked(cfg.untracked),
		diff.WithLogger(log),
		diff.WithProgress(cfg.progress),
	)
	if err != nil {
		return nil, err
	}

	res := &StatusResult{
		Unchanged:        d.Unchanged,
		Modified:         d.Modified,
		OnlyInArchive:    d.OnlyInArchive,
		OnlyInFilesystem: d.OnlyInFilesystem,
	}

	meta, err := st.AllMetadata(ctx)
	if err != nil {
		return nil, err
	}
	if want, ok := meta[store.KeyLockfileHash]; ok {
		res.LockfileDrift = lockfileDrift(root, meta[store.KeyLockfileName], want)
	}
	return res, nil
}
