package mohyung

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cbcruk/mohyung/internal/archivetype"
	"github.com/cbcruk/mohyung/internal/compress"
	"github.com/cbcruk/mohyung/internal/hashing"
	"github.com/cbcruk/mohyung/internal/parallel"
	"github.com/cbcruk/mohyung/internal/progress"
	"github.com/cbcruk/mohyung/internal/scan"
	"github.com/cbcruk/mohyung/internal/store"
)

// PackResult summarizes a Pack operation.
type PackResult struct {
	// Archive is the absolute path of the written archive.
	Archive string

	// Source is the resolved path of the packed tree.
	Source string

	// Layout is the detected layout of the tree.
	Layout Layout

	// Packages is the number of packages found.
	Packages int

	// Files is the number of files archived.
	Files int

	// Skipped is the number of files that could not be read.
	Skipped int

	// TotalSize is the logical size of all scanned files.
	TotalSize uint64

	// ArchiveSize is the size of the archive file.
	ArchiveSize int64

	// Blobs is the number of distinct contents stored.
	Blobs int

	// Deduplicated counts files whose content was already stored by an
	// earlier file in the same run.
	Deduplicated int

	// Lockfile is the name of the recorded lockfile, if any.
	Lockfile string

	// Duration is the wall time of the run.
	Duration time.Duration
}

// CompressionRatio returns the space saved by the archive relative to the
// source tree, as a percentage. It is zero for an empty tree and negative
// when the archive is larger than its source.
func (r *PackResult) CompressionRatio() float64 {
	if r.TotalSize == 0 {
		return 0
	}
	return (1 - float64(r.ArchiveSize)/float64(r.TotalSize)) * 100
}

// processedFile is a file that has been read, fingerprinted, and compressed.
type processedFile struct {
	pkg          int
	relPath      string
	hash         string
	compressed   []byte
	originalSize uint64
	mode         uint32
	mtime        int64
}

// packItem pairs a scanned file with the index of its package.
type packItem struct {
	pkg  int
	file archivetype.FileEntry
}

// Pack snapshots the dependency tree at source into a fresh archive at
// output.
//
// Any existing archive at output is removed first. The new archive is
// built beside output and renamed into place only after every write has
// committed, so a failed run leaves no archive behind. Files that cannot
// be read are skipped and counted in PackResult.Skipped.
func Pack(ctx context.Context, source, output string, opts ...PackOption) (*PackResult, error) {
	start := time.Now()
	cfg := defaultPackConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	log := loggerOrDiscard(cfg.logger)

	if err := compress.ValidateCodec(cfg.codec); err != nil {
		return nil, err
	}
	if err := compress.ValidateLevel(cfg.level); err != nil {
		return nil, err
	}

	src, err := resolveDir(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, source)
	}
	out, err := filepath.Abs(output)
	if err != nil {
		return nil, fmt.Errorf("resolve output %s: %w", output, err)
	}

	log.Info("scanning", "source", src)
	tree, err := scan.Scan(ctx, src,
		scan.WithWorkers(cfg.workers),
		scan.WithLogger(log),
		scan.WithProgress(cfg.progress),
	)
	if err != nil {
		return nil, err
	}

	if err := removeArchive(out); err != nil {
		return nil, fmt.Errorf("remove stale archive: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(out), "."+filepath.Base(out)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close() //nolint:errcheck // sqlite reopens the empty file
	committed := false
	defer func() {
		if !committed {
			_ = removeArchive(tmpPath) //nolint:errcheck // best-effort cleanup
		}
	}()

	st, err := store.Open(ctx, tmpPath, store.WithLogger(log))
	if err != nil {
		return nil, err
	}
	storeOpen := true
	defer func() {
		if storeOpen {
			_ = st.Close() //nolint:errcheck // already failing
		}
	}()

	meta := map[string]string{
		store.KeyCreatedAt:        time.Now().UTC().Format(time.RFC3339),
		store.KeySourcePath:       src,
		store.KeyCompression:      cfg.codec.String(),
		store.KeyCompressionLevel: strconv.Itoa(cfg.level),
	}
	res := &PackResult{
		Archive:   out,
		Source:    src,
		Layout:    tree.Layout,
		Packages:  len(tree.Packages),
		TotalSize: tree.TotalSize,
	}
	if cfg.lockfile {
		if name, hash, ok := findLockfile(src, cfg.lockfileNames); ok {
			meta[store.KeyLockfileHash] = hash
			meta[store.KeyLockfileName] = name
			res.Lockfile = name
			log.Debug("lockfile recorded", "name", name, "hash", hash)
		}
	}

	processed, err := compressFiles(ctx, tree, cfg)
	if err != nil {
		return nil, err
	}
	res.Files = len(processed)
	res.Skipped = tree.TotalFiles - len(processed)

	log.Info("committing", "file_count", len(processed))
	blobs, dedup, err := commit(ctx, st, tree, processed, meta, cfg.progress)
	if err != nil {
		return nil, err
	}
	res.Blobs, res.Deduplicated = blobs, dedup

	storeOpen = false
	if err := st.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmpPath, out); err != nil {
		return nil, fmt.Errorf("move archive into place: %w", err)
	}
	committed = true

	info, err := os.Stat(out)
	if err != nil {
		return nil, err
	}
	res.ArchiveSize = info.Size()
	res.Duration = time.Since(start)

	log.Info("pack complete",
		"archive", out,
		"packages", res.Packages,
		"file_count", res.Files,
		"skipped", res.Skipped,
		"blobs", res.Blobs,
		"deduplicated", res.Deduplicated,
		"archive_size", res.ArchiveSize,
	)
	return res, nil
}

// compressFiles reads, fingerprints, and compresses every scanned file in
// parallel. Unreadable files are dropped.
func compressFiles(ctx context.Context, tree *scan.Result, cfg packConfig) ([]processedFile, error) {
	items := make([]packItem, 0, tree.TotalFiles)
	for i, pkg := range tree.Packages {
		for _, f := range pkg.Files {
			items = append(items, packItem{pkg: i, file: f})
		}
	}

	log := loggerOrDiscard(cfg.logger)
	var done atomic.Int64
	return parallel.FilterMap(ctx, items, cfg.workers, func(_ context.Context, it packItem) (processedFile, bool) {
		content, err := os.ReadFile(it.file.AbsolutePath)
		if err != nil {
			log.Warn("skipped unreadable file", "path", it.file.AbsolutePath, "error", err)
			return processedFile{}, false
		}
		compressed, err := cfg.codec.Compress(content, cfg.level)
		if err != nil {
			log.Warn("skipped file that failed to compress", "path", it.file.AbsolutePath, "error", err)
			return processedFile{}, false
		}

		cfg.progress.Report(progress.StageCompressing, int(done.Add(1)), len(items), it.file.RelativePath)
		return processedFile{
			pkg:          it.pkg,
			relPath:      it.file.RelativePath,
			hash:         hashing.Fingerprint(content),
			compressed:   compressed,
			originalSize: uint64(len(content)),
			mode:         it.file.Mode,
			mtime:        it.file.MTime,
		}, true
	})
}

// commit writes metadata, packages, blobs, and file records in one
// transaction. It returns the number of distinct blobs and the number of
// files whose content was already written earlier in the run.
func commit(ctx context.Context, st *store.Store, tree *scan.Result, processed []processedFile, meta map[string]string, report ProgressFunc) (blobs, dedup int, err error) {
	err = st.Batch(ctx, func(tx *store.Tx) error {
		for k, v := range meta {
			if err := tx.SetMetadata(k, v); err != nil {
				return err
			}
		}

		packageIDs := make([]int64, len(tree.Packages))
		seen := make(map[string]struct{}, len(processed))
		for i, pf := range processed {
			if err := ctx.Err(); err != nil {
				return err
			}

			id := packageIDs[pf.pkg]
			if id == 0 {
				newID, err := tx.UpsertPackage(tree.Packages[pf.pkg].Info)
				if err != nil {
					return err
				}
				id = newID
				packageIDs[pf.pkg] = id
			}

			if _, ok := seen[pf.hash]; ok {
				dedup++
			} else {
				err := tx.PutBlob(archivetype.BlobInfo{
					Hash:           pf.hash,
					Content:        pf.compressed,
					OriginalSize:   pf.originalSize,
					CompressedSize: uint64(len(pf.compressed)),
				})
				if err != nil {
					return err
				}
				seen[pf.hash] = struct{}{}
			}

			err := tx.UpsertFile(archivetype.FileRecord{
				PackageID:    id,
				RelativePath: pf.relPath,
				BlobHash:     pf.hash,
				Mode:         pf.mode,
				MTime:        pf.mtime,
			})
			if err != nil {
				return err
			}
			report.Report(progress.StageCommitting, i+1, len(processed), pf.relPath)
		}
		blobs = len(seen)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return blobs, dedup, nil
}

// resolveDir returns the absolute, symlink-free path of an existing
// directory.
func resolveDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", resolved)
	}
	return resolved, nil
}

// removeArchive deletes an archive and its write-ahead and shared-memory
// side files. Missing files are ignored.
func removeArchive(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}
