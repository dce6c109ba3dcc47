// Package scan discovers the packages of a dependency tree and the files
// that belong to each of them.
package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cbcruk/mohyung/internal/archivetype"
	"github.com/cbcruk/mohyung/internal/parallel"
	"github.com/cbcruk/mohyung/internal/platform"
	"github.com/cbcruk/mohyung/internal/progress"
)

// Descriptor defaults for fields missing from a parseable package.json.
const (
	DefaultName    = "unknown"
	DefaultVersion = "0.0.0"
)

// descriptorName is the per-package descriptor file.
const descriptorName = "package.json"

// ErrRootNotFound is returned when the tree root does not exist.
var ErrRootNotFound = errors.New("scan: root not found")

// Package is a discovered package and its regular files.
type Package struct {
	Info  archivetype.PackageInfo
	Files []archivetype.FileEntry
}

// Result is the outcome of a scan.
type Result struct {
	Layout     Layout
	Packages   []Package
	TotalFiles int
	TotalSize  uint64
}

// Option configures a scan.
type Option func(*scanner)

// WithWorkers sets the number of packages scanned concurrently.
// Zero or negative uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(s *scanner) {
		s.workers = n
	}
}

// WithLogger sets the logger for scan operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(s *scanner) {
		s.logger = logger
	}
}

// WithProgress sets a callback that receives a starting and a final event.
func WithProgress(fn progress.Func) Option {
	return func(s *scanner) {
		s.progress = fn
	}
}

type scanner struct {
	workers  int
	logger   *slog.Logger
	progress progress.Func
}

// log returns the logger, falling back to a discard logger if nil.
func (s *scanner) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Scan walks the dependency tree at root.
//
// Package directories without a parseable package.json are left out of the
// result. Failing to list the root, the .pnpm store, or a scope directory
// fails the whole scan.
func Scan(ctx context.Context, root string, opts ...Option) (*Result, error) {
	s := &scanner{}
	for _, opt := range opts {
		opt(s)
	}

	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRootNotFound, root)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan: not a directory: %s", root)
	}

	layout := DetectLayout(root)
	dirs, err := findPackageDirs(root, layout)
	if err != nil {
		return nil, fmt.Errorf("scan: list packages: %w", err)
	}
	s.log().Debug("package directories found", "root", root, "layout", layout.String(), "count", len(dirs))

	s.progress.Report(progress.StageScanning, 0, len(dirs), "Collecting packages...")

	packages, err := parallel.FilterMap(ctx, dirs, s.workers, s.scanPackage)
	if err != nil {
		return nil, err
	}

	res := &Result{Layout: layout, Packages: packages}
	for _, pkg := range packages {
		res.TotalFiles += len(pkg.Files)
		for _, f := range pkg.Files {
			res.TotalSize += f.Size
		}
	}

	s.progress.Report(progress.StageScanning, len(dirs), len(dirs), "Done")
	s.log().Info("scan complete",
		"root", root,
		"layout", layout.String(),
		"packages", len(res.Packages),
		"file_count", res.TotalFiles,
		"total_size", res.TotalSize,
	)
	return res, nil
}

// scanPackage reads the descriptor of dir and collects its files.
// It reports ok=false when dir is not a package.
func (s *scanner) scanPackage(ctx context.Context, dir packageDir) (Package, bool) {
	name, version, ok := readDescriptor(filepath.Join(dir.path, descriptorName))
	if !ok {
		s.log().Debug("skipped directory without package descriptor", "path", dir.relPath)
		return Package{}, false
	}

	files, err := s.collectFiles(ctx, dir.path)
	if err != nil {
		return Package{}, false
	}

	return Package{
		Info: archivetype.PackageInfo{
			Name:    name,
			Version: version,
			Path:    dir.relPath,
		},
		Files: files,
	}, true
}

// collectFiles walks pkgRoot and returns its regular files. Entries that
// cannot be read are skipped.
func (s *scanner) collectFiles(ctx context.Context, pkgRoot string) ([]archivetype.FileEntry, error) {
	var files []archivetype.FileEntry
	err := filepath.WalkDir(pkgRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			s.log().Debug("skipped unreadable entry", "path", path, "error", walkErr)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			s.log().Debug("skipped unreadable entry", "path", path, "error", err)
			return nil
		}
		rel, err := filepath.Rel(pkgRoot, path)
		if err != nil {
			return nil
		}

		files = append(files, archivetype.FileEntry{
			RelativePath: filepath.ToSlash(rel),
			AbsolutePath: path,
			Mode:         platform.FileMode(info),
			Size:         uint64(info.Size()), //nolint:gosec // regular file sizes are non-negative
			MTime:        info.ModTime().UnixMilli(),
		})
		return nil
	})
	return files, err
}

// readDescriptor parses a package.json and returns its name and version,
// substituting defaults for missing fields. ok is false when the file
// cannot be read or is not valid JSON.
func readDescriptor(path string) (name, version string, ok bool) {
	data, err := os.ReadFile(path) //nolint:gosec // path is inside the scanned tree
	if err != nil {
		return "", "", false
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", "", false
	}
	fields, _ := doc.(map[string]any)

	name, isString := fields["name"].(string)
	if !isString {
		name = DefaultName
	}
	version, isString = fields["version"].(string)
	if !isString {
		version = DefaultVersion
	}
	return name, version, true
}
