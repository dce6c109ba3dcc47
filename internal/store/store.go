// Package store persists snapshots in a single-file SQLite database.
//
// Blobs are keyed by the fingerprint of their original content and are
// written at most once. Packages are unique by (name, version, path) and
// files by (package, relative path); re-inserting either updates the
// existing row in place.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/cbcruk/mohyung/internal/archivetype"
)

// DefaultPoolSize is the number of pooled connections.
const DefaultPoolSize = 4

// ErrPathRequired is returned by Open when no path is given.
var ErrPathRequired = errors.New("store: path is required")

// pragmas are applied to every pooled connection.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=OFF",
	"PRAGMA cache_size=-8192",
	"PRAGMA mmap_size=268435456",
	"PRAGMA temp_store=MEMORY",
}

// Store is an open archive.
//
// Store is safe for concurrent use. SQLite serializes writers.
type Store struct {
	pool   *sqlitex.Pool
	path   string
	logger *slog.Logger
}

// Option configures Open.
type Option func(*options)

type options struct {
	poolSize int
	logger   *slog.Logger
}

// WithPoolSize sets the number of pooled connections.
func WithPoolSize(n int) Option {
	return func(o *options) {
		o.poolSize = n
	}
}

// WithLogger sets the logger for store operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open opens or creates the archive at path, ensures the schema exists,
// and stamps the schema version.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, ErrPathRequired
	}

	o := options{poolSize: DefaultPoolSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.poolSize <= 0 {
		o.poolSize = DefaultPoolSize
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    o.poolSize,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	s := &Store{pool: pool, path: path, logger: o.logger}
	if err := s.init(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}

	s.logger.Debug("archive opened", "path", path, "pool_size", o.poolSize)
	return s, nil
}

func prepareConn(conn *sqlite.Conn) error {
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("store: %s: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) init(ctx context.Context) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("store: create schema: %w", err)
	}
	if err := setMetadata(conn, KeySchemaVersion, SchemaVersion); err != nil {
		return err
	}
	return nil
}

// Close closes the archive. It blocks until all borrowed connections are
// returned.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("store: close %s: %w", s.path, err)
	}
	s.logger.Debug("archive closed", "path", s.path)
	return nil
}

// Path returns the location of the archive file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: take connection: %w", err)
	}
	return conn, nil
}

// withConn runs fn on a pooled connection.
func (s *Store) withConn(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)
	return fn(conn)
}

// Batch runs fn inside a single immediate transaction. The transaction is
// committed when fn returns nil and rolled back otherwise, so either all of
// fn's writes become visible or none do.
func (s *Store) Batch(ctx context.Context, fn func(tx *Tx) error) (err error) {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer endFn(&err)

	return fn(&Tx{conn: conn})
}

// Tx is the write handle passed to Batch callbacks. It must not be used
// after the callback returns.
type Tx struct {
	conn *sqlite.Conn
}

// SetMetadata stores value under key, replacing any previous value.
func (tx *Tx) SetMetadata(key, value string) error {
	return setMetadata(tx.conn, key, value)
}

// UpsertPackage returns the id of the package row matching info,
// inserting it first if needed.
func (tx *Tx) UpsertPackage(info archivetype.PackageInfo) (int64, error) {
	return upsertPackage(tx.conn, info)
}

// PutBlob stores blob unless a blob with the same hash already exists.
func (tx *Tx) PutBlob(blob archivetype.BlobInfo) error {
	return putBlob(tx.conn, blob)
}

// UpsertFile stores rec, replacing the blob, mode, and mtime of an
// existing row for the same package and relative path.
func (tx *Tx) UpsertFile(rec archivetype.FileRecord) error {
	return upsertFile(tx.conn, rec)
}

// SetMetadata stores value under key, replacing any previous value.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) error {
		return setMetadata(conn, key, value)
	})
}

// Metadata returns the value stored under key. ok is false if the key
// is absent.
func (s *Store) Metadata(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, selectMetadataSQL, &sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				value = stmt.ColumnText(0)
				ok = true
				return nil
			},
		})
	})
	if err != nil {
		return "", false, fmt.Errorf("store: read metadata %q: %w", key, err)
	}
	return value, ok, nil
}

// AllMetadata returns every metadata entry.
func (s *Store) AllMetadata(ctx context.Context) (map[string]string, error) {
	entries := make(map[string]string)
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, selectAllMetadataSQL, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				entries[stmt.ColumnText(0)] = stmt.ColumnText(1)
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("store: read metadata: %w", err)
	}
	return entries, nil
}

// UpsertPackage returns the id of the package row matching info,
// inserting it first if needed.
func (s *Store) UpsertPackage(ctx context.Context, info archivetype.PackageInfo) (id int64, err error) {
	err = s.withConn(ctx, func(conn *sqlite.Conn) error {
		id, err = upsertPackage(conn, info)
		return err
	})
	return id, err
}

// PutBlob stores blob unless a blob with the same hash already exists.
func (s *Store) PutBlob(ctx context.Context, blob archivetype.BlobInfo) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) error {
		return putBlob(conn, blob)
	})
}

// Blob returns the compressed content stored under hash. ok is false if
// no such blob exists.
func (s *Store) Blob(ctx context.Context, hash string) (content []byte, ok bool, err error) {
	err = s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, selectBlobSQL, &sqlitex.ExecOptions{
			Args: []any{hash},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				content = make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, content)
				ok = true
				return nil
			},
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("store: read blob %s: %w", hash, err)
	}
	return content, ok, nil
}

// UpsertFile stores rec, replacing the blob, mode, and mtime of an
// existing row for the same package and relative path.
func (s *Store) UpsertFile(ctx context.Context, rec archivetype.FileRecord) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) error {
		return upsertFile(conn, rec)
	})
}

// Files returns every file record joined with its package path, ordered
// by package path and then relative path.
func (s *Store) Files(ctx context.Context) ([]archivetype.FileRecordWithPath, error) {
	var files []archivetype.FileRecordWithPath
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, selectFilesSQL, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				files = append(files, archivetype.FileRecordWithPath{
					FileRecord: archivetype.FileRecord{
						ID:           stmt.ColumnInt64(0),
						PackageID:    stmt.ColumnInt64(1),
						RelativePath: stmt.ColumnText(2),
						BlobHash:     stmt.ColumnText(3),
						Mode:         uint32(stmt.ColumnInt64(4)), //nolint:gosec // stored from a uint32
						MTime:        stmt.ColumnInt64(5),
					},
					PackagePath: stmt.ColumnText(6),
				})
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("store: read files: %w", err)
	}
	return files, nil
}

// Packages returns every package record ordered by path.
func (s *Store) Packages(ctx context.Context) ([]archivetype.PackageInfo, error) {
	var pkgs []archivetype.PackageInfo
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, selectPackagesSQL, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				pkgs = append(pkgs, archivetype.PackageInfo{
					ID:      stmt.ColumnInt64(0),
					Name:    stmt.ColumnText(1),
					Version: stmt.ColumnText(2),
					Path:    stmt.ColumnText(3),
				})
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("store: read packages: %w", err)
	}
	return pkgs, nil
}

// FileCount returns the number of file records.
func (s *Store) FileCount(ctx context.Context) (int, error) {
	return s.count(ctx, countFilesSQL)
}

// PackageCount returns the number of package records.
func (s *Store) PackageCount(ctx context.Context) (int, error) {
	return s.count(ctx, countPackagesSQL)
}

func (s *Store) count(ctx context.Context, query string) (n int, err error) {
	err = s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				n = stmt.ColumnInt(0)
				return nil
			},
		})
	})
	if err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

// BlobStats returns the blob count and the summed original and
// compressed sizes. An empty archive yields zeros.
func (s *Store) BlobStats(ctx context.Context) (archivetype.BlobStats, error) {
	var stats archivetype.BlobStats
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, blobStatsSQL, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				stats.TotalBlobs = stmt.ColumnInt(0)
				stats.TotalOriginalSize = uint64(stmt.ColumnInt64(1))   //nolint:gosec // sums of sizes
				stats.TotalCompressedSize = uint64(stmt.ColumnInt64(2)) //nolint:gosec // sums of sizes
				return nil
			},
		})
	})
	if err != nil {
		return archivetype.BlobStats{}, fmt.Errorf("store: blob stats: %w", err)
	}
	return stats, nil
}

func setMetadata(conn *sqlite.Conn, key, value string) error {
	err := sqlitex.Execute(conn, upsertMetadataSQL, &sqlitex.ExecOptions{
		Args: []any{key, value},
	})
	if err != nil {
		return fmt.Errorf("store: write metadata %q: %w", key, err)
	}
	return nil
}

func upsertPackage(conn *sqlite.Conn, info archivetype.PackageInfo) (int64, error) {
	var id int64
	err := sqlitex.Execute(conn, upsertPackageSQL, &sqlitex.ExecOptions{
		Args: []any{info.Name, info.Version, info.Path},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			id = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("store: upsert package %s: %w", info.Path, err)
	}
	return id, nil
}

func putBlob(conn *sqlite.Conn, blob archivetype.BlobInfo) error {
	content := blob.Content
	if content == nil {
		content = []byte{}
	}
	err := sqlitex.Execute(conn, insertBlobSQL, &sqlitex.ExecOptions{
		Args: []any{
			blob.Hash,
			content,
			int64(blob.OriginalSize),   //nolint:gosec // file sizes fit in int64
			int64(blob.CompressedSize), //nolint:gosec // file sizes fit in int64
		},
	})
	if err != nil {
		return fmt.Errorf("store: put blob %s: %w", blob.Hash, err)
	}
	return nil
}

func upsertFile(conn *sqlite.Conn, rec archivetype.FileRecord) error {
	err := sqlitex.Execute(conn, upsertFileSQL, &sqlitex.ExecOptions{
		Args: []any{
			rec.PackageID,
			rec.RelativePath,
			rec.BlobHash,
			int64(rec.Mode),
			rec.MTime,
		},
	})
	if err != nil {
		return fmt.Errorf("store: upsert file %s: %w", rec.RelativePath, err)
	}
	return nil
}
