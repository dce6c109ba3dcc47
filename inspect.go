package mohyung

import (
	"context"
	"os"
	"time"

	"github.com/cbcruk/mohyung/internal/store"
)

// ArchiveInfo describes an archive without reading any blob content.
type ArchiveInfo struct {
	// Path is the archive file inspected.
	Path string

	// CreatedAt is when the archive was packed. Zero if not recorded.
	CreatedAt time.Time

	// SourcePath is the tree the archive was packed from.
	SourcePath string

	// SchemaVersion is the archive schema version.
	SchemaVersion string

	// Codec is the codec blobs were compressed with.
	Codec Codec

	// Level is the recorded compression level, or empty if not recorded.
	Level string

	// LockfileName and LockfileHash identify the recorded lockfile, if any.
	LockfileName string
	LockfileHash string

	// Files and Packages are the record counts.
	Files    int
	Packages int

	// Blobs aggregates the stored content.
	Blobs BlobStats

	// Size is the size of the archive file.
	Size int64

	// Metadata holds every metadata entry.
	Metadata map[string]string
}

// Inspect reads the metadata and aggregate counts of archive.
func Inspect(ctx context.Context, archive string) (*ArchiveInfo, error) {
	if err := requireArchive(archive); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, archive, store.WithPoolSize(1))
	if err != nil {
		return nil, err
	}
	info, err := readArchiveInfo(ctx, st)
	// Close checkpoints the write-ahead log, so the file size is read after.
	if cerr := st.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}

	info.Path = archive
	fi, err := os.Stat(archive)
	if err != nil {
		return nil, err
	}
	info.Size = fi.Size()
	return info, nil
}

func readArchiveInfo(ctx context.Context, st *store.Store) (*ArchiveInfo, error) {
	meta, err := st.AllMetadata(ctx)
	if err != nil {
		return nil, err
	}
	codec, err := ParseCodec(meta[store.KeyCompression])
	if err != nil {
		return nil, err
	}

	info := &ArchiveInfo{
		SourcePath:    meta[store.KeySourcePath],
		SchemaVersion: meta[store.KeySchemaVersion],
		Codec:         codec,
		Level:         meta[store.KeyCompressionLevel],
		LockfileName:  meta[store.KeyLockfileName],
		LockfileHash:  meta[store.KeyLockfileHash],
		Metadata:      meta,
	}
	if t, err := time.Parse(time.RFC3339, meta[store.KeyCreatedAt]); err == nil {
		info.CreatedAt = t
	}

	if info.Files, err = st.FileCount(ctx); err != nil {
		return nil, err
	}
	if info.Packages, err = st.PackageCount(ctx); err != nil {
		return nil, err
	}
	if info.Blobs, err = st.BlobStats(ctx); err != nil {
		return nil, err
	}
	return info, nil
}

// Contents lists the records of an archive.
type Contents struct {
	// Packages are ordered by path.
	Packages []PackageInfo

	// Files are ordered by package path, then relative path.
	Files []FileRecord
}

// List reads the package and file records of archive. Blob content is
// not read.
func List(ctx context.Context, archive string) (*Contents, error) {
	if err := requireArchive(archive); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, archive, store.WithPoolSize(1))
	if err != nil {
		return nil, err
	}
	defer st.Close()

	pkgs, err := st.Packages(ctx)
	if err != nil {
		return nil, err
	}
	files, err := st.Files(ctx)
	if err != nil {
		return nil, err
	}
	return &Contents{Packages: pkgs, Files: files}, nil
}
