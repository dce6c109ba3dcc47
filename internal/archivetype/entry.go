// Package archivetype holds the entities shared by the scanner, the store,
// and the pipelines that move data between them.
package archivetype

// PackageInfo identifies one package directory in a dependency tree.
type PackageInfo struct {
	// ID is assigned by the store. Zero until the package is persisted.
	ID int64

	// Name is the package name from its descriptor ("unknown" if absent).
	Name string

	// Version is the package version from its descriptor ("0.0.0" if absent).
	Version string

	// Path is the slash-separated location of the package directory
	// relative to the tree root (e.g. "lodash", "@scope/pkg",
	// ".pnpm/lodash@4.0.0/node_modules/lodash").
	Path string
}

// FileEntry is a regular file discovered on disk before it is persisted.
type FileEntry struct {
	// RelativePath is the slash-separated path relative to the package root.
	RelativePath string

	// AbsolutePath is the location of the file on disk.
	AbsolutePath string

	// Mode holds the permission bits.
	Mode uint32

	// Size is the logical file size in bytes.
	Size uint64

	// MTime is the modification time in milliseconds since the Unix epoch.
	MTime int64
}

// BlobInfo is deduplicated, compressed content keyed by its fingerprint.
type BlobInfo struct {
	Hash           string
	Content        []byte
	OriginalSize   uint64
	CompressedSize uint64
}

// FileRecord is a persisted reference from a package path to a blob.
type FileRecord struct {
	ID           int64
	PackageID    int64
	RelativePath string
	BlobHash     string
	Mode         uint32
	MTime        int64
}

// FileRecordWithPath pairs a file record with its owning package's path.
type FileRecordWithPath struct {
	FileRecord
	PackagePath string
}

// TreePath returns the slash-separated path of the file relative to the
// dependency tree root.
func (r FileRecordWithPath) TreePath() string {
	if r.PackagePath == "" {
		return r.RelativePath
	}
	return r.PackagePath + "/" + r.RelativePath
}

// BlobStats aggregates the blob table.
type BlobStats struct {
	TotalBlobs          int
	TotalOriginalSize   uint64
	TotalCompressedSize uint64
}
