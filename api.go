package mohyung

import (
	"github.com/cbcruk/mohyung/internal/archivetype"
	"github.com/cbcruk/mohyung/internal/compress"
	"github.com/cbcruk/mohyung/internal/extract"
	"github.com/cbcruk/mohyung/internal/scan"
)

// Re-export types from internal packages for the public API.
type (
	// PackageInfo identifies one package directory in a tree.
	PackageInfo = archivetype.PackageInfo

	// FileRecord is an archived file joined with its package path.
	FileRecord = archivetype.FileRecordWithPath

	// BlobStats aggregates the archive's blob table.
	BlobStats = archivetype.BlobStats

	// Codec identifies the compression algorithm for blob content.
	Codec = compress.Codec

	// Layout identifies the on-disk convention of a dependency tree.
	Layout = scan.Layout

	// UnpackResult summarizes an extraction.
	UnpackResult = extract.Result

	// Failure records a file that could not be restored.
	Failure = extract.Failure
)

// Re-export codec constants.
const (
	CodecZstd = compress.CodecZstd
	CodecGzip = compress.CodecGzip
	CodecLZ4  = compress.CodecLZ4

	// DefaultCodec is used when no codec is configured.
	DefaultCodec = compress.DefaultCodec
)

// Re-export compression level bounds.
const (
	MinLevel     = compress.MinLevel
	MaxLevel     = compress.MaxLevel
	DefaultLevel = compress.DefaultLevel
)

// Re-export extraction defaults.
const (
	DefaultCacheThreshold = extract.DefaultCacheThreshold
	DefaultBatchBytes     = extract.DefaultBatchBytes
)

// Re-export layout constants.
const (
	LayoutFlat = scan.LayoutFlat
	LayoutPnpm = scan.LayoutPnpm
)

// ParseCodec parses a codec name. The empty string selects DefaultCodec.
func ParseCodec(name string) (Codec, error) {
	return compress.ParseCodec(name)
}
