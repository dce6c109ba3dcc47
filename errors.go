package mohyung

import (
	"errors"

	"github.com/cbcruk/mohyung/internal/compress"
	"github.com/cbcruk/mohyung/internal/extract"
)

// Errors returned by Pack, Unpack, Status, and Inspect.
var (
	// ErrSourceNotFound is returned when the tree to pack does not exist.
	ErrSourceNotFound = errors.New("mohyung: source not found")

	// ErrArchiveNotFound is returned when the archive file does not exist.
	ErrArchiveNotFound = errors.New("mohyung: archive not found")

	// ErrOutputExists is returned when the unpack destination exists and
	// overwriting was not requested.
	ErrOutputExists = errors.New("mohyung: output already exists")

	// ErrTreeNotFound is returned when the tree to compare does not exist.
	ErrTreeNotFound = errors.New("mohyung: tree not found")
)

// Errors re-exported from internal packages.
var (
	// ErrInvalidLevel is returned for a compression level outside [MinLevel, MaxLevel].
	ErrInvalidLevel = compress.ErrInvalidLevel

	// ErrUnknownCodec is returned for an unrecognized codec name.
	ErrUnknownCodec = compress.ErrUnknownCodec

	// ErrDecompression is recorded for blobs that cannot be decoded.
	ErrDecompression = compress.ErrDecompression

	// ErrInvalidPath is recorded for archived paths that would escape the
	// unpack destination.
	ErrInvalidPath = extract.ErrInvalidPath

	// ErrInvalidHash is recorded for files whose blob hash is malformed.
	ErrInvalidHash = extract.ErrInvalidHash
)
