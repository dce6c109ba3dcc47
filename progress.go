package mohyung

import "github.com/cbcruk/mohyung/internal/progress"

// Re-export progress types.
type (
	// ProgressEvent represents a progress update during pack, unpack, or status.
	ProgressEvent = progress.Event

	// ProgressStage identifies the current phase of an operation.
	ProgressStage = progress.Stage

	// ProgressFunc receives progress updates.
	// Implementations must be safe for concurrent calls.
	ProgressFunc = progress.Func
)

// Re-export progress stage constants.
const (
	// StageScanning indicates package directories are being collected.
	StageScanning = progress.StageScanning

	// StageCompressing indicates files are being read, hashed, and compressed.
	StageCompressing = progress.StageCompressing

	// StageCommitting indicates processed files are being written to the archive.
	StageCommitting = progress.StageCommitting

	// StageReading indicates blobs are being fetched and decompressed.
	StageReading = progress.StageReading

	// StageWriting indicates restored files are being written to disk.
	StageWriting = progress.StageWriting

	// StageComparing indicates live files are being fingerprinted.
	StageComparing = progress.StageComparing
)
