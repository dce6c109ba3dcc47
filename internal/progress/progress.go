// Package progress defines the progress events emitted by pack, unpack,
// and status runs.
package progress

// Event represents a progress update.
type Event struct {
	// Stage identifies the current phase of the operation.
	Stage Stage

	// Current is the number of items completed in this stage.
	Current int

	// Total is the number of items in this stage.
	// Zero indicates the total is unknown.
	Total int

	// Message is a short human-readable note (a path, or "Done").
	Message string
}

// Stage identifies the current phase of an operation.
type Stage uint8

// Progress stages for pack, unpack, and status.
const (
	// StageScanning indicates package directories are being collected.
	StageScanning Stage = iota

	// StageCompressing indicates files are being read, hashed, and compressed.
	StageCompressing

	// StageCommitting indicates processed files are being written to the archive.
	StageCommitting

	// StageReading indicates blobs are being fetched and decompressed.
	StageReading

	// StageWriting indicates restored files are being written to disk.
	StageWriting

	// StageComparing indicates live files are being fingerprinted and compared.
	StageComparing
)

// String returns the string representation of the stage.
func (s Stage) String() string {
	switch s {
	case StageScanning:
		return "scanning"
	case StageCompressing:
		return "compressing"
	case StageCommitting:
		return "committing"
	case StageReading:
		return "reading"
	case StageWriting:
		return "writing"
	case StageComparing:
		return "comparing"
	default:
		return "unknown"
	}
}

// Func receives progress updates.
// Implementations must be safe for concurrent calls.
type Func func(Event)

// Report sends an event to fn if it is non-nil.
func (fn Func) Report(stage Stage, current, total int, message string) {
	if fn == nil {
		return
	}
	fn(Event{Stage: stage, Current: current, Total: total, Message: message})
}
