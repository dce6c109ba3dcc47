package extract

import (
	"fmt"
	"os"
	"path"
	"sync/atomic"
	"time"

	"github.com/cbcruk/mohyung/internal/platform"
)

// writer creates files beneath root.
//
// Files are written to a temporary name in the target directory and
// renamed into place once their content and metadata are final, so a
// partially written file is never visible at its destination.
type writer struct {
	root          *os.Root
	preserveTimes bool
	seq           atomic.Uint64
}

func (w *writer) write(j job) error {
	dir := path.Dir(j.path)
	if dir != "." {
		if err := w.root.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	tmp := path.Join(dir, fmt.Sprintf(".%s.mohyung-%d", path.Base(j.path), w.seq.Add(1)))
	f, err := w.root.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := f.Write(j.content); err != nil {
		_ = f.Close()          //nolint:errcheck // cleaning up
		_ = w.root.Remove(tmp) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("write: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = w.root.Remove(tmp) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := platform.ApplyMode(w.root, tmp, j.mode); err != nil {
		_ = w.root.Remove(tmp) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("chmod: %w", err)
	}

	if w.preserveTimes {
		mtime := time.UnixMilli(j.mtime)
		if err := w.root.Chtimes(tmp, mtime, mtime); err != nil {
			_ = w.root.Remove(tmp) //nolint:errcheck // best-effort cleanup
			return fmt.Errorf("chtimes: %w", err)
		}
	}

	if err := w.root.Rename(tmp, j.path); err != nil {
		_ = w.root.Remove(tmp) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("rename to %s: %w", j.path, err)
	}
	return nil
}
