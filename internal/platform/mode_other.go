//go:build !unix

package platform

import (
	"io/fs"
	"os"
)

// SupportsPermissions reports whether permission bits are captured and restored.
const SupportsPermissions = false

// FileMode returns DefaultMode on platforms without POSIX permission bits.
func FileMode(fs.FileInfo) uint32 {
	return DefaultMode
}

// ApplyMode is a no-op on platforms without POSIX permission bits.
func ApplyMode(*os.Root, string, uint32) error {
	return nil
}
