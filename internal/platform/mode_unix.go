//go:build unix

package platform

import (
	"io/fs"
	"os"
)

// SupportsPermissions reports whether permission bits are captured and restored.
const SupportsPermissions = true

// FileMode returns the permission bits recorded for a file.
func FileMode(info fs.FileInfo) uint32 {
	return uint32(info.Mode().Perm())
}

// ApplyMode sets the permission bits of name within root.
// A zero mode leaves the file untouched.
func ApplyMode(root *os.Root, name string, mode uint32) error {
	if mode == 0 {
		return nil
	}
	return root.Chmod(name, fs.FileMode(mode&PermMask))
}
