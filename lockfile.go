package mohyung

import (
	"path/filepath"

	"github.com/cbcruk/mohyung/internal/hashing"
)

// findLockfile looks in the directory containing tree for the first of
// names that exists and returns its name and fingerprint.
func findLockfile(tree string, names []string) (name, hash string, ok bool) {
	dir := filepath.Dir(tree)
	for _, name := range names {
		hash, err := hashing.FingerprintFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		return name, hash, true
	}
	return "", "", false
}

// lockfileDrift reports whether the lockfile recorded as name with
// fingerprint want is missing or different next to tree.
func lockfileDrift(tree, name, want string) bool {
	if name == "" {
		name = DefaultLockfileNames[0]
	}
	got, err := hashing.FingerprintFile(filepath.Join(filepath.Dir(tree), name))
	if err != nil {
		return true
	}
	return got != want
}
