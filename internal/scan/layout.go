package scan

import (
	"os"
	"path/filepath"
)

// Layout identifies the on-disk convention of a dependency tree.
type Layout uint8

const (
	// LayoutFlat has one directory per package directly under the root,
	// with scoped packages nested one level under their "@scope" directory.
	LayoutFlat Layout = iota

	// LayoutPnpm keeps packages under .pnpm/<store-key>/node_modules/<pkg>.
	LayoutPnpm
)

// pnpmDir is the store directory whose presence selects LayoutPnpm.
const pnpmDir = ".pnpm"

// String returns the name of the layout.
func (l Layout) String() string {
	switch l {
	case LayoutFlat:
		return "flat"
	case LayoutPnpm:
		return "pnpm"
	default:
		return "unknown"
	}
}

// DetectLayout returns LayoutPnpm if root contains a .pnpm entry and
// LayoutFlat otherwise.
func DetectLayout(root string) Layout {
	if _, err := os.Stat(filepath.Join(root, pnpmDir)); err == nil {
		return LayoutPnpm
	}
	return LayoutFlat
}

// packageDir is a candidate package directory.
type packageDir struct {
	path    string // absolute location on disk
	relPath string // slash-separated location relative to the tree root
}

// flatReserved are root entries that are never packages.
var flatReserved = map[string]bool{
	".bin":   true,
	".cache": true,
	pnpmDir:  true,
}

// pnpmReserved are entries of a store key's node_modules that are never packages.
var pnpmReserved = map[string]bool{
	".bin": true,
}

// findPackageDirs enumerates candidate package directories for layout.
func findPackageDirs(root string, layout Layout) ([]packageDir, error) {
	if layout == LayoutPnpm {
		return findPnpmPackageDirs(root)
	}
	return collectPackageDirs(nil, root, "", flatReserved)
}

// findPnpmPackageDirs walks .pnpm/<store-key>/node_modules for every store
// key that does not start with a dot.
func findPnpmPackageDirs(root string) ([]packageDir, error) {
	store := filepath.Join(root, pnpmDir)
	entries, err := os.ReadDir(store)
	if err != nil {
		return nil, err
	}

	var dirs []packageDir
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		key := entry.Name()
		if key == "node_modules" || key[0] == '.' {
			continue
		}

		inner := filepath.Join(store, key, "node_modules")
		if _, err := os.Stat(inner); err != nil {
			continue
		}

		dirs, err = collectPackageDirs(dirs, inner, pnpmDir+"/"+key+"/node_modules/", pnpmReserved)
		if err != nil {
			return nil, err
		}
	}
	return dirs, nil
}

// collectPackageDirs appends every subdirectory of parent that is not
// reserved, expanding "@scope" directories into their children.
// Symbolic links are not followed.
func collectPackageDirs(dirs []packageDir, parent, relPrefix string, reserved map[string]bool) ([]packageDir, error) {
	entries, err := os.ReadDir(parent)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if reserved[name] {
			continue
		}

		full := filepath.Join(parent, name)
		if name[0] != '@' {
			dirs = append(dirs, packageDir{path: full, relPath: relPrefix + name})
			continue
		}

		scoped, err := os.ReadDir(full)
		if err != nil {
			return nil, err
		}
		for _, child := range scoped {
			if !child.IsDir() {
				continue
			}
			dirs = append(dirs, packageDir{
				path:    filepath.Join(full, child.Name()),
				relPath: relPrefix + name + "/" + child.Name(),
			})
		}
	}
	return dirs, nil
}
