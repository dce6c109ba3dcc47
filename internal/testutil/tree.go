package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// File describes a fixture file inside a package.
type File struct {
	Path    string
	Content string
	Mode    os.FileMode
}

// WriteFile writes content to root/rel, creating parent directories.
// A zero mode writes the file as 0o644.
func WriteFile(tb testing.TB, root, rel string, content []byte, mode os.FileMode) string {
	tb.Helper()

	if mode == 0 {
		mode = 0o644
	}
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		tb.Fatalf("mkdir %s: %v", filepath.Dir(full), err)
	}
	if err := os.WriteFile(full, content, mode); err != nil {
		tb.Fatalf("write %s: %v", full, err)
	}
	// WriteFile is subject to the umask; force the requested bits.
	if err := os.Chmod(full, mode); err != nil {
		tb.Fatalf("chmod %s: %v", full, err)
	}
	return full
}

// WritePackage writes a package directory at root/pkgPath with a
// package.json naming it and the given files.
func WritePackage(tb testing.TB, root, pkgPath, name, version string, files ...File) {
	tb.Helper()

	descriptor, err := json.Marshal(map[string]string{"name": name, "version": version})
	if err != nil {
		tb.Fatalf("marshal descriptor: %v", err)
	}
	WriteFile(tb, root, pkgPath+"/package.json", descriptor, 0)
	for _, f := range files {
		WriteFile(tb, root, pkgPath+"/"+f.Path, []byte(f.Content), f.Mode)
	}
}

// Shared fixture content.
const (
	LodashIndex  = "module.exports = require('./lodash');\n"
	LodashMain   = "/* lodash */ function chunk(array, size) { return []; }\n"
	ScopedIndex  = "export const scoped = true;\n"
	License      = "MIT License\n\nPermission is hereby granted, free of charge.\n"
	ExecutableJS = "#!/usr/bin/env node\nconsole.log('cli');\n"
)

// FlatTree creates a flat dependency tree in a temporary directory and
// returns its root. It holds lodash@4.17.21 and @scope/pkg@1.0.0, which
// share an identical LICENSE file, plus reserved directories that are
// not packages.
//
// Files, including package.json:
//
//	lodash/package.json
//	lodash/index.js
//	lodash/lodash.js
//	lodash/LICENSE
//	lodash/bin/cli.js (0o755)
//	@scope/pkg/package.json
//	@scope/pkg/index.js
//	@scope/pkg/LICENSE
func FlatTree(tb testing.TB) string {
	tb.Helper()

	root := filepath.Join(tb.TempDir(), "node_modules")
	WritePackage(tb, root, "lodash", "lodash", "4.17.21",
		File{Path: "index.js", Content: LodashIndex},
		File{Path: "lodash.js", Content: LodashMain},
		File{Path: "LICENSE", Content: License},
		File{Path: "bin/cli.js", Content: ExecutableJS, Mode: 0o755},
	)
	WritePackage(tb, root, "@scope/pkg", "@scope/pkg", "1.0.0",
		File{Path: "index.js", Content: ScopedIndex},
		File{Path: "LICENSE", Content: License},
	)

	// Reserved and descriptor-less directories.
	WriteFile(tb, root, ".bin/cli", []byte(ExecutableJS), 0o755)
	WriteFile(tb, root, ".cache/state", []byte("cache"), 0)
	WriteFile(tb, root, "no-descriptor/index.js", []byte("x"), 0)
	return root
}

// FlatTreeFileCount is the number of archived files in FlatTree.
const FlatTreeFileCount = 8

// PnpmTree creates a pnpm-style dependency tree in a temporary directory
// and returns its root. Packages live at
// .pnpm/lodash@4.17.21/node_modules/lodash and
// .pnpm/@scope+pkg@1.0.0/node_modules/@scope/pkg.
func PnpmTree(tb testing.TB) string {
	tb.Helper()

	root := filepath.Join(tb.TempDir(), "node_modules")
	WritePackage(tb, root, ".pnpm/lodash@4.17.21/node_modules/lodash", "lodash", "4.17.21",
		File{Path: "index.js", Content: LodashIndex},
		File{Path: "LICENSE", Content: License},
	)
	WritePackage(tb, root, ".pnpm/@scope+pkg@1.0.0/node_modules/@scope/pkg", "@scope/pkg", "1.0.0",
		File{Path: "index.js", Content: ScopedIndex},
	)

	// Store bookkeeping that is never a package.
	WriteFile(tb, root, ".pnpm/lodash@4.17.21/node_modules/.bin/cli", []byte(ExecutableJS), 0o755)
	WriteFile(tb, root, ".pnpm/node_modules/hoisted/package.json", []byte(`{"name":"hoisted"}`), 0)
	WriteFile(tb, root, ".pnpm/.lock/state", []byte("lock"), 0)
	WriteFile(tb, root, ".modules.yaml", []byte("layoutVersion: 5\n"), 0)
	return root
}

// PnpmTreeFileCount is the number of archived files in PnpmTree.
const PnpmTreeFileCount = 5
