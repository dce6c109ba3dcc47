// Package mohyung snapshots a node_modules dependency tree into a single
// content-addressed SQLite archive and restores or diffs against it.
//
// An archive holds one row per package, one row per file, and one
// compressed blob per distinct file content. Identical files shared by many
// packages are stored once.
//
// # Quick Start
//
// Pack a tree:
//
//	res, err := mohyung.Pack(ctx, "./node_modules", "./node_modules.db",
//	    mohyung.PackWithLevel(9),
//	    mohyung.PackWithLockfile(true),
//	)
//
// Restore it somewhere else:
//
//	res, err := mohyung.Unpack(ctx, "./node_modules.db", "./restored",
//	    mohyung.UnpackWithForce(true),
//	)
//
// Check a live tree for drift:
//
//	res, err := mohyung.Status(ctx, "./node_modules.db", "./node_modules")
//	if err != nil {
//	    return err
//	}
//	if !res.Clean() {
//	    fmt.Println(res.Modified, res.OnlyInArchive)
//	}
//
// # Layouts
//
// Both the flat layout written by npm and yarn and the .pnpm store layout
// written by pnpm are recognized. Package paths are recorded relative to
// the tree root, so an archive restores to the same shape it was packed
// from.
package mohyung
