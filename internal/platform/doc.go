// Package platform isolates the permission-bit handling that differs
// between POSIX and other targets.
package platform

// DefaultMode is recorded for files on platforms without POSIX permission bits.
const DefaultMode uint32 = 0o644

// PermMask selects the permission bits of a stored mode.
const PermMask uint32 = 0o777
