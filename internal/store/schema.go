package store

// SchemaVersion is stamped into the metadata table on every open.
const SchemaVersion = "1"

// Metadata keys written by pack.
const (
	KeySchemaVersion    = "schema_version"
	KeyCreatedAt        = "created_at"
	KeySourcePath       = "source_path"
	KeyCompression      = "compression"
	KeyCompressionLevel = "compression_level"
	KeyLockfileHash     = "lockfile_hash"
	KeyLockfileName     = "lockfile_name"
)

const schema = `
CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT
);

CREATE TABLE IF NOT EXISTS packages (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	name    TEXT NOT NULL,
	version TEXT NOT NULL,
	path    TEXT NOT NULL,
	UNIQUE(name, version, path)
);

CREATE TABLE IF NOT EXISTS blobs (
	hash            TEXT PRIMARY KEY,
	content         BLOB NOT NULL,
	original_size   INTEGER NOT NULL,
	compressed_size INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	package_id    INTEGER NOT NULL REFERENCES packages(id),
	relative_path TEXT NOT NULL,
	blob_hash     TEXT NOT NULL REFERENCES blobs(hash),
	mode          INTEGER NOT NULL,
	mtime         INTEGER NOT NULL,
	UNIQUE(package_id, relative_path)
);

CREATE INDEX IF NOT EXISTS idx_files_package ON files(package_id);
CREATE INDEX IF NOT EXISTS idx_files_blob ON files(blob_hash);
`

const (
	upsertMetadataSQL = `INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)`

	selectMetadataSQL = `SELECT value FROM metadata WHERE key = ?`

	selectAllMetadataSQL = `SELECT key, value FROM metadata ORDER BY key`

	// The no-op update makes RETURNING yield the existing id on conflict.
	upsertPackageSQL = `
INSERT INTO packages (name, version, path) VALUES (?, ?, ?)
ON CONFLICT(name, version, path) DO UPDATE SET name = excluded.name
RETURNING id`

	insertBlobSQL = `
INSERT OR IGNORE INTO blobs (hash, content, original_size, compressed_size)
VALUES (?, ?, ?, ?)`

	selectBlobSQL = `SELECT content FROM blobs WHERE hash = ?`

	upsertFileSQL = `
INSERT INTO files (package_id, relative_path, blob_hash, mode, mtime)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(package_id, relative_path) DO UPDATE SET
	blob_hash = excluded.blob_hash,
	mode = excluded.mode,
	mtime = excluded.mtime`

	selectFilesSQL = `
SELECT f.id, f.package_id, f.relative_path, f.blob_hash, f.mode, f.mtime, p.path
FROM files f
JOIN packages p ON p.id = f.package_id
ORDER BY p.path, f.relative_path`

	selectPackagesSQL = `SELECT id, name, version, path FROM packages ORDER BY path`

	countFilesSQL = `SELECT COUNT(*) FROM files`

	countPackagesSQL = `SELECT COUNT(*) FROM packages`

	blobStatsSQL = `
SELECT COUNT(*), COALESCE(SUM(original_size), 0), COALESCE(SUM(compressed_size), 0)
FROM blobs`
)
