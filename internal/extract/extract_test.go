package extract

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbcruk/mohyung/internal/archivetype"
	"github.com/cbcruk/mohyung/internal/compress"
	"github.com/cbcruk/mohyung/internal/hashing"
	"github.com/cbcruk/mohyung/internal/platform"
)

// mapSource serves blobs from memory and counts lookups.
type mapSource struct {
	mu    sync.Mutex
	blobs map[string][]byte
	reads map[string]int
}

func newMapSource() *mapSource {
	return &mapSource{blobs: make(map[string][]byte), reads: make(map[string]int)}
}

func (s *mapSource) add(t *testing.T, codec compress.Codec, content []byte) string {
	t.Helper()
	compressed, err := codec.Compress(content, compress.DefaultLevel)
	require.NoError(t, err)
	hash := hashing.Fingerprint(content)
	s.blobs[hash] = compressed
	return hash
}

func (s *mapSource) Blob(_ context.Context, hash string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads[hash]++
	b, ok := s.blobs[hash]
	return b, ok, nil
}

func record(pkg, rel, hash string, mode uint32) archivetype.FileRecordWithPath {
	return archivetype.FileRecordWithPath{
		FileRecord:  archivetype.FileRecord{RelativePath: rel, BlobHash: hash, Mode: mode, MTime: 1_600_000_000_000},
		PackagePath: pkg,
	}
}

func TestExtract_WritesFiles(t *testing.T) {
	t.Parallel()

	src := newMapSource()
	index := src.add(t, compress.CodecZstd, []byte("module.exports = 1;\n"))
	license := src.add(t, compress.CodecZstd, []byte("MIT\n"))
	empty := src.add(t, compress.CodecZstd, nil)

	files := []archivetype.FileRecordWithPath{
		record("lodash", "index.js", index, 0o644),
		record("lodash", "LICENSE", license, 0o644),
		record("@scope/pkg", "LICENSE", license, 0o644),
		record("@scope/pkg", "lib/empty.js", empty, 0o644),
	}

	dest := filepath.Join(t.TempDir(), "out")
	res, err := Extract(context.Background(), src, files, dest, WithWorkers(2))
	require.NoError(t, err)

	assert.Equal(t, 4, res.FileCount)
	assert.Equal(t, 4, res.Written)
	assert.Zero(t, res.Skipped)
	assert.Empty(t, res.Failures)
	assert.Equal(t, uint64(len("module.exports = 1;\n")+2*len("MIT\n")), res.TotalBytes)

	got, err := os.ReadFile(filepath.Join(dest, "lodash", "index.js"))
	require.NoError(t, err)
	assert.Equal(t, "module.exports = 1;\n", string(got))

	got, err = os.ReadFile(filepath.Join(dest, "@scope", "pkg", "LICENSE"))
	require.NoError(t, err)
	assert.Equal(t, "MIT\n", string(got))

	info, err := os.Stat(filepath.Join(dest, "@scope", "pkg", "lib", "empty.js"))
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	// The shared blob is read once and served from the cache afterwards.
	assert.Equal(t, 1, src.reads[license])

	entries, err := os.ReadDir(filepath.Join(dest, "lodash"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".mohyung-", "temporary file left behind")
	}
}

func TestExtract_CacheThreshold(t *testing.T) {
	t.Parallel()

	src := newMapSource()
	hash := src.add(t, compress.CodecZstd, []byte("shared"))
	files := []archivetype.FileRecordWithPath{
		record("a", "x", hash, 0o644),
		record("b", "x", hash, 0o644),
	}

	_, err := Extract(context.Background(), src, files, t.TempDir(), WithCacheThreshold(0))
	require.NoError(t, err)
	assert.Equal(t, 2, src.reads[hash])
}

func TestExtract_RestoresMode(t *testing.T) {
	if !platform.SupportsPermissions {
		t.Skip("permission bits are not restored on this platform")
	}
	t.Parallel()

	src := newMapSource()
	hash := src.add(t, compress.CodecZstd, []byte("#!/bin/sh\n"))
	files := []archivetype.FileRecordWithPath{
		record("pkg", "bin/run", hash, 0o755),
		record("pkg", "data", hash, 0o600),
	}

	dest := t.TempDir()
	_, err := Extract(context.Background(), src, files, dest)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dest, "pkg", "bin", "run"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	info, err = os.Stat(filepath.Join(dest, "pkg", "data"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestExtract_PreserveTimes(t *testing.T) {
	t.Parallel()

	src := newMapSource()
	hash := src.add(t, compress.CodecZstd, []byte("x"))
	rec := record("pkg", "index.js", hash, 0o644)

	dest := t.TempDir()
	_, err := Extract(context.Background(), src, []archivetype.FileRecordWithPath{rec}, dest, WithPreserveTimes(true))
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dest, "pkg", "index.js"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(time.UnixMilli(rec.MTime)), "mtime %v", info.ModTime())
}

func TestExtract_MissingBlobSkipped(t *testing.T) {
	t.Parallel()

	src := newMapSource()
	hash := src.add(t, compress.CodecZstd, []byte("present"))
	files := []archivetype.FileRecordWithPath{
		record("pkg", "present.js", hash, 0o644),
		record("pkg", "missing.js", hashing.Fingerprint([]byte("absent")), 0o644),
	}

	dest := t.TempDir()
	res, err := Extract(context.Background(), src, files, dest)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)
	assert.Equal(t, 1, res.Skipped)

	assert.FileExists(t, filepath.Join(dest, "pkg", "present.js"))
	assert.NoFileExists(t, filepath.Join(dest, "pkg", "missing.js"))
}

func TestExtract_CorruptBlobRecorded(t *testing.T) {
	t.Parallel()

	src := newMapSource()
	bad := hashing.Fingerprint([]byte("bad"))
	src.blobs[bad] = []byte("not compressed")
	good := src.add(t, compress.CodecZstd, []byte("ok"))
	files := []archivetype.FileRecordWithPath{
		record("pkg", "bad.js", bad, 0o644),
		record("pkg", "good.js", good, 0o644),
	}

	res, err := Extract(context.Background(), src, files, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "pkg/bad.js", res.Failures[0].Path)
	assert.ErrorIs(t, res.Failures[0].Err, compress.ErrDecompression)
}

func TestExtract_RejectsMalformedHash(t *testing.T) {
	t.Parallel()

	src := newMapSource()
	good := src.add(t, compress.CodecZstd, []byte("ok"))
	src.blobs["not-a-hash"] = src.blobs[good]
	files := []archivetype.FileRecordWithPath{
		record("pkg", "bad.js", "not-a-hash", 0o644),
		record("pkg", "good.js", good, 0o644),
	}

	dest := t.TempDir()
	res, err := Extract(context.Background(), src, files, dest)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "pkg/bad.js", res.Failures[0].Path)
	assert.ErrorIs(t, res.Failures[0].Err, ErrInvalidHash)
	assert.NoFileExists(t, filepath.Join(dest, "pkg", "bad.js"))
	assert.Zero(t, src.reads["not-a-hash"])
}

func TestExtract_RejectsUnsafePaths(t *testing.T) {
	t.Parallel()

	src := newMapSource()
	hash := src.add(t, compress.CodecZstd, []byte("x"))
	files := []archivetype.FileRecordWithPath{
		record("..", "escape.js", hash, 0o644),
		record("pkg", "../../escape.js", hash, 0o644),
		record("pkg", "ok.js", hash, 0o644),
	}

	parent := t.TempDir()
	dest := filepath.Join(parent, "out")
	res, err := Extract(context.Background(), src, files, dest)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Written)
	require.Len(t, res.Failures, 2)
	for _, f := range res.Failures {
		assert.ErrorIs(t, f.Err, ErrInvalidPath)
	}
	assert.NoFileExists(t, filepath.Join(parent, "escape.js"))
}

func TestExtract_SmallBatches(t *testing.T) {
	t.Parallel()

	src := newMapSource()
	var files []archivetype.FileRecordWithPath
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		hash := src.add(t, compress.CodecGzip, []byte("content of "+name))
		files = append(files, record("pkg", name+".js", hash, 0o644))
	}

	dest := t.TempDir()
	res, err := Extract(context.Background(), src, files, dest,
		WithCodec(compress.CodecGzip),
		WithBatchBytes(1),
	)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Written)

	got, err := os.ReadFile(filepath.Join(dest, "pkg", "e.js"))
	require.NoError(t, err)
	assert.Equal(t, "content of e", string(got))
}

func TestExtract_OverwritesExisting(t *testing.T) {
	t.Parallel()

	src := newMapSource()
	hash := src.add(t, compress.CodecZstd, []byte("new"))

	dest := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dest, "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "pkg", "index.js"), []byte("old content"), 0o644))

	_, err := Extract(context.Background(), src, []archivetype.FileRecordWithPath{record("pkg", "index.js", hash, 0o644)}, dest)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dest, "pkg", "index.js"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestExtract_Cancelled(t *testing.T) {
	t.Parallel()

	src := newMapSource()
	hash := src.add(t, compress.CodecZstd, []byte("x"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Extract(ctx, src, []archivetype.FileRecordWithPath{record("pkg", "x", hash, 0o644)}, t.TempDir())
	require.ErrorIs(t, err, context.Canceled)
}
