package mohyung

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbcruk/mohyung/internal/hashing"
	"github.com/cbcruk/mohyung/internal/platform"
	"github.com/cbcruk/mohyung/internal/store"
	"github.com/cbcruk/mohyung/internal/testutil"
)

func packTree(t *testing.T, tree string, opts ...PackOption) (*PackResult, string) {
	t.Helper()

	archive := filepath.Join(t.TempDir(), "node_modules.db")
	res, err := Pack(context.Background(), tree, archive, opts...)
	require.NoError(t, err)
	return res, archive
}

func TestPack_FlatTree(t *testing.T) {
	t.Parallel()

	tree := testutil.FlatTree(t)
	res, archive := packTree(t, tree)

	assert.Equal(t, archive, res.Archive)
	assert.Equal(t, LayoutFlat, res.Layout)
	assert.Equal(t, 2, res.Packages)
	assert.Equal(t, testutil.FlatTreeFileCount, res.Files)
	assert.Zero(t, res.Skipped)
	assert.Positive(t, res.ArchiveSize)
	assert.Empty(t, res.Lockfile)

	// The two packages share an identical LICENSE file.
	assert.Equal(t, 1, res.Deduplicated)
	assert.Equal(t, testutil.FlatTreeFileCount-1, res.Blobs)

	info, err := Inspect(context.Background(), archive)
	require.NoError(t, err)
	assert.Equal(t, testutil.FlatTreeFileCount, info.Files)
	assert.Equal(t, 2, info.Packages)
	assert.Equal(t, res.Blobs, info.Blobs.TotalBlobs)
}

func TestPack_DeduplicatesIdenticalContent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tree := testutil.FlatTree(t)
	_, archive := packTree(t, tree)

	st, err := store.Open(ctx, archive)
	require.NoError(t, err)
	defer st.Close()

	files, err := st.Files(ctx)
	require.NoError(t, err)

	licenseHash := hashing.FingerprintString(testutil.License)
	var refs []string
	for _, f := range files {
		if f.BlobHash == licenseHash {
			refs = append(refs, f.TreePath())
		}
	}
	assert.ElementsMatch(t, []string{"lodash/LICENSE", "@scope/pkg/LICENSE"}, refs)

	content, ok, err := st.Blob(ctx, licenseHash)
	require.NoError(t, err)
	require.True(t, ok)
	decoded, err := DefaultCodec.Decompress(content)
	require.NoError(t, err)
	assert.Equal(t, testutil.License, string(decoded))
}

func TestPack_SkipsUnreadableFile(t *testing.T) {
	t.Parallel()

	if !platform.SupportsPermissions {
		t.Skip("permission bits not supported")
	}
	if os.Geteuid() == 0 {
		t.Skip("root can read any file")
	}

	tree := testutil.FlatTree(t)
	unreadable := filepath.Join(tree, "lodash", "index.js")
	require.NoError(t, os.Chmod(unreadable, 0))
	t.Cleanup(func() { _ = os.Chmod(unreadable, 0o644) })

	res, archive := packTree(t, tree)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, testutil.FlatTreeFileCount-1, res.Files)
	assert.Equal(t, 2, res.Packages)

	st, err := store.Open(context.Background(), archive)
	require.NoError(t, err)
	defer st.Close()

	files, err := st.Files(context.Background())
	require.NoError(t, err)
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.TreePath())
	}
	assert.NotContains(t, paths, "lodash/index.js")
	assert.Subset(t, paths, []string{
		"lodash/package.json",
		"lodash/lodash.js",
		"lodash/LICENSE",
		"lodash/bin/cli.js",
	})
}

func TestPack_Idempotent(t *testing.T) {
	t.Parallel()

	tree := testutil.FlatTree(t)
	archive := filepath.Join(t.TempDir(), "node_modules.db")

	first, err := Pack(context.Background(), tree, archive)
	require.NoError(t, err)
	second, err := Pack(context.Background(), tree, archive)
	require.NoError(t, err)

	assert.Equal(t, first.Packages, second.Packages)
	assert.Equal(t, first.Files, second.Files)
	assert.Equal(t, first.Blobs, second.Blobs)
	assert.Equal(t, first.Deduplicated, second.Deduplicated)

	info, err := Inspect(context.Background(), archive)
	require.NoError(t, err)
	assert.Equal(t, first.Files, info.Files)
}

func TestPack_ScenarioLodashAndScoped(t *testing.T) {
	t.Parallel()

	tree := filepath.Join(t.TempDir(), "node_modules")
	testutil.WritePackage(t, tree, "lodash", "lodash", "4.0.0")
	testutil.WriteFile(t, tree, "lodash/index.js", []byte("module.exports = {};"), 0)
	testutil.WritePackage(t, tree, "@scope/pkg", "@scope/pkg", "1.0.0")

	res, archive := packTree(t, tree)
	assert.Equal(t, 3, res.Files)
	assert.Equal(t, 2, res.Packages)

	st, err := store.Open(context.Background(), archive)
	require.NoError(t, err)
	defer st.Close()

	files, err := st.Files(context.Background())
	require.NoError(t, err)
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.TreePath())
	}
	assert.Equal(t, []string{"@scope/pkg/package.json", "lodash/index.js", "lodash/package.json"}, paths)
}

func TestPack_RecordsMetadata(t *testing.T) {
	t.Parallel()

	tree := testutil.FlatTree(t)
	lockfile := []byte(`{"lockfileVersion": 3}`)
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(tree), "package-lock.json"), lockfile, 0o644))

	res, archive := packTree(t, tree,
		PackWithLockfile(true),
		PackWithCodec(CodecLZ4),
		PackWithLevel(9),
		PackWithWorkers(2),
	)
	assert.Equal(t, "package-lock.json", res.Lockfile)

	info, err := Inspect(context.Background(), archive)
	require.NoError(t, err)
	assert.Equal(t, store.SchemaVersion, info.SchemaVersion)
	assert.Equal(t, CodecLZ4, info.Codec)
	assert.Equal(t, "9", info.Level)
	assert.Equal(t, "package-lock.json", info.LockfileName)
	assert.Equal(t, hashing.Fingerprint(lockfile), info.LockfileHash)
	assert.False(t, info.CreatedAt.IsZero())

	resolved, err := filepath.EvalSymlinks(tree)
	require.NoError(t, err)
	assert.Equal(t, resolved, info.SourcePath)
}

func TestPack_LockfileMissingIsIgnored(t *testing.T) {
	t.Parallel()

	res, archive := packTree(t, testutil.FlatTree(t), PackWithLockfile(true))
	assert.Empty(t, res.Lockfile)

	info, err := Inspect(context.Background(), archive)
	require.NoError(t, err)
	assert.Empty(t, info.LockfileHash)
}

func TestPack_ReplacesStaleArchive(t *testing.T) {
	t.Parallel()

	archive := filepath.Join(t.TempDir(), "node_modules.db")
	require.NoError(t, os.WriteFile(archive, []byte("not a database"), 0o644))
	require.NoError(t, os.WriteFile(archive+"-wal", []byte("stale"), 0o644))

	_, err := Pack(context.Background(), testutil.FlatTree(t), archive)
	require.NoError(t, err)

	info, err := Inspect(context.Background(), archive)
	require.NoError(t, err)
	assert.Equal(t, testutil.FlatTreeFileCount, info.Files)

	entries, err := os.ReadDir(filepath.Dir(archive))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp", "temporary archive left behind")
	}
}

func TestPack_EmptyTree(t *testing.T) {
	t.Parallel()

	res, _ := packTree(t, t.TempDir())
	assert.Zero(t, res.Files)
	assert.Zero(t, res.Packages)
	assert.Zero(t, res.CompressionRatio())
}

func TestPack_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	_, err := Pack(ctx, filepath.Join(dir, "missing"), filepath.Join(dir, "out.db"))
	require.ErrorIs(t, err, ErrSourceNotFound)

	_, err = Pack(ctx, testutil.FlatTree(t), filepath.Join(dir, "out.db"), PackWithLevel(10))
	require.ErrorIs(t, err, ErrInvalidLevel)
	assert.NoFileExists(t, filepath.Join(dir, "out.db"))

	_, err = Pack(ctx, testutil.FlatTree(t), filepath.Join(dir, "out.db"), PackWithCodec(Codec(42)))
	require.ErrorIs(t, err, ErrUnknownCodec)
	assert.NoFileExists(t, filepath.Join(dir, "out.db"))
}

func TestPackResult_CompressionRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		res  PackResult
		want float64
	}{
		{"empty", PackResult{}, 0},
		{"half", PackResult{TotalSize: 200, ArchiveSize: 100}, 50},
		{"larger", PackResult{TotalSize: 100, ArchiveSize: 150}, -50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, tt.res.CompressionRatio(), 1e-9)
		})
	}
}
