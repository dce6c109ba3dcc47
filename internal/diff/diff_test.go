package diff

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbcruk/mohyung/internal/archivetype"
	"github.com/cbcruk/mohyung/internal/hashing"
	"github.com/cbcruk/mohyung/internal/testutil"
)

// recordsFor builds archive records matching the current content of the
// given tree paths.
func recordsFor(t *testing.T, root string, paths ...string) []archivetype.FileRecordWithPath {
	t.Helper()

	records := make([]archivetype.FileRecordWithPath, 0, len(paths))
	for _, p := range paths {
		hash, err := hashing.FingerprintFile(filepath.Join(root, filepath.FromSlash(p)))
		require.NoError(t, err)
		dir, file := filepath.Split(filepath.FromSlash(p))
		records = append(records, archivetype.FileRecordWithPath{
			FileRecord:  archivetype.FileRecord{RelativePath: filepath.ToSlash(file), BlobHash: hash},
			PackagePath: filepath.ToSlash(filepath.Clean(dir)),
		})
	}
	return records
}

func TestCompare_Unchanged(t *testing.T) {
	t.Parallel()

	root := testutil.FlatTree(t)
	files := recordsFor(t, root, "lodash/index.js", "lodash/LICENSE", "@scope/pkg/index.js")

	res, err := Compare(context.Background(), files, root, WithWorkers(2))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Unchanged)
	assert.Empty(t, res.Modified)
	assert.Empty(t, res.OnlyInArchive)
	assert.Nil(t, res.OnlyInFilesystem)
	assert.True(t, res.Clean())
}

func TestCompare_ModifiedAndMissing(t *testing.T) {
	t.Parallel()

	root := testutil.FlatTree(t)
	files := recordsFor(t, root, "lodash/index.js", "lodash/lodash.js", "lodash/LICENSE", "@scope/pkg/index.js")

	require.NoError(t, os.WriteFile(filepath.Join(root, "lodash", "index.js"), []byte("changed"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "lodash", "lodash.js"), []byte("changed too"), 0o644))
	require.NoError(t, os.Remove(filepath.Join(root, "@scope", "pkg", "index.js")))

	res, err := Compare(context.Background(), files, root)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Unchanged)
	assert.Equal(t, []string{"lodash/index.js", "lodash/lodash.js"}, res.Modified)
	assert.Equal(t, []string{"@scope/pkg/index.js"}, res.OnlyInArchive)
	assert.False(t, res.Clean())
}

func TestCompare_UnreadableIsModified(t *testing.T) {
	t.Parallel()

	root := testutil.FlatTree(t)
	files := recordsFor(t, root, "lodash/index.js")

	// A directory in place of the file exists but cannot be fingerprinted.
	target := filepath.Join(root, "lodash", "index.js")
	require.NoError(t, os.Remove(target))
	require.NoError(t, os.Mkdir(target, 0o755))

	res, err := Compare(context.Background(), files, root)
	require.NoError(t, err)
	assert.Equal(t, []string{"lodash/index.js"}, res.Modified)
}

func TestCompare_EmptyArchive(t *testing.T) {
	t.Parallel()

	res, err := Compare(context.Background(), nil, testutil.FlatTree(t))
	require.NoError(t, err)
	assert.Zero(t, res.Unchanged)
	assert.True(t, res.Clean())
}

func TestCompare_Untracked(t *testing.T) {
	t.Parallel()

	root := testutil.FlatTree(t)
	files := recordsFor(t, root,
		"lodash/package.json", "lodash/index.js", "lodash/lodash.js", "lodash/LICENSE", "lodash/bin/cli.js",
		"@scope/pkg/package.json", "@scope/pkg/index.js",
	)
	testutil.WriteFile(t, root, "lodash/extra.js", []byte("new"), 0)
	testutil.WritePackage(t, root, "added", "added", "1.0.0")

	res, err := Compare(context.Background(), files, root, WithUntracked(true))
	require.NoError(t, err)
	assert.Equal(t, len(files), res.Unchanged)
	assert.Equal(t, []string{"@scope/pkg/LICENSE", "added/package.json", "lodash/extra.js"}, res.OnlyInFilesystem)
	assert.True(t, res.Clean())
}
