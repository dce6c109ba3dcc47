package mohyung

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbcruk/mohyung/internal/testutil"
)

func TestInspect(t *testing.T) {
	t.Parallel()

	before := time.Now().Add(-time.Second)
	res, archive := packTree(t, testutil.FlatTree(t))

	info, err := Inspect(context.Background(), archive)
	require.NoError(t, err)

	assert.Equal(t, archive, info.Path)
	assert.Equal(t, DefaultCodec, info.Codec)
	assert.Equal(t, "6", info.Level)
	assert.WithinRange(t, info.CreatedAt, before.Truncate(time.Second), time.Now().Add(time.Second))
	assert.Equal(t, testutil.FlatTreeFileCount, info.Files)
	assert.Equal(t, 2, info.Packages)
	assert.Equal(t, res.Blobs, info.Blobs.TotalBlobs)
	assert.Equal(t, res.TotalSize-uint64(len(testutil.License)), info.Blobs.TotalOriginalSize)
	assert.Positive(t, info.Blobs.TotalCompressedSize)
	assert.Positive(t, info.Size)
	assert.Contains(t, info.Metadata, "created_at")
}

func TestInspect_ArchiveNotFound(t *testing.T) {
	t.Parallel()

	_, err := Inspect(context.Background(), filepath.Join(t.TempDir(), "missing.db"))
	require.ErrorIs(t, err, ErrArchiveNotFound)
}

func TestList(t *testing.T) {
	t.Parallel()

	_, archive := packTree(t, testutil.FlatTree(t))

	contents, err := List(context.Background(), archive)
	require.NoError(t, err)

	require.Len(t, contents.Packages, 2)
	assert.Equal(t, "@scope/pkg", contents.Packages[0].Path)
	assert.Equal(t, "lodash", contents.Packages[1].Name)
	assert.Equal(t, "4.17.21", contents.Packages[1].Version)

	require.Len(t, contents.Files, testutil.FlatTreeFileCount)
	paths := make([]string, 0, len(contents.Files))
	for _, f := range contents.Files {
		paths = append(paths, f.TreePath())
	}
	assert.Contains(t, paths, "lodash/bin/cli.js")
	assert.Contains(t, paths, "@scope/pkg/LICENSE")
	assert.IsNonDecreasing(t, paths)
}

func TestList_ArchiveNotFound(t *testing.T) {
	t.Parallel()

	_, err := List(context.Background(), filepath.Join(t.TempDir(), "missing.db"))
	require.ErrorIs(t, err, ErrArchiveNotFound)
}
