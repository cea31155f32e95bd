package fileutil_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballast-sh/ballast/internal/fileutil"
)

func TestCopyPreserve(t *testing.T) {
	t.Parallel()

	t.Run("copies file content", func(t *testing.T) {
		t.Parallel()

		tmpDir := t.TempDir()
		srcPath := filepath.Join(tmpDir, "source.txt")
		dstPath := filepath.Join(tmpDir, "dest.txt")

		content := []byte("hello world")
		require.NoError(t, os.WriteFile(srcPath, content, 0644))

		err := fileutil.CopyPreserve(srcPath, dstPath)
		require.NoError(t, err)

		got, err := os.ReadFile(dstPath)
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})

	t.Run("creates parent directories", func(t *testing.T) {
		t.Parallel()

		tmpDir := t.TempDir()
		srcPath := filepath.Join(tmpDir, "source.txt")
		dstPath := filepath.Join(tmpDir, "nested", "deep", "dest.txt")

		require.NoError(t, os.WriteFile(srcPath, []byte("test content"), 0644))

		err := fileutil.CopyPreserve(srcPath, dstPath)
		require.NoError(t, err)
		assert.FileExists(t, dstPath)
	})

	t.Run("preserves mode and mtime", func(t *testing.T) {
		t.Parallel()

		tmpDir := t.TempDir()
		srcPath := filepath.Join(tmpDir, "source.txt")
		dstPath := filepath.Join(tmpDir, "dest.txt")

		require.NoError(t, os.WriteFile(srcPath, []byte("test"), 0755))
		stamp := time.Date(2023, 4, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, os.Chtimes(srcPath, stamp, stamp))

		err := fileutil.CopyPreserve(srcPath, dstPath)
		require.NoError(t, err)

		srcInfo, err := os.Stat(srcPath)
		require.NoError(t, err)
		dstInfo, err := os.Stat(dstPath)
		require.NoError(t, err)

		assert.Equal(t, srcInfo.Mode(), dstInfo.Mode())
		assert.True(t, srcInfo.ModTime().Equal(dstInfo.ModTime()))
	})

	t.Run("returns error for non-existent source", func(t *testing.T) {
		t.Parallel()

		tmpDir := t.TempDir()
		err := fileutil.CopyPreserve(filepath.Join(tmpDir, "missing.txt"), filepath.Join(tmpDir, "dest.txt"))
		assert.Error(t, err)
	})
}

func TestCloneStat(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	srcPath := filepath.Join(tmpDir, "source.txt")
	dstPath := filepath.Join(tmpDir, "dest.txt")

	require.NoError(t, os.WriteFile(srcPath, []byte("a"), 0700))
	require.NoError(t, os.WriteFile(dstPath, []byte("b"), 0644))

	require.NoError(t, fileutil.CloneStat(srcPath, dstPath))

	srcInfo, err := os.Stat(srcPath)
	require.NoError(t, err)
	dstInfo, err := os.Stat(dstPath)
	require.NoError(t, err)
	assert.Equal(t, srcInfo.Mode(), dstInfo.Mode())
}

func TestEnsureAbsent(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "tree")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "sub", "f"), []byte("x"), 0644))

	require.NoError(t, fileutil.EnsureAbsent(target))
	assert.NoDirExists(t, target)

	// Absent target is not an error.
	require.NoError(t, fileutil.EnsureAbsent(target))
}
