package workspace_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballast-sh/ballast/internal/workspace"
)

func writeEnv(t *testing.T, root, name string) {
	t.Helper()
	dir := filepath.Join(root, "env", name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "env.yml"), []byte("{}\n"), 0644))
}

func TestFind(t *testing.T) {
	t.Run("finds root via env var", func(t *testing.T) {
		root := t.TempDir()
		writeEnv(t, root, "dev")
		t.Setenv(workspace.PathEnvVar, root)

		ws, err := workspace.Find()
		require.NoError(t, err)
		assert.Equal(t, root, ws.Root)
	})

	t.Run("walks up to ancestor", func(t *testing.T) {
		root := t.TempDir()
		writeEnv(t, root, "dev")
		nested := filepath.Join(root, "a", "b")
		require.NoError(t, os.MkdirAll(nested, 0755))
		t.Setenv(workspace.PathEnvVar, nested)

		ws, err := workspace.Find()
		require.NoError(t, err)
		assert.Equal(t, root, ws.Root)
	})

	t.Run("errors when no env found", func(t *testing.T) {
		t.Setenv(workspace.PathEnvVar, t.TempDir())

		_, err := workspace.Find()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no usable env found")
	})
}

func TestEnvironments(t *testing.T) {
	root := t.TempDir()
	writeEnv(t, root, "dev")
	writeEnv(t, root, "prod")

	ws := &workspace.Workspace{Root: root}
	envs, err := ws.Environments()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"dev", "prod"}, envs)
}

func TestScaffold(t *testing.T) {
	root := t.TempDir()

	ws, err := workspace.Scaffold(root)
	require.NoError(t, err)

	assert.True(t, workspace.IsRoot(root))
	assert.FileExists(t, filepath.Join(root, "env", "dev", "env.yml"))
	assert.DirExists(t, ws.KardDir())
	assert.DirExists(t, filepath.Join(root, "templates"))
}
