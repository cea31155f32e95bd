package env_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballast-sh/ballast/internal/confmap"
	"github.com/ballast-sh/ballast/internal/env"
	"github.com/ballast-sh/ballast/internal/workspace"
)

// writeFile writes a definition file under the workspace env folder.
func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, "env", rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func testWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	return &workspace.Workspace{Root: t.TempDir()}
}

func TestLoadWithImports(t *testing.T) {
	ws := testWorkspace(t)
	writeFile(t, ws.Root, "common/env.yml", `
default_features: [auto-volume]
default_meta:
  from: import
  registry: false
containers:
  backend:
    dockerfile: backend.dockerfile
`)
	writeFile(t, ws.Root, "dev/env.yml", `
import: [common/env]
default_meta:
  from: env
use_volume: true
`)

	e, err := env.Load(ws, "dev", nil)
	require.NoError(t, err)

	// The importer's explicit values win over the import's.
	meta := e.Tree["default_meta"].(confmap.Tree)
	assert.Equal(t, "env", meta["from"])
	assert.Equal(t, false, meta["registry"])
	assert.Equal(t, true, e.Tree["use_volume"])

	// Import-implied features are recorded.
	assert.Equal(t, []string{"auto-volume"}, e.Features)
	assert.Empty(t, e.Duplicates)
}

func TestLoadFeatureOrderAndDuplicates(t *testing.T) {
	ws := testWorkspace(t)
	writeFile(t, ws.Root, "common/env.yml", `
default_features: [g, h]
`)
	writeFile(t, ws.Root, "dev/env.yml", `
import: [common/env]
default_features: [f, g]
`)
	// Overlay f pulls in e; overlay e re-declares g.
	writeFile(t, ws.Root, "dev/f.yml", `
default_features: [e]
`)
	writeFile(t, ws.Root, "dev/e.yml", `
default_features: [g]
mark: from-e
`)

	e, err := env.Load(ws, "dev", []string{"b", "a"})
	require.NoError(t, err)

	// Import features first, then the env's own, then overlay-implied;
	// caller features stay out (the kard appends them itself).
	// Duplicates collapse to their first occurrence.
	assert.Equal(t, []string{"g", "h", "f", "e"}, e.Features)

	var messages []string
	for _, d := range e.Duplicates {
		messages = append(messages, d.String())
	}
	assert.Equal(t, []string{
		"Feature g is duplicated in env dev",
		"Feature g is duplicated in feature e from env dev",
	}, messages)

	// Overlay content reached the merged tree.
	assert.Equal(t, "from-e", e.Tree["mark"])
}

func TestLoadCollectsTypeWarnings(t *testing.T) {
	ws := testWorkspace(t)
	writeFile(t, ws.Root, "dev/env.yml", `
default_features: [flat]
default_meta:
  app:
    debug: false
`)
	// The overlay flattens a mapping into a scalar: advisory, not
	// fatal.
	writeFile(t, ws.Root, "dev/flat.yml", `
default_meta:
  app: disabled
`)

	e, err := env.Load(ws, "dev", nil)
	require.NoError(t, err)

	meta := e.Tree["default_meta"].(confmap.Tree)
	assert.Equal(t, "disabled", meta["app"])
	require.Len(t, e.Warnings, 1)
	assert.Equal(t, "default_meta.app", e.Warnings[0].Path)
	assert.Contains(t, e.Warnings[0].String(), "overwriting mapping with string")
}

func TestLoadCallerFeatureOverlay(t *testing.T) {
	ws := testWorkspace(t)
	writeFile(t, ws.Root, "dev/env.yml", `
default_features: [a]
`)
	writeFile(t, ws.Root, "dev/b.yml", `
mark: from-b
`)

	e, err := env.Load(ws, "dev", []string{"a", "b"})
	require.NoError(t, err)

	// A caller feature's overlay file is applied, but the feature
	// itself is not claimed by the environment.
	assert.Equal(t, []string{"a"}, e.Features)
	assert.Equal(t, "from-b", e.Tree["mark"])
	assert.Empty(t, e.Duplicates)
}

func TestMeta(t *testing.T) {
	ws := testWorkspace(t)
	writeFile(t, ws.Root, "dev/env.yml", `
default_features: [auto-volume]
default_meta:
  tag: dev
  registry: local
`)

	e, err := env.Load(ws, "dev", nil)
	require.NoError(t, err)

	extra := confmap.Tree{"tag": "123"}
	meta, err := e.Meta(extra, nil)
	require.NoError(t, err)

	// Supplied values win over environment defaults.
	assert.Equal(t, "123", meta["tag"])
	assert.Equal(t, "local", meta["registry"])
	assert.Equal(t, []any{"auto-volume"}, meta["features"])
}

func TestMetaRequired(t *testing.T) {
	ws := testWorkspace(t)
	writeFile(t, ws.Root, "dev/env.yml", `
default_meta:
  present_default: from-default
required_meta:
  - simple_meta
  - present_default
  - dict_meta: [dict_meta_value]
`)

	e, err := env.Load(ws, "dev", nil)
	require.NoError(t, err)

	var prompted []string
	prompt := func(name string) (string, error) {
		prompted = append(prompted, name)
		return "answer:" + name, nil
	}

	extra := confmap.Tree{}
	meta, err := e.Meta(extra, prompt)
	require.NoError(t, err)

	// Only unresolvable keys are prompted, with slash paths for
	// nested declarations.
	assert.ElementsMatch(t, []string{"simple_meta", "dict_meta/dict_meta_value"}, prompted)

	assert.Equal(t, "answer:simple_meta", meta["simple_meta"])
	assert.Equal(t, "from-default", meta["present_default"])
	assert.Equal(t,
		confmap.Tree{"dict_meta_value": "answer:dict_meta/dict_meta_value"},
		meta["dict_meta"])

	// Prompted values land in extra so they persist with the kard.
	assert.Equal(t, "answer:simple_meta", extra["simple_meta"])

	// Resolving again with the enriched extra asks nothing new for
	// the flat key: idempotent.
	prompted = nil
	_, err = e.Meta(extra, prompt)
	require.NoError(t, err)
	assert.NotContains(t, prompted, "simple_meta")
}

func TestMetaRequiredNonInteractive(t *testing.T) {
	ws := testWorkspace(t)
	writeFile(t, ws.Root, "dev/env.yml", `
required_meta: [secret]
`)

	e, err := env.Load(ws, "dev", nil)
	require.NoError(t, err)

	failing := func(name string) (string, error) {
		return "", fmt.Errorf("missing required meta %q", name)
	}
	_, err = e.Meta(confmap.Tree{}, failing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret")
}

func TestContainerParentInheritance(t *testing.T) {
	ws := testWorkspace(t)
	writeFile(t, ws.Root, "dev/env.yml", `
containers:
  base:
    template: true
    dockerfile: base.dockerfile
    requires:
      ./src:
        dst: backend
  backend:
    parent: base
    dockerfile: backend.dockerfile
`)

	e, err := env.Load(ws, "dev", nil)
	require.NoError(t, err)

	// Template-only entries are not deployable.
	assert.Equal(t, []string{"backend"}, e.ContainerNames())

	def, err := e.Container("backend")
	require.NoError(t, err)
	assert.Equal(t, "backend.dockerfile", def["dockerfile"])
	require.Contains(t, def, "requires")
}

func TestRequiresDeduplicated(t *testing.T) {
	ws := testWorkspace(t)
	writeFile(t, ws.Root, "dev/env.yml", `
containers:
  backend:
    dockerfile: backend.dockerfile
    requires:
      ./src:
        dst: backend
        exclude: ["*.pyc"]
  worker:
    dockerfile: worker.dockerfile
    requires:
      ./src:
        dst: backend
        exclude: ["*.pyc"]
`)

	e, err := env.Load(ws, "dev", nil)
	require.NoError(t, err)

	reqs, err := e.Requires(nil)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "./src", reqs[0].Origin)
	assert.Equal(t, "backend", reqs[0].Dst)
	assert.Equal(t, []string{"*.pyc"}, reqs[0].Exclude)
}
