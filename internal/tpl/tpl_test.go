package tpl_test

import (
	"os"
	"path/filepath"
	"testing"
	"text/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballast-sh/ballast/internal/tpl"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// readTree returns path->content for every file under root.
func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out[rel] = string(raw)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestRenderString(t *testing.T) {
	engine := tpl.NewEngine(map[string]any{"tag": "123"})

	t.Run("substitutes context values", func(t *testing.T) {
		out, err := engine.RenderString("t", "tag={{.tag}}")
		require.NoError(t, err)
		assert.Equal(t, "tag=123", out)
	})

	t.Run("sprig filters available", func(t *testing.T) {
		out, err := engine.RenderString("t", "{{.tag | b64enc}}")
		require.NoError(t, err)
		assert.Equal(t, "MTIz", out)

		out, err = engine.RenderString("t", "{{sha256sum .tag}}")
		require.NoError(t, err)
		assert.Equal(t, "a665a45920422f9d417e4867efdc4fb8a04a1f3fff1fa07e998e86f7f7a27ae3", out)
	})

	t.Run("missing key is an error", func(t *testing.T) {
		_, err := engine.RenderString("t", "{{.absent}}")
		assert.Error(t, err)
	})

	t.Run("extra funcs override", func(t *testing.T) {
		e := tpl.NewEngine(nil, template.FuncMap{
			"kard_path": func(p ...string) string { return "/kard/" + filepath.Join(p...) },
		})
		out, err := e.RenderString("t", `{{kard_path "data"}}`)
		require.NoError(t, err)
		assert.Equal(t, "/kard/data", out)
	})
}

func TestRunRendersTemplates(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	write(t, filepath.Join(src, "app.conf.template"), "foo={{.foo}}\n")
	write(t, filepath.Join(src, "verbatim.txt"), "{{.foo}} untouched\n")

	engine := tpl.NewEngine(map[string]any{"foo": "bar"})
	err := engine.Run(tpl.Instruction{
		Source:   src,
		Origin:   src,
		Template: true,
	}, dst)
	require.NoError(t, err)

	got := readTree(t, dst)
	assert.Equal(t, map[string]string{
		"app.conf":     "foo=bar\n",
		"verbatim.txt": "{{.foo}} untouched\n",
	}, got)
}

func TestRunTemplateFlagOff(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	write(t, filepath.Join(src, "app.conf.template"), "foo={{.foo}}\n")

	engine := tpl.NewEngine(map[string]any{"foo": "bar"})
	err := engine.Run(tpl.Instruction{Source: src, Origin: src}, dst)
	require.NoError(t, err)

	// Without the template flag the marker file is copied verbatim,
	// suffix intact.
	got := readTree(t, dst)
	assert.Equal(t, map[string]string{"app.conf.template": "foo={{.foo}}\n"}, got)
}

func TestRunExclusions(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	write(t, filepath.Join(src, "keep.txt"), "keep")
	write(t, filepath.Join(src, "skip.pyc"), "skip")
	write(t, filepath.Join(src, "sub", "nested.pyc"), "skip")
	write(t, filepath.Join(src, "sub", "keep.txt"), "keep")
	write(t, filepath.Join(src, "node_modules", "dep.js"), "skip")

	engine := tpl.NewEngine(nil)
	err := engine.Run(tpl.Instruction{
		Source:        src,
		Origin:        src,
		ExcludedPaths: []string{"**/*.pyc", "node_modules"},
	}, dst)
	require.NoError(t, err)

	got := readTree(t, dst)
	assert.Equal(t, map[string]string{
		"keep.txt":                     "keep",
		filepath.Join("sub", "keep.txt"): "keep",
	}, got)
}

func TestRunGlobExpansion(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	write(t, filepath.Join(src, "backend.dockerfile.template"), "FROM {{.base}}\n")
	write(t, filepath.Join(src, "backend.env"), "X=1\n")
	write(t, filepath.Join(src, "frontend.dockerfile"), "FROM other\n")

	engine := tpl.NewEngine(map[string]any{"base": "alpine"})
	err := engine.Run(tpl.Instruction{
		Source:   filepath.Join(src, "backend*"),
		Origin:   filepath.Join(src, "backend*"),
		Template: true,
	}, dst)
	require.NoError(t, err)

	got := readTree(t, dst)
	assert.Equal(t, map[string]string{
		"backend.dockerfile": "FROM alpine\n",
		"backend.env":        "X=1\n",
	}, got)
}

func TestRunSingleFileInstruction(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	write(t, filepath.Join(src, "config.yml"), "a: 1\n")

	engine := tpl.NewEngine(nil)
	err := engine.Run(tpl.Instruction{
		Source: filepath.Join(src, "config.yml"),
		Origin: filepath.Join(src, "config.yml"),
	}, filepath.Join(dst, "renamed.yml"))
	require.NoError(t, err)

	got := readTree(t, dst)
	assert.Equal(t, map[string]string{"renamed.yml": "a: 1\n"}, got)
}

func TestRunDeterministic(t *testing.T) {
	src := t.TempDir()
	write(t, filepath.Join(src, "a.conf.template"), "v={{.v}}")
	write(t, filepath.Join(src, "sub", "b.txt"), "plain")

	render := func() map[string]string {
		dst := t.TempDir()
		engine := tpl.NewEngine(map[string]any{"v": "x"})
		require.NoError(t, engine.Run(tpl.Instruction{Source: src, Origin: src, Template: true}, dst))
		return readTree(t, dst)
	}

	first := render()
	second := render()
	assert.Equal(t, first, second)

	// Idempotent in place: re-rendering over an existing output tree
	// yields the same files.
	dst := t.TempDir()
	engine := tpl.NewEngine(map[string]any{"v": "x"})
	require.NoError(t, engine.Run(tpl.Instruction{Source: src, Origin: src, Template: true}, dst))
	require.NoError(t, engine.Run(tpl.Instruction{Source: src, Origin: src, Template: true}, dst))
	assert.Equal(t, first, readTree(t, dst))
}

func TestRunMissingSource(t *testing.T) {
	engine := tpl.NewEngine(nil)
	err := engine.Run(tpl.Instruction{
		Source: filepath.Join(t.TempDir(), "absent"),
		Origin: t.TempDir(),
	}, t.TempDir())
	assert.Error(t, err)
}

func TestRunPreservesMode(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	script := filepath.Join(src, "run.sh")
	write(t, script, "#!/bin/sh\n")
	require.NoError(t, os.Chmod(script, 0755))

	engine := tpl.NewEngine(nil)
	require.NoError(t, engine.Run(tpl.Instruction{Source: src, Origin: src}, dst))

	info, err := os.Stat(filepath.Join(dst, "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
}
