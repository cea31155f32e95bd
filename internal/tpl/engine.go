// Package tpl implements the template rendering engine: it
// reproduces file trees described by render instructions, passing
// template-marked files through text/template with the composed meta
// as substitution context and copying everything else verbatim.
package tpl

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// TemplateSuffix marks files that must be rendered instead of copied.
// The suffix is stripped from the destination filename.
const TemplateSuffix = ".template"

// Instruction describes one copy/render operation: reproduce Source
// (a path or glob) under Destination inside the Subfolder of a kard,
// computing relative paths against Origin.
type Instruction struct {
	// Source is the file, directory, or glob pattern to copy.
	Source string

	// Origin is the base path used to compute relative destinations.
	Origin string

	// Destination is the target path, relative to the subfolder.
	Destination string

	// Subfolder is the named bucket under the kard path, e.g. a
	// build-context name.
	Subfolder string

	// ExcludedPaths lists glob patterns skipped during the copy,
	// matched against paths relative to Origin.
	ExcludedPaths []string

	// Template enables rendering of template-marked files.
	Template bool
}

// Engine renders templates against a fixed substitution context. The
// context is the composed kard meta plus helper functions.
type Engine struct {
	context map[string]any
	funcs   template.FuncMap
}

// NewEngine builds an engine over the given context. The function map
// always contains the sprig text functions; extra maps (engine
// helpers, extension-contributed data functions) override them on
// name clash.
func NewEngine(context map[string]any, extra ...template.FuncMap) *Engine {
	funcs := sprig.TxtFuncMap()
	for _, m := range extra {
		for name, fn := range m {
			funcs[name] = fn
		}
	}
	return &Engine{context: context, funcs: funcs}
}

// RenderString renders a template source string. Unresolvable keys
// are errors: a template referencing a value the meta does not carry
// must fail loudly rather than render an empty string.
func (e *Engine) RenderString(name, source string) (string, error) {
	tmpl, err := template.New(name).
		Funcs(e.funcs).
		Option("missingkey=error").
		Parse(source)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, e.context); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.String(), nil
}

// RenderFile renders the template file at path.
func (e *Engine) RenderFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read template: %w", err)
	}
	return e.RenderString(filepath.Base(path), string(raw))
}

// StripSuffix removes the template marker from a filename.
func StripSuffix(name string) string {
	return strings.TrimSuffix(name, TemplateSuffix)
}
