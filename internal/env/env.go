// Package env loads named environment definitions: a base env.yml,
// its recursive imports, and feature overlay files, merged into one
// configuration tree with a stable, de-duplicated feature order.
package env

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ballast-sh/ballast/internal/confmap"
	"github.com/ballast-sh/ballast/internal/workspace"
)

// ImportKey is the env.yml key listing other definition files merged
// underneath the importing file.
const ImportKey = "import"

const defaultFeaturesKey = "default_features"

// DefaultTemplateDir is the template folder used when the environment
// does not declare one.
const DefaultTemplateDir = "templates"

// Duplicate records a feature that was introduced more than once,
// with the origin responsible for the extra occurrence. Duplicates
// are diagnostics, not errors: the feature keeps its first position.
type Duplicate struct {
	Feature string
	Origin  string
}

func (d Duplicate) String() string {
	return fmt.Sprintf("Feature %s is duplicated in %s", d.Feature, d.Origin)
}

// Environment is a fully resolved environment definition.
type Environment struct {
	// Name is the environment identifier (the env/<name> directory).
	Name string

	// Workspace owns the definition files.
	Workspace *workspace.Workspace

	// Tree is the merged configuration after imports and feature
	// overlays.
	Tree confmap.Tree

	// Features is the ordered, de-duplicated environment-side feature
	// list: import-implied features, the environment's own
	// default_features, then features pulled in by overlays. Caller
	// features are managed by the kard layer, not here.
	Features []string

	// Duplicates holds the duplicate-feature diagnostics collected
	// while resolving.
	Duplicates []Duplicate

	// Warnings holds advisory type-mismatch diagnostics from the
	// merges performed while resolving.
	Warnings []confmap.Warning

	envDir string
}

// Load resolves the named environment. Caller features take part in
// overlay loading (a caller feature with an overlay file contributes
// its configuration) but stay out of Features: the caller appends
// them itself, after the environment's own.
func Load(ws *workspace.Workspace, name string, callerFeatures []string) (*Environment, error) {
	e := &Environment{
		Name:      name,
		Workspace: ws,
		envDir:    filepath.Join(ws.EnvDir(), name),
	}

	tracker := newFeatureTracker()

	tree, own, err := e.loadFile(filepath.Join(e.envDir, "env.yml"), tracker)
	if err != nil {
		return nil, fmt.Errorf("load environment %s: %w", name, err)
	}
	e.Tree = tree
	tracker.add(own, fmt.Sprintf("env %s", name))

	// Overlay processing covers environment features and caller
	// features alike; features discovered inside an overlay join the
	// queue behind the feature that introduced them.
	queue := append([]string(nil), tracker.ordered...)
	queued := make(map[string]bool, len(queue))
	for _, f := range queue {
		queued[f] = true
	}
	for _, f := range callerFeatures {
		if !queued[f] {
			queued[f] = true
			queue = append(queue, f)
		}
	}

	for i := 0; i < len(queue); i++ {
		feature := queue[i]
		overlayPath := filepath.Join(e.envDir, feature+".yml")
		if _, err := os.Stat(overlayPath); err != nil {
			continue
		}

		overlay, overlayOwn, err := e.loadFile(overlayPath, tracker)
		if err != nil {
			return nil, fmt.Errorf("load feature %s of environment %s: %w", feature, name, err)
		}
		tracker.add(overlayOwn, fmt.Sprintf("feature %s from env %s", feature, name))

		for _, f := range tracker.ordered {
			if !queued[f] {
				queued[f] = true
				queue = append(queue, f)
			}
		}

		var w []confmap.Warning
		e.Tree, w = confmap.MergeWarn(overlay, e.Tree)
		e.Warnings = append(e.Warnings, w...)
	}

	e.Features = tracker.ordered
	e.Duplicates = tracker.duplicates
	return e, nil
}

// loadFile reads one definition file and recursively merges its
// imports underneath it, so the importing file's values win. The
// file's own default_features are returned unmerged so the caller can
// attribute them; features implied by each import are recorded at
// import time.
func (e *Environment) loadFile(path string, tracker *featureTracker) (confmap.Tree, []string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}

	var content confmap.Tree
	if err := yaml.Unmarshal(raw, &content); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if content == nil {
		content = make(confmap.Tree)
	}
	own := confmap.Strings(content[defaultFeaturesKey])

	for _, impName := range confmap.Strings(content[ImportKey]) {
		impPath := filepath.Join(e.Workspace.EnvDir(), impName+".yml")
		impData, impOwn, err := e.loadFile(impPath, tracker)
		if err != nil {
			return nil, nil, fmt.Errorf("import %s: %w", impName, err)
		}
		delete(impData, ImportKey)

		tracker.add(impOwn, fmt.Sprintf("import %s from env %s", impName, e.Name))

		var w []confmap.Warning
		content, w = confmap.MergeWarn(content, impData)
		e.Warnings = append(e.Warnings, w...)
	}

	return content, own, nil
}

// Get returns a top-level value of the merged tree, or fallback when
// the key is absent.
func (e *Environment) Get(key string, fallback any) any {
	if v, ok := e.Tree[key]; ok {
		return v
	}
	return fallback
}

// DefaultMeta returns the environment's default_meta section, never
// nil.
func (e *Environment) DefaultMeta() confmap.Tree {
	if m, ok := e.Tree["default_meta"].(confmap.Tree); ok {
		return m
	}
	return make(confmap.Tree)
}

// TemplateDir returns the configured template folder, relative to the
// workspace root.
func (e *Environment) TemplateDir() string {
	if dir, ok := e.Tree["template_dir"].(string); ok {
		return dir
	}
	return DefaultTemplateDir
}

// TemplatePath returns the absolute template folder path.
func (e *Environment) TemplatePath() string {
	return filepath.Join(e.Workspace.Root, filepath.FromSlash(e.TemplateDir()))
}

// featureTracker accumulates feature names in order, collapsing
// duplicates to their first occurrence and attributing each extra
// occurrence to the origin that introduced it.
type featureTracker struct {
	ordered    []string
	seen       map[string]bool
	duplicates []Duplicate
}

func newFeatureTracker() *featureTracker {
	return &featureTracker{seen: make(map[string]bool)}
}

func (t *featureTracker) add(features []string, origin string) {
	for _, f := range features {
		if t.seen[f] {
			t.duplicates = append(t.duplicates, Duplicate{Feature: f, Origin: origin})
			continue
		}
		t.seen[f] = true
		t.ordered = append(t.ordered, f)
	}
}
