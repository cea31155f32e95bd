// Package kard manages kards: deployment instances of an
// environment. A kard persists its minimal configuration (the clean
// meta) under kard/<name>/meta.yml and recomputes the fully composed
// meta from it on every load, so composition stays re-entrant.
package kard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ballast-sh/ballast/internal/confmap"
	"github.com/ballast-sh/ballast/internal/driver"
	"github.com/ballast-sh/ballast/internal/env"
	"github.com/ballast-sh/ballast/internal/ext"
	"github.com/ballast-sh/ballast/internal/lock"
	"github.com/ballast-sh/ballast/internal/workspace"
)

const (
	// MetaFile is the persisted clean meta document.
	MetaFile = "meta.yml"

	// CurrentName is the symlink selecting the default kard.
	CurrentName = "current"

	// LocalSrc is the default source folder inside a kard.
	LocalSrc = "src"

	// DataFolder holds runtime data inside a kard.
	DataFolder = "data"
)

// ErrNotFound reports a kard that does not exist in the workspace.
var ErrNotFound = errors.New("kard not found")

// Kard is one deployment instance.
type Kard struct {
	// Name is the kard identifier (the kard/<name> directory).
	Name string

	// Path is the kard directory.
	Path string

	// CleanMeta is the persisted minimal configuration: user extras
	// plus env, features and driver selection.
	CleanMeta confmap.Tree

	// Features is the full resolved feature list: environment-side
	// features first, caller features appended.
	Features []string

	// Duplicates aggregates duplicate-feature diagnostics collected
	// while resolving.
	Duplicates []env.Duplicate

	// Warnings aggregates advisory type-mismatch diagnostics from
	// the composition merges.
	Warnings []confmap.Warning

	ws         *workspace.Workspace
	environ    *env.Environment
	callerDups []env.Duplicate
	drv        driver.Driver
	meta       confmap.Tree
	exts       *ext.Extensions
	prompt     env.Prompter
	timeout    time.Duration
}

// KardName implements ext.Target.
func (k *Kard) KardName() string { return k.Name }

// KardPath implements ext.Target.
func (k *Kard) KardPath() string { return k.Path }

// SrcPath returns the kard's resolved source path.
func (k *Kard) SrcPath() string {
	src, _ := k.meta["src_path"].(string)
	return src
}

// Meta returns the composed meta.
func (k *Kard) Meta() confmap.Tree { return k.meta }

// Env returns the kard's environment.
func (k *Kard) Env() *env.Environment { return k.environ }

// CreateOptions carries the inputs of kard creation.
type CreateOptions struct {
	// Env names the environment; dev when empty.
	Env string

	// Driver selects the deployment driver; the default driver when
	// empty.
	Driver string

	// Features are extra features requested on the command line.
	Features []string

	// Extra holds key=value pairs from the command line. Dotted keys
	// expand to nested maps, "true"/"false" strings become booleans.
	Extra confmap.Tree

	// Meta is the content of a meta file passed at creation; Extra
	// values win over it.
	Meta confmap.Tree

	// Prompt resolves missing required meta; the interactive
	// terminal prompter when nil.
	Prompt env.Prompter

	// Timeout bounds each extension hook; ext.DefaultTimeout when
	// zero.
	Timeout time.Duration
}

// Create builds a new kard: it composes the meta from the
// environment, the driver and the extensions, persists the clean
// meta, and leaves the kard directory ready for Make. A failed
// creation removes the half-created directory.
func Create(ctx context.Context, ws *workspace.Workspace, name string, opts CreateOptions) (*Kard, error) {
	if name == "" || name == CurrentName {
		return nil, fmt.Errorf("invalid kard name %q", name)
	}

	envName := opts.Env
	if envName == "" {
		envName = "dev"
	}

	extra := confmap.Copy(opts.Meta)
	extra = confmap.Merge(normalizeExtra(opts.Extra), extra)

	var duplicates []env.Duplicate
	metaFeatures, dups := confmap.Dedup(confmap.Strings(extra["features"]))
	for _, f := range dups {
		duplicates = append(duplicates, env.Duplicate{Feature: f, Origin: "passed meta"})
	}
	argFeatures, dups := confmap.Dedup(opts.Features)
	for _, f := range dups {
		duplicates = append(duplicates, env.Duplicate{Feature: f, Origin: "arguments"})
	}
	callerFeatures := confmap.MergeLists(argFeatures, metaFeatures, false)

	clean := extra
	delete(clean, "features")
	clean["env"] = envName
	clean["features"] = toAnyList(callerFeatures)

	driverSection, _ := clean["driver"].(confmap.Tree)
	if driverSection == nil {
		driverSection = make(confmap.Tree)
		clean["driver"] = driverSection
	}
	if opts.Driver != "" {
		driverSection["name"] = opts.Driver
	}

	k, err := newKard(ws, name, clean, opts.Prompt, opts.Timeout)
	if err != nil {
		return nil, err
	}
	k.callerDups = duplicates

	err = lock.WithLock(ws.Root, "kard-"+name, func() error {
		if _, statErr := os.Stat(k.Path); statErr == nil {
			return fmt.Errorf("kard %s already exists", name)
		}
		if mkErr := os.MkdirAll(k.Path, 0o755); mkErr != nil {
			return fmt.Errorf("create kard directory: %w", mkErr)
		}

		if composeErr := k.compose(ctx); composeErr != nil {
			os.RemoveAll(k.Path)
			return composeErr
		}
		if saveErr := k.Save(); saveErr != nil {
			os.RemoveAll(k.Path)
			return saveErr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return k, nil
}

// Load reads an existing kard and recomposes its meta. The name
// "current" resolves through the current symlink.
func Load(ctx context.Context, ws *workspace.Workspace, name string, prompt env.Prompter, timeout time.Duration) (*Kard, error) {
	if name == "" || name == CurrentName {
		resolved, err := Current(ws)
		if err != nil {
			return nil, err
		}
		name = resolved
	}

	path := ws.KardPath(name)
	raw, err := os.ReadFile(filepath.Join(path, MetaFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("kard %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s meta: %w", name, err)
	}

	clean := make(confmap.Tree)
	if err := yaml.Unmarshal(raw, &clean); err != nil {
		return nil, fmt.Errorf("parse %s meta: %w", name, err)
	}

	k, err := newKard(ws, name, clean, prompt, timeout)
	if err != nil {
		return nil, err
	}
	if err := k.compose(ctx); err != nil {
		return nil, err
	}
	return k, nil
}

func newKard(ws *workspace.Workspace, name string, clean confmap.Tree, prompt env.Prompter, timeout time.Duration) (*Kard, error) {
	driverName := ""
	if section, ok := clean["driver"].(confmap.Tree); ok {
		driverName, _ = section["name"].(string)
	}
	drv, err := driver.Load(driverName)
	if err != nil {
		return nil, err
	}

	return &Kard{
		Name:      name,
		Path:      ws.KardPath(name),
		CleanMeta: clean,
		ws:        ws,
		drv:       drv,
		prompt:    prompt,
		timeout:   timeout,
	}, nil
}

// compose loads the environment and recomputes the full meta from
// the clean meta.
func (k *Kard) compose(ctx context.Context) error {
	envName, _ := k.CleanMeta["env"].(string)
	if envName == "" {
		return fmt.Errorf("kard %s names no environment", k.Name)
	}

	callerFeatures := confmap.Strings(k.CleanMeta["features"])
	e, err := env.Load(k.ws, envName, callerFeatures)
	if err != nil {
		return err
	}
	k.environ = e
	k.Duplicates = append(append([]env.Duplicate(nil), k.callerDups...), e.Duplicates...)

	return k.computeMeta(ctx)
}

// Update merges new extras and features into the clean meta and
// recomposes.
func (k *Kard) Update(ctx context.Context, extra confmap.Tree, features []string) error {
	return lock.WithLock(k.ws.Root, "kard-"+k.Name, func() error {
		if len(features) > 0 {
			deduped, dups := confmap.Dedup(features)
			for _, f := range dups {
				k.callerDups = append(k.callerDups, env.Duplicate{Feature: f, Origin: "arguments"})
			}
			merged := confmap.MergeLists(deduped, confmap.Strings(k.CleanMeta["features"]), false)
			k.CleanMeta["features"] = toAnyList(merged)
		}
		k.CleanMeta = confmap.Merge(normalizeExtra(extra), k.CleanMeta)

		if err := k.compose(ctx); err != nil {
			return err
		}
		return k.Save()
	})
}

// Save writes the clean meta to the kard's meta.yml.
func (k *Kard) Save() error {
	out, err := yaml.Marshal(k.CleanMeta)
	if err != nil {
		return fmt.Errorf("serialize %s meta: %w", k.Name, err)
	}
	if err := os.WriteFile(filepath.Join(k.Path, MetaFile), out, 0o644); err != nil {
		return fmt.Errorf("write %s meta: %w", k.Name, err)
	}
	return nil
}

// Dump returns the clean or composed meta as YAML.
func (k *Kard) Dump(clean bool) (string, error) {
	meta := k.meta
	if clean {
		meta = k.CleanMeta
	}
	out, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("serialize %s meta: %w", k.Name, err)
	}
	return string(out), nil
}

// List returns the names of all kards in the workspace, sorted.
func List(ws *workspace.Workspace) ([]string, error) {
	entries, err := os.ReadDir(ws.KardDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read kard directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.Name() == CurrentName {
			continue
		}
		if _, err := os.Stat(filepath.Join(ws.KardDir(), entry.Name(), MetaFile)); err != nil {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Current returns the name the current symlink points to.
func Current(ws *workspace.Workspace) (string, error) {
	target, err := os.Readlink(filepath.Join(ws.KardDir(), CurrentName))
	if err != nil {
		return "", fmt.Errorf("no current kard: %w", ErrNotFound)
	}
	return filepath.Base(target), nil
}

// SetCurrent points the current symlink at the named kard.
func SetCurrent(ws *workspace.Workspace, name string) error {
	if _, err := os.Stat(filepath.Join(ws.KardPath(name), MetaFile)); err != nil {
		return fmt.Errorf("kard %s: %w", name, ErrNotFound)
	}

	link := filepath.Join(ws.KardDir(), CurrentName)
	if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("replace current symlink: %w", err)
	}
	if err := os.Symlink(name, link); err != nil {
		return fmt.Errorf("set current kard: %w", err)
	}
	return nil
}

// normalizeExtra expands dotted keys into nested maps and coerces
// "true"/"false" strings to booleans.
func normalizeExtra(extra confmap.Tree) confmap.Tree {
	out := make(confmap.Tree)
	for key, value := range extra {
		if s, ok := value.(string); ok {
			switch s {
			case "true":
				value = true
			case "false":
				value = false
			}
		}

		parts := strings.Split(key, ".")
		node := out
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(confmap.Tree)
			if !ok {
				child = make(confmap.Tree)
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = confmap.CopyValue(value)
	}
	return out
}

func toAnyList(list []string) []any {
	out := make([]any, len(list))
	for i, v := range list {
		out[i] = v
	}
	return out
}
