// Package ext defines the extension hook protocol: named lifecycle
// capabilities that features may implement, invoked in resolved
// feature order during kard composition and population.
package ext

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ballast-sh/ballast/internal/confmap"
	"github.com/ballast-sh/ballast/internal/env"
	"github.com/ballast-sh/ballast/internal/tpl"
)

// Target is the kard surface extensions operate on. *kard.Kard
// implements it; hooks mutate the composed meta through Meta.
type Target interface {
	// KardName returns the kard identifier.
	KardName() string

	// KardPath returns the kard directory.
	KardPath() string

	// SrcPath returns the resolved source path of the kard.
	SrcPath() string

	// Meta returns the composed meta. Mutations from a Setup hook
	// are captured by the composition pipeline's diff step.
	Meta() confmap.Tree

	// Env returns the kard's environment.
	Env() *env.Environment

	// Engine returns a template engine over the composed meta and
	// all helper functions. Only valid once composition finished;
	// Setup hooks must not call it.
	Engine() (*tpl.Engine, error)
}

// Extension is a named plugin implementing zero or more hook
// capabilities. An extension that implements none is legal and inert.
type Extension any

// SetupHook runs when a kard is created or updated, before the
// composed meta is finalized. extra is a copy of the user-supplied
// values: hooks read it but publish results by mutating target.Meta.
type SetupHook interface {
	Setup(ctx context.Context, extra confmap.Tree, target Target) error
}

// TemplateDataHook contributes extra substitution context to the
// template engine. Entries whose value is a function become template
// functions; everything else becomes a context value.
type TemplateDataHook interface {
	TemplateData(target Target) (map[string]any, error)
}

// PopulateHook runs after rendering, to add files to the kard tree.
type PopulateHook interface {
	Populate(ctx context.Context, target Target) error
}

// PostActivateHook runs after the driver activated the kard's
// workloads.
type PostActivateHook interface {
	PostActivate(ctx context.Context, target Target) error
}

// registry maps feature identifiers to extensions. Built-ins register
// from init; there is no dynamic loading.
var registry = map[string]Extension{}

// Register binds an extension to a feature identifier. Registering
// the same name twice is a programming error.
func Register(name string, e Extension) {
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("ext: duplicate registration of %q", name))
	}
	registry[name] = e
}

// Names returns all registered extension names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultTimeout bounds a single hook invocation.
const DefaultTimeout = 2 * time.Minute

// Extensions invokes hooks on every active feature's extension, in
// feature order. Features without a registered extension are skipped:
// a feature may exist purely as a configuration overlay.
type Extensions struct {
	features []string
	timeout  time.Duration
}

// ForFeatures selects the extensions active for the given resolved
// feature list. A zero timeout means DefaultTimeout.
func ForFeatures(features []string, timeout time.Duration) *Extensions {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Extensions{features: features, timeout: timeout}
}

// Active returns the name/extension pairs that will be invoked, in
// order.
func (x *Extensions) Active() []string {
	var names []string
	for _, f := range x.features {
		if _, ok := registry[f]; ok {
			names = append(names, f)
		}
	}
	return names
}

// Setup invokes every SetupHook in feature order. Each hook receives
// its own deep copy of extra so one hook's reads are not polluted by
// another's writes.
func (x *Extensions) Setup(ctx context.Context, extra confmap.Tree, target Target) error {
	for _, name := range x.features {
		hook, ok := registry[name].(SetupHook)
		if !ok {
			continue
		}
		extraCopy := confmap.Copy(extra)
		if err := x.run(ctx, name, "setup", func(hctx context.Context) error {
			return hook.Setup(hctx, extraCopy, target)
		}); err != nil {
			return err
		}
	}
	return nil
}

// TemplateData collects template context contributions in feature
// order; later features override earlier ones on key clash.
func (x *Extensions) TemplateData(target Target) (map[string]any, error) {
	data := make(map[string]any)
	for _, name := range x.features {
		hook, ok := registry[name].(TemplateDataHook)
		if !ok {
			continue
		}
		contributed, err := hook.TemplateData(target)
		if err != nil {
			return nil, fmt.Errorf("extension %q, step get_template_data: %w", name, err)
		}
		for k, v := range contributed {
			data[k] = v
		}
	}
	return data, nil
}

// Populate invokes every PopulateHook in feature order.
func (x *Extensions) Populate(ctx context.Context, target Target) error {
	for _, name := range x.features {
		hook, ok := registry[name].(PopulateHook)
		if !ok {
			continue
		}
		if err := x.run(ctx, name, "populate", func(hctx context.Context) error {
			return hook.Populate(hctx, target)
		}); err != nil {
			return err
		}
	}
	return nil
}

// PostActivate invokes every PostActivateHook in feature order.
func (x *Extensions) PostActivate(ctx context.Context, target Target) error {
	for _, name := range x.features {
		hook, ok := registry[name].(PostActivateHook)
		if !ok {
			continue
		}
		if err := x.run(ctx, name, "post_activate", func(hctx context.Context) error {
			return hook.PostActivate(hctx, target)
		}); err != nil {
			return err
		}
	}
	return nil
}
