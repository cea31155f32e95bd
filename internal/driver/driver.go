// Package driver defines the deployment driver protocol. A driver
// contributes default meta to the composition pipeline, derives the
// render instructions that build a kard's deployable tree, and
// assembles its final artifacts after rendering.
package driver

import (
	"context"
	"fmt"
	"sort"

	"github.com/ballast-sh/ballast/internal/confmap"
	"github.com/ballast-sh/ballast/internal/env"
	"github.com/ballast-sh/ballast/internal/ext"
	"github.com/ballast-sh/ballast/internal/tpl"
)

// DefaultName selects the driver when clean meta names none.
const DefaultName = "compose"

// Driver is one deployment backend.
type Driver interface {
	// Name returns the identifier stored under driver.name in clean
	// meta.
	Name() string

	// Meta returns the driver's default meta for the kard being
	// composed. current is the meta composed so far (read-only);
	// required keys resolve from extra first, then current, then the
	// prompt. Prompted values are written back into extra so they
	// persist with the kard.
	Meta(kardName string, current, extra confmap.Tree, prompt env.Prompter) (confmap.Tree, error)

	// Instructions derives the render instructions for the target.
	Instructions(target ext.Target) ([]tpl.Instruction, error)

	// Populate assembles the driver's artifacts once every
	// instruction rendered.
	Populate(ctx context.Context, target ext.Target) error

	// ContainerName expands the container naming pattern for one
	// service.
	ContainerName(meta confmap.Tree, service string) string

	// ImageName expands the image naming pattern for one service.
	ImageName(meta confmap.Tree, service string) string
}

var registry = map[string]Driver{}

// Register binds a driver under its name. Registering the same name
// twice is a programming error.
func Register(d Driver) {
	if _, dup := registry[d.Name()]; dup {
		panic(fmt.Sprintf("driver: duplicate registration of %q", d.Name()))
	}
	registry[d.Name()] = d
}

// Load returns the named driver, or the default one for an empty
// name.
func Load(name string) (Driver, error) {
	if name == "" {
		name = DefaultName
	}
	d, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown driver %q, available: %v", name, Names())
	}
	return d, nil
}

// Names returns all registered driver names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
