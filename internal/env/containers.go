package env

import (
	"fmt"
	"sort"

	"github.com/ballast-sh/ballast/internal/confmap"
)

// Requirement is a file-tree requirement declared by a container:
// a source to copy into the build context.
type Requirement struct {
	// Origin is the base path used to compute relative destinations.
	Origin string

	// Src is the path or glob to copy; empty means the origin itself.
	Src string

	// Dst is the destination, relative to the context subfolder.
	Dst string

	// Exclude lists glob patterns skipped during the copy.
	Exclude []string
}

// ContainerNames returns the sorted names of all deployable
// containers, excluding template-only entries.
func (e *Environment) ContainerNames() []string {
	containers, _ := e.Tree["containers"].(confmap.Tree)

	names := make([]string, 0, len(containers))
	for name, value := range containers {
		def, ok := value.(confmap.Tree)
		if ok && def["template"] == true {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Container returns the compiled definition of one container,
// resolving single-level parent inheritance: the child's values win
// over its parent's.
func (e *Environment) Container(name string) (confmap.Tree, error) {
	containers, _ := e.Tree["containers"].(confmap.Tree)

	value, ok := containers[name]
	if !ok {
		return nil, fmt.Errorf("environment %s has no container %q", e.Name, name)
	}

	def, _ := value.(confmap.Tree)
	if def == nil {
		return make(confmap.Tree), nil
	}

	parentName, _ := def["parent"].(string)
	if parentName == "" {
		return confmap.Copy(def), nil
	}

	parent, err := e.Container(parentName)
	if err != nil {
		return nil, fmt.Errorf("parent of container %s: %w", name, err)
	}
	return confmap.Merge(def, parent), nil
}

// Requires collects the de-duplicated file requirements of the given
// containers (all deployable containers when nil), grouped no further:
// each requirement appears once even when declared by several
// containers.
func (e *Environment) Requires(containers []string) ([]Requirement, error) {
	if containers == nil {
		containers = e.ContainerNames()
	}

	var out []Requirement
	seen := make(map[string]bool)

	for _, name := range containers {
		def, err := e.Container(name)
		if err != nil {
			return nil, err
		}

		requires, _ := def["requires"].(confmap.Tree)
		origins := make([]string, 0, len(requires))
		for origin := range requires {
			origins = append(origins, origin)
		}
		sort.Strings(origins)

		for _, origin := range origins {
			spec, _ := requires[origin].(confmap.Tree)
			req := Requirement{
				Origin:  origin,
				Dst:     stringValue(spec["dst"]),
				Src:     stringValue(spec["src"]),
				Exclude: confmap.Strings(spec["exclude"]),
			}

			key := fmt.Sprintf("%s\x00%s\x00%s\x00%v", req.Origin, req.Src, req.Dst, req.Exclude)
			if !seen[key] {
				seen[key] = true
				out = append(out, req)
			}
		}
	}

	return out, nil
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
