// Package workspace handles discovery and layout of a ballast
// workspace: the directory tree holding environment definitions,
// templates, and kards.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// PathEnvVar overrides workspace discovery when set.
const PathEnvVar = "BALLAST_PATH"

const (
	// EnvFolder holds environment definitions, one directory per
	// environment with an env.yml inside.
	EnvFolder = "env"

	// KardFolder holds kards, one directory per kard.
	KardFolder = "kard"
)

// Workspace is a located ballast workspace.
type Workspace struct {
	// Root is the workspace root directory.
	Root string
}

// IsRoot reports whether dir looks like a workspace root, i.e.
// contains at least one env/<name>/env.yml.
func IsRoot(dir string) bool {
	matches, err := filepath.Glob(filepath.Join(dir, EnvFolder, "*", "env.yml"))
	return err == nil && len(matches) > 0
}

// Find locates the workspace root. The starting point is BALLAST_PATH
// if set, the working directory otherwise; from there every ancestor
// is tried until one qualifies.
func Find() (*Workspace, error) {
	start := os.Getenv(PathEnvVar)
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		start = wd
	}

	dir, err := filepath.Abs(start)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", start, err)
	}

	for {
		if IsRoot(dir) {
			return &Workspace{Root: dir}, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	origin := "current"
	if os.Getenv(PathEnvVar) != "" {
		origin = "given"
	}
	return nil, fmt.Errorf("%s path %s is not a valid ballast workspace, no usable env found", origin, start)
}

// EnvDir returns the environment definitions directory.
func (w *Workspace) EnvDir() string {
	return filepath.Join(w.Root, EnvFolder)
}

// KardDir returns the kard root directory.
func (w *Workspace) KardDir() string {
	return filepath.Join(w.Root, KardFolder)
}

// KardPath returns the directory of a named kard.
func (w *Workspace) KardPath(name string) string {
	return filepath.Join(w.KardDir(), name)
}

// Environments lists the names of all defined environments.
func (w *Workspace) Environments() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(w.EnvDir(), "*", "env.yml"))
	if err != nil {
		return nil, fmt.Errorf("scan environments: %w", err)
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(filepath.Dir(m)))
	}
	return names, nil
}

// Scaffold creates the initial workspace structure under root:
//
//	root/
//	├── env/
//	│   └── dev/
//	│       └── env.yml
//	├── templates/
//	└── kard/
func Scaffold(root string) (*Workspace, error) {
	devDir := filepath.Join(root, EnvFolder, "dev")
	if err := os.MkdirAll(devDir, 0755); err != nil {
		return nil, fmt.Errorf("create env directory: %w", err)
	}

	envFile := filepath.Join(devDir, "env.yml")
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		if err := os.WriteFile(envFile, []byte(defaultEnvYML), 0644); err != nil {
			return nil, fmt.Errorf("write env.yml: %w", err)
		}
	}

	for _, dir := range []string{KardFolder, "templates"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			return nil, fmt.Errorf("create %s directory: %w", dir, err)
		}
	}

	return &Workspace{Root: root}, nil
}

const defaultEnvYML = `# ballast environment definition
default_meta:
  tag: dev
containers: {}
`
