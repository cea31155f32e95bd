package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/go-connections/nat"
	"gopkg.in/yaml.v3"

	"github.com/ballast-sh/ballast/internal/confmap"
	"github.com/ballast-sh/ballast/internal/env"
	"github.com/ballast-sh/ballast/internal/ext"
	"github.com/ballast-sh/ballast/internal/tpl"
	"github.com/ballast-sh/ballast/internal/ui"
)

func init() {
	Register(composeDriver{})
}

const (
	// ComposeFile is the assembled manifest written into the kard.
	ComposeFile = "docker-compose.yml"

	// ContextFolder is the kard subfolder receiving build contexts.
	ContextFolder = "context"

	// ServicePattern is the placeholder replaced by the service name
	// in container_pattern and image_pattern meta values.
	ServicePattern = "%SERVICE%"
)

// composeDriver builds docker-compose deployments: one build context
// per environment, a merged docker-compose.yml assembled from the
// compose_file template plus any compose_extension_files.
type composeDriver struct{}

func (composeDriver) Name() string { return "compose" }

func (composeDriver) Meta(kardName string, current, extra confmap.Tree, prompt env.Prompter) (confmap.Tree, error) {
	defaults := confmap.Tree{
		"project_name": kardName,
	}

	lookup := confmap.Merge(current, confmap.Copy(defaults))
	required, err := env.ResolveRequired([]any{"tag"}, lookup, extra, prompt)
	if err != nil {
		return nil, err
	}

	return confmap.Merge(required, defaults), nil
}

func (composeDriver) Instructions(target ext.Target) ([]tpl.Instruction, error) {
	e := target.Env()

	requirements, err := e.Requires(nil)
	if err != nil {
		return nil, err
	}

	var instructions []tpl.Instruction
	for _, req := range requirements {
		source := req.Src
		if source == "" {
			source = req.Origin
		}
		instructions = append(instructions, tpl.Instruction{
			Source:        source,
			Origin:        req.Origin,
			Destination:   req.Dst,
			Subfolder:     ContextFolder,
			ExcludedPaths: req.Exclude,
		})
	}

	dockerfileDir := filepath.Join(e.TemplatePath(), "dockerfiles")
	seen := make(map[string]bool)
	for _, name := range e.ContainerNames() {
		def, err := e.Container(name)
		if err != nil {
			return nil, err
		}
		dockerfile, _ := def["dockerfile"].(string)
		if dockerfile == "" || seen[dockerfile] {
			continue
		}
		seen[dockerfile] = true

		// The glob also catches the .template variant of the file.
		instructions = append(instructions, tpl.Instruction{
			Source:    filepath.Join(dockerfileDir, dockerfile+"*"),
			Origin:    dockerfileDir,
			Subfolder: ContextFolder,
			Template:  true,
		})
	}

	return instructions, nil
}

func (composeDriver) Populate(ctx context.Context, target ext.Target) error {
	meta := target.Meta()

	composeFile, _ := meta["compose_file"].(string)
	if composeFile == "" {
		ui.Warning("No compose_file in meta, skipping compose file generation")
		return nil
	}

	engine, err := target.Engine()
	if err != nil {
		return err
	}

	files := append([]string{composeFile}, confmap.Strings(meta["compose_extension_files"])...)
	merged := make(confmap.Tree)
	for _, file := range files {
		path := filepath.FromSlash(file)
		if !filepath.IsAbs(path) {
			path = filepath.Join(target.Env().Workspace.Root, path)
		}

		rendered, err := engine.RenderFile(path)
		if err != nil {
			return fmt.Errorf("render compose template %s: %w", file, err)
		}

		var doc confmap.Tree
		if err := yaml.Unmarshal([]byte(rendered), &doc); err != nil {
			return fmt.Errorf("parse rendered compose template %s: %w", file, err)
		}
		merged = confmap.Merge(doc, merged)
	}

	if err := validatePorts(merged); err != nil {
		return err
	}

	out, err := yaml.Marshal(merged)
	if err != nil {
		return fmt.Errorf("serialize compose file: %w", err)
	}

	dst := filepath.Join(target.KardPath(), ComposeFile)
	if err := os.WriteFile(dst, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

func (composeDriver) ContainerName(meta confmap.Tree, service string) string {
	if pattern, ok := meta["container_pattern"].(string); ok && pattern != "" {
		return strings.ReplaceAll(pattern, ServicePattern, service)
	}
	project, _ := meta["project_name"].(string)
	if project == "" {
		return service
	}
	return project + "-" + service
}

func (composeDriver) ImageName(meta confmap.Tree, service string) string {
	name := service
	if pattern, ok := meta["image_pattern"].(string); ok && pattern != "" {
		name = strings.ReplaceAll(pattern, ServicePattern, service)
	}
	if registry, ok := meta["registry"].(string); ok && registry != "" {
		name = registry + "/" + name
	}
	if tag, ok := meta["tag"].(string); ok && tag != "" {
		name = name + ":" + tag
	}
	return name
}

// validatePorts checks every short-syntax port declaration in the
// merged services. Long-syntax mapping entries are left to the
// orchestrator.
func validatePorts(compose confmap.Tree) error {
	services, _ := compose["services"].(map[string]any)
	for name, raw := range services {
		service, _ := raw.(map[string]any)
		ports, _ := service["ports"].([]any)
		for _, port := range ports {
			spec, ok := port.(string)
			if !ok {
				continue
			}
			if _, err := nat.ParsePortSpec(spec); err != nil {
				return fmt.Errorf("service %s: invalid port %q: %w", name, spec, err)
			}
		}
	}
	return nil
}
