package kard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"text/template"

	"github.com/ballast-sh/ballast/internal/confmap"
	"github.com/ballast-sh/ballast/internal/driver"
	"github.com/ballast-sh/ballast/internal/lock"
	"github.com/ballast-sh/ballast/internal/snapshot"
	"github.com/ballast-sh/ballast/internal/tpl"
	"github.com/ballast-sh/ballast/internal/ui"
)

// Make materializes the kard: it renders every instruction the
// driver derives from the environment, then runs the extension and
// driver populate steps. With reset, each target subfolder is wiped
// first; otherwise files are updated in place. Any rendering error
// aborts the whole make.
func (k *Kard) Make(ctx context.Context, reset bool) error {
	return lock.WithLock(k.ws.Root, "kard-"+k.Name, func() error {
		instructions, err := k.drv.Instructions(k)
		if err != nil {
			return err
		}
		for i := range instructions {
			k.expandVars(&instructions[i])
		}

		// Subfolders reset once each, in first-appearance order.
		var subfolders []string
		seen := make(map[string]bool)
		for _, inst := range instructions {
			if inst.Subfolder == "" || seen[inst.Subfolder] {
				continue
			}
			seen[inst.Subfolder] = true
			subfolders = append(subfolders, inst.Subfolder)
		}

		if reset {
			var targets []string
			for _, sub := range subfolders {
				targets = append(targets, filepath.Join(k.Path, sub))
			}
			name, err := snapshot.Capture(k.ws.Root, k.Name, targets)
			if err != nil {
				return err
			}
			if name != "" {
				ui.Info("Previous output saved as %s", name)
			}
		}

		for _, sub := range subfolders {
			dst := filepath.Join(k.Path, sub)
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", dst, err)
			}
		}

		engine, err := k.Engine()
		if err != nil {
			return err
		}

		ui.Step(1, "Rendering %d instructions", len(instructions))
		for _, inst := range instructions {
			dst := filepath.Join(k.Path, inst.Subfolder, filepath.FromSlash(inst.Destination))
			if err := engine.Run(inst, dst); err != nil {
				return err
			}
		}

		ui.Step(2, "Running extension populate hooks")
		if err := k.exts.Populate(ctx, k); err != nil {
			return err
		}
		ui.Step(3, "Running driver populate")
		if err := k.drv.Populate(ctx, k); err != nil {
			return err
		}

		ui.Success("Kard %s made", k.Name)
		return nil
	})
}

// expandVars substitutes the kard path variables an environment may
// use in requirement declarations. Paths that name no variable
// resolve against the workspace root; destinations stay relative,
// they are joined under the kard path later.
func (k *Kard) expandVars(inst *tpl.Instruction) {
	replacer := strings.NewReplacer(
		"$KARD_PATH", k.Path,
		"$SRC_PATH", k.SrcPath(),
	)
	inst.Source = k.absolutize(replacer.Replace(inst.Source))
	inst.Origin = k.absolutize(replacer.Replace(inst.Origin))
	inst.Destination = replacer.Replace(inst.Destination)
}

func (k *Kard) absolutize(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(k.ws.Root, path)
}

// Engine builds the template engine for this kard: the composed meta
// as context, the helper functions, and whatever the active
// extensions contribute. Function-valued contributions become
// template functions, everything else context values.
func (k *Kard) Engine() (*tpl.Engine, error) {
	if k.meta == nil {
		return nil, fmt.Errorf("kard %s: meta not composed", k.Name)
	}

	data, err := k.exts.TemplateData(k)
	if err != nil {
		return nil, err
	}

	context := confmap.Copy(k.meta)
	funcs := k.helperFuncs()
	for name, value := range data {
		if reflect.ValueOf(value).Kind() == reflect.Func {
			funcs[name] = value
		} else {
			context[name] = value
		}
	}
	return tpl.NewEngine(context, funcs), nil
}

func (k *Kard) helperFuncs() template.FuncMap {
	return template.FuncMap{
		"kard_path": func(parts ...string) string {
			return filepath.Join(append([]string{k.Path}, parts...)...)
		},
		"src_path": func(parts ...string) string {
			return filepath.Join(append([]string{k.SrcPath()}, parts...)...)
		},
		"data_path": func(parts ...string) string {
			return filepath.Join(append([]string{k.Path, DataFolder}, parts...)...)
		},
		"context_path": func(parts ...string) string {
			return filepath.Join(append([]string{k.Path, driver.ContextFolder}, parts...)...)
		},
		"format_image": func(image string) string {
			if registry, ok := k.meta["registry"].(string); ok && registry != "" {
				image = registry + "/" + image
			}
			if tag, ok := k.meta["tag"].(string); ok && tag != "" {
				image = image + ":" + tag
			}
			return image
		},
		"make_container_name": func(service string) string {
			return k.drv.ContainerName(k.meta, service)
		},
		"make_image_name": func(service string) string {
			return k.drv.ImageName(k.meta, service)
		},
		"kard_file_content": func(path string) (string, error) {
			raw, err := os.ReadFile(filepath.Join(k.Path, filepath.FromSlash(path)))
			if err != nil {
				return "", fmt.Errorf("kard_file_content %s: %w", path, err)
			}
			return tpl.NewEngine(k.meta).RenderString(path, string(raw))
		},
	}
}
