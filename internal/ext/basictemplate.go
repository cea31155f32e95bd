package ext

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ballast-sh/ballast/internal/confmap"
	"github.com/ballast-sh/ballast/internal/tpl"
)

func init() {
	Register("basic-template", basicTemplate{})
}

// basicTemplate renders the templates the environment lists under
// the templates key into the kard folder. Each entry names a template
// relative to the environment's template directory and a destination
// relative to the kard path.
type basicTemplate struct{}

func (basicTemplate) Populate(ctx context.Context, target Target) error {
	entries, ok := target.Env().Get("templates", nil).([]any)
	if !ok {
		return nil
	}

	engine, err := target.Engine()
	if err != nil {
		return err
	}

	for _, raw := range entries {
		entry, ok := raw.(confmap.Tree)
		if !ok {
			return fmt.Errorf("templates entries must be mappings, got %T", raw)
		}
		src, _ := entry["template"].(string)
		dst, _ := entry["dst"].(string)
		if src == "" || dst == "" {
			return fmt.Errorf("templates entries need both template and dst")
		}

		source := filepath.Join(target.Env().TemplatePath(), filepath.FromSlash(src))
		destination := filepath.Join(target.KardPath(), filepath.FromSlash(dst))
		rendered, err := engine.RenderFile(source)
		if err != nil {
			return err
		}
		destination = tpl.StripSuffix(destination)
		if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(destination, []byte(rendered), 0o644); err != nil {
			return err
		}
	}
	return nil
}
