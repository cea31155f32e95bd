package kard

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ballast-sh/ballast/internal/confmap"
	"github.com/ballast-sh/ballast/internal/ext"
	"github.com/ballast-sh/ballast/internal/tpl"
)

// computeMeta composes the full meta from the clean meta. The
// protocol keeps user extras supreme over everything an extension
// writes, while still letting extensions introduce new values:
// mutations made by setup hooks are isolated by a snapshot/diff pair
// and re-merged underneath the extras.
//
// The clean meta never absorbs extension-introduced values; the only
// writes back into it are required-meta resolutions, so that a value
// prompted once persists and a reload asks nothing.
func (k *Kard) computeMeta(ctx context.Context) error {
	clean := confmap.Copy(k.CleanMeta)

	// Features merge as ordered lists at the very end, never as part
	// of the deep merge.
	callerFeatures := confmap.Strings(clean["features"])
	delete(clean, "features")
	delete(clean, "env")

	extra := clean

	meta, err := k.environ.Meta(extra, k.prompt)
	if err != nil {
		return err
	}
	envFeatures := confmap.Strings(meta["features"])
	delete(meta, "features")

	driverMeta, err := k.drv.Meta(k.Name, meta, extra, k.prompt)
	if err != nil {
		return err
	}
	var warns, w []confmap.Warning
	meta, w = confmap.MergeWarn(driverMeta, meta)
	warns = append(warns, w...)
	meta, w = confmap.MergeWarn(extra, meta)
	warns = append(warns, w...)

	// Values prompted during required resolution landed in extra;
	// fold the new ones into the persisted clean meta.
	confmap.MergeNoOverwrite(extra, k.CleanMeta)

	k.ensureSrcPath(meta)

	k.Features = confmap.MergeLists(callerFeatures, append([]string(nil), envFeatures...), false)
	k.exts = ext.ForFeatures(k.Features, k.timeout)

	// Setup hooks mutate a scratch copy; it becomes the meta only
	// when every hook succeeded, so a failed or timed-out hook can
	// not leave half-applied values behind.
	baseline := confmap.Copy(meta)
	k.meta = confmap.Copy(meta)
	if err := k.exts.Setup(ctx, confmap.Copy(extra), k); err != nil {
		k.meta = nil
		return err
	}
	meta = k.meta

	changes := confmap.Diff(baseline, meta)
	extra = confmap.MergeNoOverwrite(changes, extra)
	meta, w = confmap.MergeWarn(extra, meta)
	warns = append(warns, w...)

	meta["features"] = toAnyList(k.Features)
	// The environment name travels with the composed meta so
	// templates and dumps can reference it.
	meta["env"] = k.environ.Name
	k.ensureSrcPath(meta)

	// Environment-side warnings are complete once environ.Meta ran.
	k.Warnings = append(append([]confmap.Warning(nil), k.environ.Warnings...), warns...)

	k.meta = meta
	rendered, err := k.templateMeta(meta)
	if err != nil {
		k.meta = nil
		return err
	}
	k.meta = rendered
	return nil
}

// ensureSrcPath defaults src_path to the kard-local source folder
// and absolutizes relative values against the workspace root.
func (k *Kard) ensureSrcPath(meta confmap.Tree) {
	src, _ := meta["src_path"].(string)
	switch {
	case src == "":
		src = filepath.Join(k.Path, LocalSrc)
	case !filepath.IsAbs(src):
		src = filepath.Join(k.ws.Root, src)
	}
	meta["src_path"] = src
}

// templateMeta renders the meta through itself: string values may
// reference other meta values and helper functions. A rendered value
// starting with a YAML document marker is re-parsed, so a template
// can produce structured configuration, not just scalars.
func (k *Kard) templateMeta(meta confmap.Tree) (confmap.Tree, error) {
	engine := tpl.NewEngine(meta, k.helperFuncs())
	rendered, err := renderMetaValue(engine, meta)
	if err != nil {
		return nil, err
	}
	return rendered.(confmap.Tree), nil
}

func renderMetaValue(engine *tpl.Engine, value any) (any, error) {
	switch v := value.(type) {
	case string:
		if !strings.Contains(v, "{{") {
			return v, nil
		}
		out, err := engine.RenderString("meta", v)
		if err != nil {
			return nil, fmt.Errorf("meta value %q: %w", v, err)
		}
		if strings.HasPrefix(out, "---\n") {
			var doc any
			if err := yaml.Unmarshal([]byte(out), &doc); err != nil {
				return nil, fmt.Errorf("meta value %q rendered invalid YAML: %w", v, err)
			}
			return doc, nil
		}
		return out, nil

	case confmap.Tree:
		result := make(confmap.Tree, len(v))
		for key, nested := range v {
			sub, err := renderMetaValue(engine, nested)
			if err != nil {
				return nil, err
			}
			result[key] = sub
		}
		return result, nil

	case []any:
		result := make([]any, len(v))
		for i, nested := range v {
			sub, err := renderMetaValue(engine, nested)
			if err != nil {
				return nil, err
			}
			result[i] = sub
		}
		return result, nil

	default:
		return value, nil
	}
}
