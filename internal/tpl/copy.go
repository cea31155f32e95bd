package tpl

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/moby/patternmatcher"

	"github.com/ballast-sh/ballast/internal/fileutil"
)

// Run executes one render instruction, materializing its source tree
// under dst (the already-joined kard/subfolder/destination path).
func (e *Engine) Run(inst Instruction, dst string) error {
	matcher, err := patternmatcher.New(inst.ExcludedPaths)
	if err != nil {
		return fmt.Errorf("exclusion patterns %v: %w", inst.ExcludedPaths, err)
	}

	c := &copier{engine: e, origin: filepath.Clean(inst.Origin), matcher: matcher, template: inst.Template}
	if err := c.copy(filepath.Clean(inst.Source), c.origin, dst); err != nil {
		return fmt.Errorf("render %s: %w", inst.Source, err)
	}
	return nil
}

type copier struct {
	engine   *Engine
	origin   string
	matcher  *patternmatcher.PatternMatcher
	template bool
}

// copy reproduces path under dst. Glob sources expand per match,
// re-basing the origin to the non-wildcard parent; directories
// recurse child by child so exclusions apply at every level.
func (c *copier) copy(path, origin, dst string) error {
	if strings.ContainsAny(path, "*?[") {
		matches, err := filepath.Glob(path)
		if err != nil {
			return fmt.Errorf("expand glob %s: %w", path, err)
		}
		if strings.ContainsAny(filepath.Base(origin), "*?[") {
			origin = filepath.Dir(origin)
		}

		for _, match := range matches {
			rel, err := filepath.Rel(origin, match)
			if err != nil {
				return fmt.Errorf("relativize %s: %w", match, err)
			}
			if err := c.copy(match, match, filepath.Join(dst, rel)); err != nil {
				return err
			}
		}
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("source %s: %w", path, err)
	}

	if !info.IsDir() {
		return c.copyFile(path, origin, dst)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read directory %s: %w", path, err)
	}
	for _, entry := range entries {
		child := filepath.Join(path, entry.Name())
		excluded, err := c.excluded(child)
		if err != nil {
			return err
		}
		if excluded {
			continue
		}
		if err := c.copy(child, origin, dst); err != nil {
			return err
		}
	}
	return nil
}

func (c *copier) copyFile(path, origin, dst string) error {
	if excluded, err := c.excluded(path); err != nil || excluded {
		return err
	}

	var dstPath string
	if path == origin {
		// A direct file instruction: dst already names the target.
		dstPath = dst
	} else {
		rel, err := filepath.Rel(origin, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}
		dstPath = filepath.Join(dst, rel)
	}

	if c.template && strings.HasSuffix(filepath.Base(path), TemplateSuffix) {
		return c.renderFile(path, dstPath)
	}
	return fileutil.CopyPreserve(path, dstPath)
}

// renderFile renders a template-marked file to dstPath with the
// marker suffix stripped, carrying over the source file's mode and
// timestamps so rendering is metadata-preserving like a plain copy.
func (c *copier) renderFile(path, dstPath string) error {
	if info, err := os.Stat(dstPath); err == nil && info.IsDir() {
		dstPath = filepath.Join(dstPath, StripSuffix(filepath.Base(path)))
	} else if strings.HasSuffix(filepath.Base(dstPath), TemplateSuffix) {
		dstPath = filepath.Join(filepath.Dir(dstPath), StripSuffix(filepath.Base(dstPath)))
	}

	out, err := c.engine.RenderFile(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(dstPath, []byte(out), 0644); err != nil {
		return fmt.Errorf("write %s: %w", dstPath, err)
	}
	return fileutil.CloneStat(path, dstPath)
}

// excluded reports whether path, relative to the instruction origin,
// matches an exclusion pattern.
func (c *copier) excluded(path string) (bool, error) {
	if len(c.matcher.Patterns()) == 0 {
		return false, nil
	}

	rel, err := filepath.Rel(c.origin, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = path
	}

	matched, err := c.matcher.MatchesOrParentMatches(filepath.ToSlash(rel))
	if err != nil {
		return false, fmt.Errorf("match exclusions for %s: %w", path, err)
	}
	return matched, nil
}
