package ext

import "fmt"

func init() {
	Register("auto-volume", autoVolume{})
}

// autoVolume exposes an add_file template helper that switches
// between baking files into the image and mounting them at runtime.
// With use_volume set in the environment, rendered dockerfiles get a
// VOLUME declaration instead of an ADD, letting development kards
// share live sources with the containers.
type autoVolume struct{}

func (autoVolume) TemplateData(target Target) (map[string]any, error) {
	useVolume, _ := target.Env().Get("use_volume", false).(bool)
	if v, ok := target.Meta()["use_volume"].(bool); ok {
		useVolume = v
	}

	addFile := func(src, dst string) string {
		if useVolume {
			return fmt.Sprintf("VOLUME %q", dst)
		}
		return fmt.Sprintf("ADD %q %q", src, dst)
	}

	return map[string]any{
		"use_volume": useVolume,
		"add_file":   addFile,
	}, nil
}
