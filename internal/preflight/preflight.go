// Package preflight checks the host for the tools a kard needs once
// it is made: the container runtime that runs the rendered compose
// file and the helpers some extensions rely on.
package preflight

import (
	"os/exec"
)

// BinaryCheck names a binary in PATH and why ballast wants it.
type BinaryCheck struct {
	Name        string
	Required    bool // false = warning only
	InstallHint string
}

var requiredBinaries = []BinaryCheck{
	{
		Name:        "docker",
		Required:    true,
		InstallHint: "Install Docker: https://docs.docker.com/get-docker/",
	},
}

var optionalBinaries = []BinaryCheck{
	{
		Name:        "git",
		Required:    false,
		InstallHint: "Install git: https://git-scm.com/downloads",
	},
	{
		Name:        "docker-compose",
		Required:    false,
		InstallHint: "Only needed for the legacy standalone Compose; newer Docker ships `docker compose`",
	},
}

// CheckAll checks every known binary. Missing required binaries come
// back as errors, missing optional ones as warnings.
func CheckAll() (warnings []string, errors []string) {
	for _, bin := range requiredBinaries {
		if !IsBinaryAvailable(bin.Name) {
			errors = append(errors, bin.Name+": "+bin.InstallHint)
		}
	}
	for _, bin := range optionalBinaries {
		if !IsBinaryAvailable(bin.Name) {
			warnings = append(warnings, bin.Name+": "+bin.InstallHint)
		}
	}
	return warnings, errors
}

// IsBinaryAvailable reports whether a binary can be found in PATH.
func IsBinaryAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
