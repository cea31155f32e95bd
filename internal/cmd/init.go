package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ballast-sh/ballast/internal/ui"
	"github.com/ballast-sh/ballast/internal/workspace"
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Scaffold a new ballast workspace",
	Long: `Initialize a new ballast workspace with the required directory
structure and a starter dev environment.

This creates:
  env/dev/env.yml      Starter environment definition
  templates/           Template trees (dockerfiles, compose)
  kard/                Kards live here

If no directory is specified, the current directory is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	if workspace.IsRoot(abs) {
		return fmt.Errorf("%s is already a ballast workspace", abs)
	}

	ws, err := workspace.Scaffold(abs)
	if err != nil {
		return err
	}

	ui.Success("Workspace initialized at %s", ws.Root)
	ui.Info("Next: ballast kard create dev --env dev")
	return nil
}
