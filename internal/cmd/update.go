package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ballast-sh/ballast/internal/ui"
	"github.com/ballast-sh/ballast/internal/update"
)

var checkOnly bool

var updateCmd = &cobra.Command{
	Use:     "update",
	Aliases: []string{"selfupdate"},
	Short:   "Update ballast to the latest version",
	Long: `Update ballast to the latest GitHub release.

Examples:
  ballast update           # Update to latest version
  ballast update --check   # Check for updates without installing`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().BoolVar(&checkOnly, "check", false, "Only check for updates, don't install")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ui.Info("Current version: %s (%s)", version, update.GetPlatformInfo())

	if checkOnly {
		release, available, err := update.CheckForUpdate(version)
		if err != nil {
			return err
		}
		if !available {
			ui.Success("You're running the latest version!")
			return nil
		}
		ui.Success("New version available: %s (released %s)", release.Version, release.PublishedAt)
		ui.Info("To update, run: ballast update")
		return nil
	}

	release, err := update.Update(version)
	if err != nil {
		return err
	}
	if release == nil {
		ui.Success("You're running the latest version!")
		return nil
	}
	ui.Success("Updated to %s", release.Version)
	return nil
}
