package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ballast-sh/ballast/internal/driver"
	"github.com/ballast-sh/ballast/internal/preflight"
	"github.com/ballast-sh/ballast/internal/ui"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that this host can compose and run kards",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := false

		if ws, err := findWorkspace(); err != nil {
			ui.Warning("No workspace found: %v", err)
		} else {
			ui.Success("Workspace at %s", ws.Root)
		}

		warnings, errors := preflight.CheckAll()
		for _, w := range warnings {
			ui.Warning("%s", w)
		}
		for _, e := range errors {
			ui.Error("%s", e)
			failed = true
		}

		if client, err := driver.NewDockerClient(); err != nil {
			ui.Warning("Docker client: %v", err)
		} else {
			defer client.Close()
			if err := client.Ping(cmd.Context()); err != nil {
				ui.Warning("Docker daemon unreachable: %v", err)
			} else {
				ui.Success("Docker daemon reachable")
			}
		}

		if failed {
			return fmt.Errorf("missing required tools")
		}
		ui.Success("Ready to make kards")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
