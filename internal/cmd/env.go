package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ballast-sh/ballast/internal/ui"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Inspect environments",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var envListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the environments of the workspace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := findWorkspace()
		if err != nil {
			return err
		}

		names, err := ws.Environments()
		if err != nil {
			return err
		}
		for _, name := range names {
			ui.Info("%s", name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(envCmd)
	envCmd.AddCommand(envListCmd)
}
