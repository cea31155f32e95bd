package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ballast-sh/ballast/internal/ext"
	"github.com/ballast-sh/ballast/internal/ui"
)

var extCmd = &cobra.Command{
	Use:   "ext",
	Short: "Inspect extensions",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var extListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the known extensions",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range ext.Names() {
			ui.Info("%s", name)
		}
	},
}

func init() {
	rootCmd.AddCommand(extCmd)
	extCmd.AddCommand(extListCmd)
}
