package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ballast-sh/ballast/internal/driver"
	"github.com/ballast-sh/ballast/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current kard's containers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := loadKard(cmd)
		if err != nil {
			return err
		}

		project, _ := k.Meta()["project_name"].(string)
		if project == "" {
			project = k.Name
		}

		client, err := driver.NewDockerClient()
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.Ping(cmd.Context()); err != nil {
			return err
		}

		containers, err := client.Ps(cmd.Context(), project)
		if err != nil {
			return err
		}
		if len(containers) == 0 {
			ui.Warning("No containers for kard %s (project %s)", k.Name, project)
			return nil
		}

		ui.Header("Kard %s (project %s)", k.Name, project)
		for _, c := range containers {
			switch c.State {
			case "running":
				ui.Success("%s  %s  %s", c.Name, c.Image, c.Status)
			default:
				ui.Error("%s  %s  %s", c.Name, c.Image, c.Status)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&kardName, "kard", "k", "", "Kard to inspect (default the current one)")
}
