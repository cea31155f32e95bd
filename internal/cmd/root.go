// Package cmd provides the CLI commands for ballast.
package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/ballast-sh/ballast/internal/ui"
	"github.com/ballast-sh/ballast/internal/workspace"
)

const version = "0.3.0"

var debug bool

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ballast",
	Short: "Compose layered configuration into deployable kards",
	Long: `ballast composes layered environment configuration into kards:
deployment instances with a rendered file tree ready to ship.

A workspace holds environments (env/<name>/env.yml with imports and
feature overlays), template trees, and kards (kard/<name>). Creating a
kard composes its meta from the environment, the selected driver and
the active extensions; making it renders every template and build
context.

WORKSPACE
  init [dir]            Scaffold a new workspace
  env list              List environments

KARD COMMANDS
  kard create <name>    Create a kard from an environment
  kard list             List kards
  kard get [key]        Read a composed meta value
  kard dump             Print the composed meta
  kard update           Merge new values into a kard
  kard make             Render the kard's file tree

DIAGNOSTICS
  ext list              List known extensions
  status                Show the current kard's containers
  doctor                Check that this host can compose and run kards
  update                Update ballast itself`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command and reports failures on stderr. With
// --debug the whole error chain is printed, one cause per line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.Error("%v", err)
		if debug {
			for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
				ui.Debug("caused by: %v", cause)
			}
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Print debug output and full error chains")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		ui.Debugging = debug
	}
	rootCmd.SetVersionTemplate("ballast version {{.Version}}\n")
}

// findWorkspace locates the surrounding workspace, from BALLAST_PATH
// or the working directory.
func findWorkspace() (*workspace.Workspace, error) {
	return workspace.Find()
}
