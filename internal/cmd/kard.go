package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ballast-sh/ballast/internal/confmap"
	"github.com/ballast-sh/ballast/internal/kard"
	"github.com/ballast-sh/ballast/internal/ui"
)

var kardCmd = &cobra.Command{
	Use:   "kard",
	Short: "Manage kards",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var (
	createEnv       string
	createDriver    string
	createFeatures  []string
	createExtras    []string
	createMetaFile  string
	createNoCurrent bool
)

var kardCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a kard from an environment",
	Long: `Create a kard: compose its meta from the environment, the driver
and the active extensions, and persist the minimal configuration.

Extra values are key=value pairs; dotted keys nest ("app.debug=true")
and "true"/"false" coerce to booleans. A meta file provides the same
values in bulk, with --extra winning on clash.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := findWorkspace()
		if err != nil {
			return err
		}

		extra, err := parseExtras(createExtras)
		if err != nil {
			return err
		}

		meta, err := loadMetaFile(createMetaFile)
		if err != nil {
			return err
		}

		k, err := kard.Create(cmd.Context(), ws, args[0], kard.CreateOptions{
			Env:      createEnv,
			Driver:   createDriver,
			Features: createFeatures,
			Extra:    extra,
			Meta:     meta,
		})
		if err != nil {
			return err
		}
		reportDiagnostics(k)

		if !createNoCurrent {
			if err := kard.SetCurrent(ws, k.Name); err != nil {
				return err
			}
		}

		ui.Success("Kard %s created from env %s", k.Name, k.Env().Name)
		return nil
	},
}

var kardListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the kards of the workspace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := findWorkspace()
		if err != nil {
			return err
		}

		names, err := kard.List(ws)
		if err != nil {
			return err
		}
		current, _ := kard.Current(ws)
		for _, name := range names {
			if name == current {
				ui.Info("%s (current)", name)
			} else {
				ui.Info("%s", name)
			}
		}
		return nil
	},
}

var kardName string

var kardGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Read a composed meta value",
	Long: `Print one value of the composed meta, addressed by a dotted path
("driver.name"), or the whole meta without a key.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := loadKard(cmd)
		if err != nil {
			return err
		}

		var value any = k.Meta()
		if len(args) > 0 {
			value, err = lookupPath(k.Meta(), args[0])
			if err != nil {
				return err
			}
		}

		out, err := yaml.Marshal(value)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

var dumpClean bool

var kardDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the composed meta as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := loadKard(cmd)
		if err != nil {
			return err
		}
		reportDiagnostics(k)

		out, err := k.Dump(dumpClean)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var (
	updateExtras   []string
	updateFeatures []string
)

var kardUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Merge new values into a kard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := loadKard(cmd)
		if err != nil {
			return err
		}

		extra, err := parseExtras(updateExtras)
		if err != nil {
			return err
		}

		if err := k.Update(cmd.Context(), extra, updateFeatures); err != nil {
			return err
		}
		reportDiagnostics(k)

		ui.Success("Kard %s updated", k.Name)
		return nil
	},
}

var makeUpdate bool

var kardMakeCmd = &cobra.Command{
	Use:   "make",
	Short: "Render the kard's file tree",
	Long: `Render every template and build context of the kard. Target
subfolders are rebuilt from scratch unless --update is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := loadKard(cmd)
		if err != nil {
			return err
		}
		reportDiagnostics(k)

		return k.Make(cmd.Context(), !makeUpdate)
	},
}

func init() {
	rootCmd.AddCommand(kardCmd)
	kardCmd.AddCommand(kardCreateCmd, kardListCmd, kardGetCmd, kardDumpCmd, kardUpdateCmd, kardMakeCmd)

	kardCreateCmd.Flags().StringVarP(&createEnv, "env", "e", "", "Environment to create the kard from (default dev)")
	kardCreateCmd.Flags().StringVarP(&createDriver, "driver", "d", "", "Deployment driver (default compose)")
	kardCreateCmd.Flags().StringSliceVar(&createFeatures, "features", nil, "Extra features to activate")
	kardCreateCmd.Flags().StringArrayVar(&createExtras, "extra", nil, "Extra meta value key=value (repeatable)")
	kardCreateCmd.Flags().StringVarP(&createMetaFile, "meta", "m", "", "YAML file with extra meta values")
	kardCreateCmd.Flags().BoolVar(&createNoCurrent, "no-current", false, "Do not make the new kard current")

	for _, c := range []*cobra.Command{kardGetCmd, kardDumpCmd, kardUpdateCmd, kardMakeCmd} {
		c.Flags().StringVarP(&kardName, "kard", "k", "", "Kard to operate on (default the current one)")
	}
	kardDumpCmd.Flags().BoolVar(&dumpClean, "clean", false, "Print the persisted clean meta instead")

	kardUpdateCmd.Flags().StringArrayVar(&updateExtras, "extra", nil, "Extra meta value key=value (repeatable)")
	kardUpdateCmd.Flags().StringSliceVar(&updateFeatures, "features", nil, "Features to append")

	kardMakeCmd.Flags().BoolVarP(&makeUpdate, "update", "u", false, "Update files in place instead of resetting")
}

func loadKard(cmd *cobra.Command) (*kard.Kard, error) {
	ws, err := findWorkspace()
	if err != nil {
		return nil, err
	}
	return kard.Load(cmd.Context(), ws, kardName, nil, 0)
}

func reportDiagnostics(k *kard.Kard) {
	for _, d := range k.Duplicates {
		ui.Warning("%s", d)
	}
	for _, w := range k.Warnings {
		ui.Warning("Meta %s", w)
	}
}

// parseExtras turns repeated key=value flags into a tree.
func parseExtras(pairs []string) (confmap.Tree, error) {
	extra := make(confmap.Tree)
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid extra %q, expected key=value", pair)
		}
		extra[key] = value
	}
	return extra, nil
}

func loadMetaFile(path string) (confmap.Tree, error) {
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read meta file: %w", err)
	}

	meta := make(confmap.Tree)
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("parse meta file %s: %w", path, err)
	}
	return meta, nil
}

// lookupPath walks a dotted key path into a tree.
func lookupPath(tree confmap.Tree, path string) (any, error) {
	var value any = tree
	for _, part := range strings.Split(path, ".") {
		node, ok := value.(confmap.Tree)
		if !ok {
			return nil, fmt.Errorf("meta has no %s", path)
		}
		value, ok = node[part]
		if !ok {
			return nil, fmt.Errorf("meta has no %s", path)
		}
	}
	return value, nil
}
