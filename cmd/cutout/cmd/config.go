package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/cutout/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create configuration files",
}

var configInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write the default configuration as YAML",
	Long: `Write the default configuration to a YAML file (cutout.yaml by default).
An existing file is never overwritten.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ConfigFileName + ".yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.GenerateDefaultConfigFile(path); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:          "show",
	Short:        "Print the resolved configuration as YAML",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if info, _ := cmd.Flags().GetBool("sources"); info {
			GetConfigLoader().PrintConfigInfo(cmd.OutOrStdout())
			_, _ = fmt.Fprintln(cmd.OutOrStdout())
		}
		return config.WriteYAML(cmd.OutOrStdout(), *GetConfig())
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd)
	configShowCmd.Flags().Bool("sources", false, "also print the config file and search paths")
}
