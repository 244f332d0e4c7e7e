package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"flakecast/internal/config"
	"flakecast/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with the password redacted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := config.Marshal(current.cfg)
		if err != nil {
			return err
		}
		_, err = current.ui.Writer().Write(data)
		return err
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the default config file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, config.GetConfigFile())
		if !config.Exists() {
			ui.ShowWarning(out, "file does not exist yet; defaults and FLAKECAST_* variables apply")
		}
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}
