package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tisops/tis-crawler/internal/config"
)

var initConfigOut string

// initConfigCmd writes a starter YAML configuration, letting operators
// bootstrap a new deployment instead of hand-assembling the option tree
// from scratch.
var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write a starter configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.WriteExample(initConfigOut); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote starter configuration to %s\n", initConfigOut)
		return nil
	},
}

func init() {
	initConfigCmd.Flags().StringVar(&initConfigOut, "out", "config.example.yaml", "output path for the starter configuration")
	rootCmd.AddCommand(initConfigCmd)
}
