package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tisops/tis-crawler/internal/config"
)

// validateConfigCmd loads and validates a configuration file without
// crawling, turning a fatal-at-startup configuration error into a clean
// CLI error instead of a crash mid-run.
var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Validate a configuration file without crawling",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: configuration valid\n", configPath)
		fmt.Fprintf(cmd.OutOrStdout(), "  rootNodeId: %s\n", cfg.API.RootNodeID)
		fmt.Fprintf(cmd.OutOrStdout(), "  concurrentRequests: %d\n", cfg.Optimization.ConcurrentRequests)
		fmt.Fprintf(cmd.OutOrStdout(), "  pathConvention.enabled: %t\n", cfg.PathConvention.Enabled)
		fmt.Fprintf(cmd.OutOrStdout(), "  namingConvention.enabled: %t\n", cfg.NamingConvention.Enabled)
		return nil
	},
}
