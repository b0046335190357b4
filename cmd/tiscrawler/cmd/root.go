// Package cmd is the tiscrawler CLI: a cobra root command carrying
// global flags, plus a small set of subcommands.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// configPath is the single required input: the JSON/YAML
	// configuration file.
	configPath string

	// guiFlag is recognized for command-line parity with a GUI/CLI split
	// but has no effect here; the GUI viewer is out of scope for this
	// core.
	guiFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "tiscrawler",
	Short: "Crawl the TIS catalog and emit classified, validated artifact records",
	Long: `tiscrawler performs a bounded-parallelism traversal of the TIS catalog
tree, classifies and extracts matching nodes into artifact records,
validates each artifact's path and name against configured conventions,
and emits one grouped JSON payload plus one "latest" payload per
component category.

Running tiscrawler with no subcommand performs a full crawl using the
config file named by --config. Use "validate-config" to check a
configuration file without crawling.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCrawl,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "path to the crawler configuration file")
	rootCmd.PersistentFlags().BoolVar(&guiFlag, "gui", false, "no-op, kept for parity with a GUI/CLI entry point")

	rootCmd.AddCommand(validateConfigCmd)
}
