// Package cli implements the bankrecon command line.
package cli

import (
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "bankrecon",
		Short:   "Reconcile bank statements against the general ledger",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "configuration file (default config.yaml, then environment)")
	flags.StringVar(&opts.dbPath, "db", "", "database path, overrides the configured one")
	flags.BoolVar(&opts.verbose, "verbose", false, "debug logging")

	rootCmd.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newImportCommand(opts),
		newAutoCommand(opts),
		newDetectCommand(opts),
		newReverseCommand(opts),
		newHistoryCommand(opts),
		newSummaryCommand(opts),
	)

	return rootCmd
}
