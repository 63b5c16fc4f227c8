package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			version, err := a.store.SchemaVersion(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading schema version: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is at schema version %d\n", a.cfg.Storage.DatabasePath, version)
			return nil
		},
	}
}
