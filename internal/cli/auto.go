package cli

import (
	"github.com/spf13/cobra"

	"github.com/bankrecon/bankrecon/internal/application/reconcile"
)

func newAutoCommand(opts *rootOptions) *cobra.Command {
	var (
		period periodFlags
		user   string
	)

	cmd := &cobra.Command{
		Use:   "auto <bank-account-id>",
		Short: "Apply confident exact matches automatically",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rng, err := period.Range()
			if err != nil {
				return err
			}

			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			PrintHeader(out, "auto", args[0], rng)

			result, err := a.engine.RunAutomatic(cmd.Context(), reconcile.AutoRequest{
				BankAccountID: args[0],
				Period:        rng,
				ActingUser:    user,
			})
			if result != nil {
				PrintAutoSummary(out, result)
			}
			return err
		},
	}

	period.bind(cmd)
	bindUser(cmd, &user)

	return cmd
}
