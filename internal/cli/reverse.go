package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReverseCommand(opts *rootOptions) *cobra.Command {
	var reason, user string

	cmd := &cobra.Command{
		Use:   "reverse <reconciliation-id>",
		Short: "Reverse a reconciliation and release its movements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.engine.Reverse(cmd.Context(), args[0], reason, user); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reversed %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "why the reconciliation is reversed (required)")
	_ = cmd.MarkFlagRequired("reason")
	bindUser(cmd, &user)

	return cmd
}
