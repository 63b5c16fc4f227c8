package cli

import (
	"github.com/spf13/cobra"

	"github.com/bankrecon/bankrecon/internal/domain/model"
)

func newDetectCommand(opts *rootOptions) *cobra.Command {
	var (
		period   periodFlags
		apply    bool
		approved bool
		notes    string
		user     string
	)

	cmd := &cobra.Command{
		Use:   "detect <bank-account-id>",
		Short: "Propose ledger entries for commissions, interest and bank notes",
		Long: `Scans unmatched bank movements for known bank-only items and prints the
double-entry lines that would account for them. With --apply the proposals are
posted; proposals flagged for review are posted only with --approved.`,
		Args: cobra.ExactArgs(1),
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
			PrintHeader(out, "detect", args[0], rng)

			proposals, err := a.engine.Detect(cmd.Context(), args[0], rng)
			if err != nil {
				return err
			}
			PrintProposals(out, proposals)

			if !apply || len(proposals) == 0 {
				return nil
			}

			selected := make([]model.AdjustmentProposal, 0, len(proposals))
			for _, p := range proposals {
				if p.RequiresApproval && !approved {
					continue
				}
				selected = append(selected, p)
			}

			result, err := a.engine.ApplyAdjustments(cmd.Context(), selected, notes, user)
			if err != nil {
				return err
			}
			PrintAdjustmentResult(out, result)
			return nil
		},
	}

	period.bind(cmd)
	cmd.Flags().BoolVar(&apply, "apply", false, "post the proposals")
	cmd.Flags().BoolVar(&approved, "approved", false, "also post proposals flagged for review")
	cmd.Flags().StringVar(&notes, "notes", "", "notes recorded on each adjustment")
	bindUser(cmd, &user)

	return cmd
}
