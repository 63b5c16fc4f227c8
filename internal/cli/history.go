package cli

import (
	"github.com/spf13/cobra"

	"github.com/bankrecon/bankrecon/internal/application/reconcile"
	"github.com/bankrecon/bankrecon/internal/domain/model"
)

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var (
		period        periodFlags
		recType       string
		status        string
		limit, offset int
	)

	cmd := &cobra.Command{
		Use:   "history <bank-account-id>",
		Short: "List reconciliations, newest first",
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

			page, err := a.engine.History(cmd.Context(), args[0], reconcile.HistoryFilter{
				Period: rng,
				Type:   model.ReconciliationType(recType),
				Status: model.ReconciliationStatus(status),
				Limit:  limit,
				Offset: offset,
			})
			if err != nil {
				return err
			}
			PrintHistory(cmd.OutOrStdout(), page)
			return nil
		},
	}

	period.bind(cmd)
	cmd.Flags().StringVar(&recType, "type", "", "AUTO, MANUAL or ADJUSTMENT")
	cmd.Flags().StringVar(&status, "status", "", "ACTIVE or REVERSED")
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")

	return cmd
}

func newSummaryCommand(opts *rootOptions) *cobra.Command {
	var period periodFlags

	cmd := &cobra.Command{
		Use:   "summary <bank-account-id>",
		Short: "Show reconciliation figures for an account",
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

			summary, err := a.engine.Summary(cmd.Context(), args[0], rng)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			PrintHeader(out, "summary", args[0], rng)
			PrintSummary(out, summary)
			return nil
		},
	}

	period.bind(cmd)

	return cmd
}
