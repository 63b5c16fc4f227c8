package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newImportCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load parsed bank statements or ledger lines from CSV",
	}
	cmd.AddCommand(newImportBankCommand(opts), newImportLedgerCommand(opts))
	return cmd
}

func newImportBankCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bank <bank-account-id> <file.csv>",
		Short: "Import statement lines (date, amount, description[, reference, running_balance])",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			movements, err := parseBankCSV(f, args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[1], err)
			}

			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.engine.ImportBankMovements(cmd.Context(), args[0], movements); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d bank movements into %s\n", len(movements), args[0])
			return nil
		},
	}
}

func newImportLedgerCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ledger <file.csv>",
		Short: "Import accounting movements (ledger_account, document, date, debit, credit, concept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			movements, err := parseLedgerCSV(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.engine.ImportAccountingMovements(cmd.Context(), movements); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d accounting movements\n", len(movements))
			return nil
		},
	}
}
