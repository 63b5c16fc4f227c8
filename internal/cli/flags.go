package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bankrecon/bankrecon/internal/domain/model"
)

const dayLayout = "2006-01-02"

// periodFlags are the --from and --to flags shared by account commands.
type periodFlags struct {
	from string
	to   string
}

func (p *periodFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.from, "from", "", "first day of the period (YYYY-MM-DD)")
	cmd.Flags().StringVar(&p.to, "to", "", "last day of the period (YYYY-MM-DD)")
}

// Range parses the flags. Either end may be left open.
func (p periodFlags) Range() (model.DateRange, error) {
	var (
		rng model.DateRange
		err error
	)
	if rng.From, err = parseDay(p.from); err != nil {
		return rng, err
	}
	if rng.To, err = parseDay(p.to); err != nil {
		return rng, err
	}
	if !rng.From.IsZero() && !rng.To.IsZero() && rng.To.Before(rng.From) {
		return rng, model.Invalidf("--to %s is before --from %s", p.to, p.from)
	}
	return rng, nil
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return time.Time{}, model.Invalidf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// bindUser adds --user, defaulting to the login name.
func bindUser(cmd *cobra.Command, user *string) {
	cmd.Flags().StringVar(user, "user", os.Getenv("USER"), "acting user recorded on the reconciliation")
}
