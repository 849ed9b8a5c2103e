package commands

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/settleloop/settleloop/internal/ledger"
	"github.com/settleloop/settleloop/internal/model"
	"github.com/settleloop/settleloop/internal/money"
)

func newExpenseCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expense",
		Short: "Record and remove expenses",
	}
	cmd.AddCommand(newExpenseAddCommand(opts), newExpenseRemoveCommand(opts), newExpenseListCommand(opts))
	return cmd
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

// parseShares reads "member=value" pairs. Values are amounts for AMOUNT
// splits and percentages for PERCENT splits.
func (a *app) parseShares(missionID string, mode model.SplitMode, pairs []string) ([]model.Share, error) {
	shares := make([]model.Share, 0, len(pairs))
	for _, p := range pairs {
		ref, raw, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid share %q: want member=value", p)
		}
		ids, err := a.members(missionID, []string{ref})
		if err != nil {
			return nil, err
		}
		v, err := parseAmount(strings.TrimSuffix(raw, "%"))
		if err != nil {
			return nil, err
		}
		s := model.Share{MemberID: ids[0]}
		if mode == model.SplitPercent {
			s.Percent = v
		} else {
			s.Amount = v
		}
		shares = append(shares, s)
	}
	return shares, nil
}

func newExpenseAddCommand(opts *rootOptions) *cobra.Command {
	var paidBy string
	var with []string
	var mode string
	var shares []string

	cmd := &cobra.Command{
		Use:   "add <mission> <title> <amount>",
		Short: "Record an expense",
		Long: `Record an expense paid by one member.

EQUAL splits divide the amount among --with (default: every member).
AMOUNT and PERCENT splits take --share member=value for each participant.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			m, err := a.mission(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			payer := paidBy
			if payer == "" {
				cur, err := a.currentUser(m.ID, "")
				if err != nil {
					return fmt.Errorf("--paid-by is required: %w", err)
				}
				payer = cur.ID
			}
			payerIDs, err := a.members(m.ID, []string{payer})
			if err != nil {
				return err
			}

			params := ledger.ExpenseParams{
				Title:  args[1],
				Amount: amount,
				PaidBy: payerIDs[0],
				Mode:   model.SplitMode(strings.ToUpper(mode)),
			}
			if len(shares) > 0 {
				if params.Shares, err = a.parseShares(m.ID, params.Mode, shares); err != nil {
					return err
				}
			} else if len(with) > 0 {
				if params.Participants, err = a.members(m.ID, with); err != nil {
					return err
				}
			} else {
				params.Participants = m.MemberIDs()
			}

			e, err := a.svc.AddExpense(m.ID, params)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Added %s %q (%s) split %s among %d\n",
				e.ID, e.Title, money.Format(e.Amount), e.Mode, len(e.Shares))
			return a.commit("expense", "add %s %s", e.Title, money.Format(e.Amount))
		},
	}
	cmd.Flags().StringVar(&paidBy, "paid-by", "", "member who paid (default: current user)")
	cmd.Flags().StringSliceVar(&with, "with", nil, "members sharing an EQUAL split")
	cmd.Flags().StringVar(&mode, "mode", string(model.SplitEqual), "split mode: EQUAL, AMOUNT or PERCENT")
	cmd.Flags().StringArrayVar(&shares, "share", nil, "member=value for AMOUNT and PERCENT splits (repeatable)")
	return cmd
}

func newExpenseRemoveCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <mission> <expense-id>",
		Short: "Remove an expense",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			m, err := a.mission(args[0])
			if err != nil {
				return err
			}
			e, _, ok := m.Expense(args[1])
			if !ok {
				return &ledger.NotFoundError{Kind: ledger.KindExpense, ID: args[1]}
			}
			if err := a.svc.RemoveExpense(m.ID, e.ID); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Removed %q (%s)\n", e.Title, money.Format(e.Amount))
			return a.commit("expense", "remove %s", e.Title)
		},
	}
}

func newExpenseListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <mission>",
		Short: "List a mission's expenses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			m, err := a.mission(args[0])
			if err != nil {
				return err
			}
			for _, e := range m.Expenses {
				payer, _ := m.Member(e.PaidBy)
				line := fmt.Sprintf("%s  %s  %-24s %10s  paid by %s  %s",
					e.ID, e.CreatedAt.Format("2006-01-02"), e.Title, money.Format(e.Amount), payer.Name, e.Mode)
				if e.SourceRuleID != "" {
					line += "  (auto: " + e.SourceRuleID + ")"
				}
				fmt.Fprintln(a.out, line)
			}
			return nil
		},
	}
}
