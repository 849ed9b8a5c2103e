package commands

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/settleloop/settleloop/internal/model"
	"github.com/settleloop/settleloop/internal/money"
	"github.com/settleloop/settleloop/internal/settlement"
)

func newBalancesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balances <mission>",
		Short: "Show who owes and who is owed",
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
			header := m.Title
			if m.IsSettled() {
				header += " (settled)"
			}
			fmt.Fprintln(a.out, color.New(color.Bold).Sprint(header))
			for _, mem := range m.Members {
				fmt.Fprintf(a.out, "  %-16s %s\n", mem.Name, formatBalance(mem))
			}
			return nil
		},
	}
}

func printPlan(a *app, m *model.Mission, plan settlement.Plan) {
	if len(plan.Transfers) == 0 {
		fmt.Fprintln(a.out, "Everyone is settled up.")
		return
	}
	for _, t := range plan.Transfers {
		fmt.Fprintf(a.out, "  %s pays %s %s\n", memberName(m, t.From), memberName(m, t.To), money.Format(t.Amount))
	}
}

func memberName(m *model.Mission, memberID string) string {
	if mem, ok := m.Member(memberID); ok {
		return mem.Name
	}
	return memberID
}

func newSettleCommand(opts *rootOptions) *cobra.Command {
	var confirm, initiate, reopen bool
	var as string

	cmd := &cobra.Command{
		Use:   "settle <mission>",
		Short: "Show the settlement plan, or confirm it",
		Long: `Show the fewest transfers that bring every balance to zero.

--initiate starts the reminder clock, --confirm records the current user's
transfers as bank transactions and closes the mission, --reopen makes a
settled mission active again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			m, err := a.mission(args[0])
			if err != nil {
				return err
			}

			switch {
			case reopen:
				if _, err := a.svc.Reopen(m.ID); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Reopened %q\n", m.Title)
				return a.commit("settle", "reopen %s", m.Title)

			case initiate:
				started, err := a.svc.InitiateSettlement(m.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Settlement of %q started %s\n", m.Title, started.SettlementInitiatedAt.Format(time.DateOnly))
				return a.commit("settle", "initiate %s", m.Title)

			case confirm:
				user, err := a.currentUser(m.ID, as)
				if err != nil {
					return err
				}
				conf, err := a.svc.ConfirmSettlement(m.ID, user.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Settled %q: %s received, %s sent\n", m.Title,
					money.Format(conf.View.TotalReceiving), money.Format(conf.View.TotalSending))
				return a.commit("settle", "confirm %s", m.Title)
			}

			plan, err := a.svc.SettlementPlan(m.ID)
			if err != nil {
				return err
			}
			printPlan(a, m, plan)
			if user, err := a.currentUser(m.ID, as); err == nil {
				view := plan.For(user.ID)
				fmt.Fprintf(a.out, "You (%s) send %s and receive %s\n", user.Name,
					signed(money.Format(view.TotalSending), false), signed(money.Format(view.TotalReceiving), true))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "record the current user's transfers and mark the mission settled")
	cmd.Flags().BoolVar(&initiate, "initiate", false, "start the settlement reminder clock")
	cmd.Flags().BoolVar(&reopen, "reopen", false, "reopen a settled mission")
	cmd.Flags().StringVar(&as, "as", "", "act as this member instead of the configured current user")
	cmd.MarkFlagsMutuallyExclusive("confirm", "initiate", "reopen")
	return cmd
}

func newRemindCommand(opts *rootOptions) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Remind members who still owe on initiated settlements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			now, err := parseTime(at)
			if err != nil {
				return err
			}
			sent, err := a.svc.SendReminders(now)
			if err != nil {
				return err
			}
			if len(sent) == 0 {
				fmt.Fprintln(a.out, "No reminders due.")
				return nil
			}
			fmt.Fprintf(a.out, "Sent %d reminder(s)\n", len(sent))
			return a.commit("remind", "%d reminder(s)", len(sent))
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate reminders as of this date (default: now)")
	return cmd
}
