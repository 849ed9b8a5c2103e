package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/settleloop/settleloop/internal/accounts"
	"github.com/settleloop/settleloop/internal/billpack"
	"github.com/settleloop/settleloop/internal/config"
	"github.com/settleloop/settleloop/internal/feed"
	"github.com/settleloop/settleloop/internal/ledger"
	"github.com/settleloop/settleloop/internal/model"
	"github.com/settleloop/settleloop/internal/money"
)

func newPackCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Manage bill packs",
	}
	cmd.AddCommand(newPackCreateCommand(opts), newPackListCommand(opts))
	return cmd
}

func newPackCreateCommand(opts *rootOptions) *cobra.Command {
	var day int
	var limit, mode, description string
	var autoSend bool

	cmd := &cobra.Command{
		Use:   "create <mission> <name>",
		Short: "Group recurring bills into one monthly request",
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
			lim, err := parseAmount(orZero(limit))
			if err != nil {
				return err
			}
			p, err := a.svc.CreateBillPack(ledger.BillPackParams{
				MissionID:              m.ID,
				Name:                   args[1],
				Description:            description,
				AutoSendMonthlyRequest: autoSend,
				RequestDayOfMonth:      day,
				SafetyLimit:            lim,
				Mode:                   model.CollectionMode(mode),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created bill pack %s %q, requests on day %d\n", p.ID, p.Name, p.RequestDayOfMonth)
			return a.commit("pack", "create %s", p.Name)
		},
	}
	f := cmd.Flags()
	f.IntVar(&day, "day", 1, "day of month the request goes out (1-31)")
	f.StringVar(&limit, "limit", "", "safety limit; larger monthly totals wait for approval")
	f.StringVar(&mode, "mode", string(model.CollectRequestOnly), "request-only, send-request or send-only")
	f.StringVar(&description, "description", "", "free-form description")
	f.BoolVar(&autoSend, "auto-send", true, "send the monthly request automatically")
	return cmd
}

func newPackListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <mission>",
		Short: "List a mission's bill packs",
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
			for _, p := range a.svc.BillPacksForMission(m.ID) {
				fmt.Fprintf(a.out, "%s  %-20s day %-2d %-12s %d rules  last sent %s\n",
					p.ID, p.Name, p.RequestDayOfMonth, p.Mode, len(a.svc.RulesForPack(p.ID)), orDash(p.LastRequestPeriod))
			}
			return nil
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newScanCommand(opts *rootOptions) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Import bank CSVs and turn matching transactions into expenses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			if _, ok := a.accounts.Get(account); !ok {
				return fmt.Errorf("unknown bank account %q", account)
			}

			importDir := config.Resolve(a.root, a.cfg.Paths.ImportDir)
			files, err := feed.Scan(importDir)
			if err != nil {
				return err
			}
			registry := feed.DefaultRegistry(account)
			for _, f := range files {
				txs, err := registry.ParseFile(feed.FormatFor(f.Name), f.Path)
				if err != nil {
					return err
				}
				added := a.svc.Feed().Merge(txs)
				if err := feed.MarkProcessed(importDir, f.Name); err != nil {
					return err
				}
				a.logger.Info("bank file imported", zap.String("file", f.Name), zap.Int("new", added))
				fmt.Fprintf(a.out, "Imported %s: %d new of %d transactions\n", f.Name, added, len(txs))
			}

			rep := a.svc.CheckTransactions()
			fmt.Fprintf(a.out, "Scanned %d transactions: %d matched, %d imported, %d duplicates\n",
				rep.Scanned, rep.Matched, len(rep.Imported), rep.Duplicates)
			for _, e := range rep.Imported {
				fmt.Fprintf(a.out, "  + %s %s\n", e.Title, money.Format(e.Amount))
			}
			for _, w := range rep.Warnings {
				fmt.Fprintf(a.out, "  ! %s\n", w)
			}
			for _, f := range rep.Failures {
				fmt.Fprintf(a.out, "  x %s (rule %s): %v\n", f.TransactionID, f.RuleID, f.Err)
			}
			return a.commit("scan", "%d file(s), %d expense(s) imported", len(files), len(rep.Imported))
		},
	}
	cmd.Flags().StringVar(&account, "account", accounts.DefaultAccountID, "account that bank-format CSVs belong to")
	return cmd
}

func newBillsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bills",
		Short: "Monthly bill pack totals and requests",
	}
	cmd.AddCommand(newBillsTotalCommand(opts), newBillsSendCommand(opts), newBillsApproveCommand(opts))
	return cmd
}

func newBillsTotalCommand(opts *rootOptions) *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "total <mission> <pack>",
		Short: "Show a bill pack's total for a month",
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
			p, err := a.pack(m.ID, args[1])
			if err != nil {
				return err
			}
			period := time.Now()
			if month != "" {
				if period, err = time.Parse(billpack.PeriodLayout, month); err != nil {
					return fmt.Errorf("invalid month %q: want YYYY-MM", month)
				}
			}
			total, err := a.svc.MonthlyTotal(p.ID, period)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s: %s from %d expense(s)\n",
				p.Name, total.Period.Format(billpack.PeriodLayout), money.Format(total.Total), total.Expenses)
			for _, mem := range m.Members {
				if amt, ok := total.ByMember[mem.ID]; ok {
					fmt.Fprintf(a.out, "  %-16s %s\n", mem.Name, money.Format(amt))
				}
			}
			if billpack.OverLimit(p, total) {
				fmt.Fprintf(a.out, "  over the safety limit of %s\n", money.Format(p.SafetyLimit))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM (default: current month)")
	return cmd
}

func printOutcome(a *app, name string, out billpack.Outcome) {
	if out.Review {
		fmt.Fprintf(a.out, "%s %s: %s held for review\n", name, out.Period, money.Format(out.Total.Total))
		return
	}
	fmt.Fprintf(a.out, "%s %s: %d request(s)\n", name, out.Period, len(out.Requests))
	for _, r := range out.Requests {
		fmt.Fprintf(a.out, "  %-16s %s\n", r.Name, money.Format(r.Amount))
	}
}

func newBillsSendCommand(opts *rootOptions) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "send <mission>",
		Short: "Send the monthly requests of every bill pack due today",
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
			now, err := parseTime(at)
			if err != nil {
				return err
			}
			run, err := a.svc.ProcessMonthlyRequests(m.ID, now)
			if err != nil {
				return err
			}
			if len(run.Outcomes) == 0 && len(run.Failures) == 0 {
				fmt.Fprintln(a.out, "No bill packs due.")
				return nil
			}
			for _, out := range run.Outcomes {
				p, _ := a.svc.BillPack(out.PackID)
				printOutcome(a, p.Name, out)
			}
			for _, f := range run.Failures {
				p, _ := a.svc.BillPack(f.PackID)
				fmt.Fprintf(a.out, "  x %s: %v\n", p.Name, f.Err)
			}
			if len(run.Outcomes) > 0 {
				if err := a.commit("bills", "monthly requests for %s", m.Title); err != nil {
					return err
				}
			}
			if len(run.Failures) > 0 {
				return fmt.Errorf("%d bill pack(s) failed", len(run.Failures))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "run as of this date (default: now)")
	return cmd
}

func newBillsApproveCommand(opts *rootOptions) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "approve <mission> <pack>",
		Short: "Send a monthly request that was held over its safety limit",
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
			p, err := a.pack(m.ID, args[1])
			if err != nil {
				return err
			}
			now, err := parseTime(at)
			if err != nil {
				return err
			}
			out, err := a.svc.ApproveMonthlyRequest(p.ID, now)
			if err != nil {
				return err
			}
			printOutcome(a, p.Name, out)
			return a.commit("bills", "approve %s %s", p.Name, out.Period)
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "run as of this date (default: now)")
	return cmd
}
