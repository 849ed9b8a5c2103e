package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/settleloop/settleloop/internal/accounts"
	"github.com/settleloop/settleloop/internal/ledger"
	"github.com/settleloop/settleloop/internal/model"
)

func newRuleCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rule",
		Short: "Manage auto-split rules",
	}
	cmd.AddCommand(newRuleAddCommand(opts), newRuleToggleCommand(opts), newRuleListCommand(opts), newRuleDeleteCommand(opts))
	return cmd
}

type detectionFlags struct {
	merchant, contains, category string
	amount, min, max             string
}

func (f detectionFlags) detection() (model.Detection, error) {
	var found []model.Detection
	if f.merchant != "" {
		found = append(found, model.MerchantDetection(f.merchant))
	}
	if f.contains != "" {
		found = append(found, model.ContainsDetection(f.contains))
	}
	if f.category != "" {
		found = append(found, model.CategoryDetection(f.category))
	}
	if f.amount != "" {
		amt, err := parseAmount(f.amount)
		if err != nil {
			return model.Detection{}, err
		}
		found = append(found, model.ExactAmountDetection(amt))
	}
	if f.min != "" || f.max != "" {
		lo, err := parseAmount(orZero(f.min))
		if err != nil {
			return model.Detection{}, err
		}
		hi, err := parseAmount(orZero(f.max))
		if err != nil {
			return model.Detection{}, err
		}
		found = append(found, model.AmountRangeDetection(lo, hi))
	}
	if len(found) != 1 {
		return model.Detection{}, errors.New("pass exactly one of --merchant, --contains, --category, --amount or --min/--max")
	}
	return found[0], nil
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func newRuleAddCommand(opts *rootOptions) *cobra.Command {
	var det detectionFlags
	var name, account, paidBy, mode, pack, recurrence string
	var with, values []string
	var manual, monthly bool

	cmd := &cobra.Command{
		Use:   "add <mission>",
		Short: "Add a rule that turns matching bank transactions into expenses",
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
			detection, err := det.detection()
			if err != nil {
				return err
			}

			p := ledger.RuleParams{
				MissionID:               m.ID,
				Name:                    name,
				AccountID:               account,
				Detection:               detection,
				Mode:                    model.SplitMode(strings.ToUpper(mode)),
				Recurrence:              model.Recurrence(recurrence),
				Actions:                 model.RuleActions{AutoCreateExpense: !manual},
				IncludeInMonthlyRequest: monthly,
			}
			payer := paidBy
			if payer == "" {
				cur, err := a.currentUser(m.ID, "")
				if err != nil {
					return fmt.Errorf("--paid-by is required: %w", err)
				}
				payer = cur.ID
			}
			ids, err := a.members(m.ID, []string{payer})
			if err != nil {
				return err
			}
			p.PaidBy = ids[0]
			if len(with) == 0 {
				p.Participants = m.MemberIDs()
			} else if p.Participants, err = a.members(m.ID, with); err != nil {
				return err
			}
			for _, v := range values {
				d, err := parseAmount(strings.TrimSuffix(v, "%"))
				if err != nil {
					return err
				}
				p.SplitValues = append(p.SplitValues, d)
			}
			if pack != "" {
				pk, err := a.pack(m.ID, pack)
				if err != nil {
					return err
				}
				p.BillPackID = pk.ID
				p.IncludeInMonthlyRequest = true
			}

			r, err := a.svc.CreateRule(p)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created rule %s %q (%s on %s)\n", r.ID, r.Name, r.Detection, r.AccountID)
			return a.commit("rule", "add %s", r.Name)
		},
	}
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "rule name (required)")
	_ = cmd.MarkFlagRequired("name")
	f.StringVar(&account, "account", accounts.DefaultAccountID, "bank account to watch")
	f.StringVar(&det.merchant, "merchant", "", "match descriptions containing this merchant")
	f.StringVar(&det.contains, "contains", "", "match descriptions containing this text")
	f.StringVar(&det.category, "category", "", "match this transaction category")
	f.StringVar(&det.amount, "amount", "", "match this exact amount")
	f.StringVar(&det.min, "min", "", "match amounts of at least this")
	f.StringVar(&det.max, "max", "", "match amounts of at most this")
	f.StringVar(&paidBy, "paid-by", "", "member the imported expense is paid by (default: current user)")
	f.StringSliceVar(&with, "with", nil, "participants (default: every member)")
	f.StringVar(&mode, "mode", string(model.SplitEqual), "split mode: EQUAL, AMOUNT or PERCENT")
	f.StringSliceVar(&values, "values", nil, "amounts or percentages, one per participant")
	f.StringVar(&recurrence, "recurrence", "", "monthly, weekly, biweekly or custom")
	f.StringVar(&pack, "pack", "", "bill pack that collects this rule's expenses monthly")
	f.BoolVar(&monthly, "monthly-request", false, "include in the bill pack's monthly request")
	f.BoolVar(&manual, "manual", false, "match only; do not create expenses automatically")
	return cmd
}

func newRuleToggleCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <rule-id>",
		Short: "Pause or resume a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			r, err := a.svc.ToggleRule(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Rule %q is now %s\n", r.Name, r.Status)
			return a.commit("rule", "%s %s", r.Status, r.Name)
		},
	}
}

func newRuleDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <rule-id>",
		Short: "Delete a rule; expenses it created stay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			r, err := a.svc.Rule(args[0])
			if err != nil {
				return err
			}
			if err := a.svc.DeleteRule(r.ID); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted rule %q\n", r.Name)
			return a.commit("rule", "delete %s", r.Name)
		},
	}
}

func newRuleListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list [mission]",
		Short: "List rules",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			rules := a.svc.Rules()
			if len(args) == 1 {
				m, err := a.mission(args[0])
				if err != nil {
					return err
				}
				rules = a.svc.RulesForMission(m.ID)
			}
			for _, r := range rules {
				fmt.Fprintf(a.out, "%s  %-20s %-7s %-30s %s  matched %d\n",
					r.ID, r.Name, r.Status, r.Detection, splitSummary(r), r.MatchCount)
			}
			return nil
		},
	}
}

func splitSummary(r model.AutoSplitRule) string {
	if len(r.SplitValues) == 0 {
		return string(r.Mode)
	}
	vals := make([]string, len(r.SplitValues))
	for i, v := range r.SplitValues {
		vals[i] = v.StringFixed(2)
	}
	return fmt.Sprintf("%s[%s]", r.Mode, strings.Join(vals, ","))
}

// pack resolves ref as a bill pack id or name within the mission.
func (a *app) pack(missionID, ref string) (model.BillPack, error) {
	for _, p := range a.svc.BillPacksForMission(missionID) {
		if p.ID == ref || strings.EqualFold(p.Name, ref) {
			return p, nil
		}
	}
	return model.BillPack{}, &ledger.NotFoundError{Kind: ledger.KindBillPack, ID: ref}
}
