package split

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/settleloop/settleloop/internal/model"
	"github.com/settleloop/settleloop/internal/money"
)

// Mismatch reports fixed rule amounts that do not add up to the transaction.
type Mismatch struct {
	Configured decimal.Decimal
	Total      decimal.Decimal
}

func (m Mismatch) String() string {
	return fmt.Sprintf("fixed amounts (%s) don't match transaction amount (%s)",
		money.Format(m.Configured), money.Format(m.Total))
}

// ValidateConfig checks a rule's split configuration before it is saved.
func ValidateConfig(ruleID string, mode model.SplitMode, participants []string, values []decimal.Decimal) error {
	if len(participants) == 0 {
		return invalid(InvParticipants, ruleID, "at least one participant is required")
	}
	seen := make(map[string]bool, len(participants))
	for _, p := range participants {
		if seen[p] {
			return invalid(InvDuplicate, ruleID, "participant %s listed twice", p)
		}
		seen[p] = true
	}

	switch mode {
	case model.SplitEqual:
		if len(values) != 0 {
			return invalid(InvSplitConfig, ruleID, "EQUAL split takes no values")
		}
		return nil
	case model.SplitPercent, model.SplitAmount:
	default:
		return invalid(InvMode, ruleID, "unknown split mode %q", mode)
	}

	if len(values) != len(participants) {
		return invalid(InvSplitConfig, ruleID, "%s split needs one value per participant (%d values, %d participants)",
			mode, len(values), len(participants))
	}
	total := decimal.Zero
	for i, v := range values {
		if v.IsNegative() {
			return invalid(InvNegative, ruleID, "value for %s is negative", participants[i])
		}
		total = total.Add(v)
	}
	if mode == model.SplitPercent && !money.Within(total, money.Hundred, money.PercentTolerance) {
		return invalid(InvPercentTotal, ruleID, "percentages must total 100%% (got %s%%)", total.StringFixed(2))
	}
	return nil
}

// ForRule divides a matched transaction total according to rule. For AMOUNT
// rules whose configured amounts miss the total, the shares are returned as
// configured together with a non-nil Mismatch.
func ForRule(rule model.AutoSplitRule, total decimal.Decimal) ([]model.Share, *Mismatch, error) {
	n := len(rule.Participants)
	if n == 0 {
		return nil, nil, invalid(InvParticipants, rule.ID, "rule has no participants")
	}

	switch rule.Mode {
	case model.SplitEqual:
		shares, err := Generate(rule.Participants, model.SplitEqual, total)
		return shares, nil, err

	case model.SplitPercent:
		if len(rule.SplitValues) != n {
			return nil, nil, invalid(InvSplitConfig, rule.ID, "expected %d percentages, got %d", n, len(rule.SplitValues))
		}
		shares := make([]model.Share, n)
		sum := decimal.Zero
		for i, id := range rule.Participants {
			pct := rule.SplitValues[i]
			amt := money.Round2(total.Mul(pct).Div(money.Hundred))
			shares[i] = model.Share{MemberID: id, Amount: amt, Percent: pct}
			sum = sum.Add(amt)
		}
		// First participant absorbs rounding drift so the shares sum exactly.
		if diff := total.Sub(sum); !diff.IsZero() {
			shares[0].Amount = shares[0].Amount.Add(diff)
		}
		return shares, nil, nil

	case model.SplitAmount:
		if len(rule.SplitValues) != n {
			return nil, nil, invalid(InvSplitConfig, rule.ID, "expected %d amounts, got %d", n, len(rule.SplitValues))
		}
		shares := make([]model.Share, n)
		sum := decimal.Zero
		for i, id := range rule.Participants {
			amt := money.Round2(rule.SplitValues[i])
			shares[i] = model.Share{MemberID: id, Amount: amt}
			sum = sum.Add(amt)
		}
		if !money.Within(sum, total, money.Cent) {
			return shares, &Mismatch{Configured: sum, Total: total}, nil
		}
		return shares, nil, nil
	}
	return nil, nil, invalid(InvMode, rule.ID, "unknown split mode %q", rule.Mode)
}
