// Package split generates and validates per-participant shares of an expense.
// All arithmetic that must sum exactly is done in integer cents.
package split

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/settleloop/settleloop/internal/model"
	"github.com/settleloop/settleloop/internal/money"
)

// Invariant names reported by ValidationError.
const (
	InvParticipants = "participants"
	InvPayer        = "payer"
	InvAmount       = "amount"
	InvMode         = "mode"
	InvDuplicate    = "duplicate-member"
	InvNegative     = "negative-share"
	InvEqualShare   = "equal-share"
	InvShareTotal   = "share-total"
	InvPercentTotal = "percent-total"
	InvSplitConfig  = "split-config"
	InvMember       = "member"
	InvDetection    = "detection"
)

// ValidationError describes a single broken split or input invariant.
type ValidationError struct {
	Invariant   string
	Subject     string // expense or rule id, may be empty
	Description string
}

func (e ValidationError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("invalid %s: %s", e.Invariant, e.Description)
	}
	return fmt.Sprintf("invalid %s [%s]: %s", e.Invariant, e.Subject, e.Description)
}

func invalid(invariant, subject, format string, args ...any) *ValidationError {
	return &ValidationError{Invariant: invariant, Subject: subject, Description: fmt.Sprintf(format, args...)}
}

// Generate returns default shares of total for participantIDs. EQUAL shares
// always sum to total exactly; the remainder cents go to the first
// participants in order.
func Generate(participantIDs []string, mode model.SplitMode, total decimal.Decimal) ([]model.Share, error) {
	n := len(participantIDs)
	if n == 0 {
		return nil, invalid(InvParticipants, "", "at least one member must be included in the split")
	}
	if total.IsNegative() {
		return nil, invalid(InvAmount, "", "amount must not be negative, got %s", total.StringFixed(2))
	}

	shares := make([]model.Share, n)
	switch mode {
	case model.SplitEqual:
		cents := money.ToCents(total)
		base := cents / int64(n)
		rem := cents % int64(n)
		for i, id := range participantIDs {
			c := base
			if int64(i) < rem {
				c++
			}
			shares[i] = model.Share{MemberID: id, Amount: money.FromCents(c)}
		}
	case model.SplitAmount:
		for i, id := range participantIDs {
			shares[i] = model.Share{MemberID: id, Amount: decimal.Zero}
		}
	case model.SplitPercent:
		pct := money.Round2(money.Hundred.Div(decimal.NewFromInt(int64(n))))
		amount := money.Round2(total.Mul(pct).Div(money.Hundred))
		for i, id := range participantIDs {
			shares[i] = model.Share{MemberID: id, Amount: amount, Percent: pct}
		}
	default:
		return nil, invalid(InvMode, "", "unknown split mode %q", mode)
	}
	return shares, nil
}

// Validate checks an expense against the invariants of its split mode.
// It returns nil or a *ValidationError naming the first broken invariant.
func Validate(e model.Expense) error {
	if e.PaidBy == "" {
		return invalid(InvPayer, e.ID, "a payer is required")
	}
	if !e.Amount.IsPositive() {
		return invalid(InvAmount, e.ID, "amount must be positive, got %s", e.Amount.StringFixed(2))
	}
	if len(e.Shares) == 0 {
		return invalid(InvParticipants, e.ID, "at least one member must be included in the split")
	}

	seen := make(map[string]bool, len(e.Shares))
	for _, s := range e.Shares {
		if seen[s.MemberID] {
			return invalid(InvDuplicate, e.ID, "member %s appears in more than one share", s.MemberID)
		}
		seen[s.MemberID] = true
		if s.Amount.IsNegative() || s.Percent.IsNegative() {
			return invalid(InvNegative, e.ID, "share for %s is negative", s.MemberID)
		}
	}

	switch e.Mode {
	case model.SplitEqual:
		expected := e.Amount.Div(decimal.NewFromInt(int64(len(e.Shares))))
		total := shareTotal(e.Shares)
		if !money.Within(total, e.Amount, money.Cent) {
			return invalid(InvShareTotal, e.ID, "equal split total (%s) must equal expense amount (%s)",
				money.Format(total), money.Format(e.Amount))
		}
		for _, s := range e.Shares {
			if !money.Within(s.Amount, expected, money.Cent) {
				return invalid(InvEqualShare, e.ID, "equal split amounts must match: %s has %s, expected %s",
					s.MemberID, money.Format(s.Amount), money.Format(money.Round2(expected)))
			}
		}
	case model.SplitAmount:
		total := shareTotal(e.Shares)
		if !money.Within(total, e.Amount, money.Cent) {
			return invalid(InvShareTotal, e.ID, "split amounts must total %s (got %s)",
				money.Format(e.Amount), money.Format(total))
		}
	case model.SplitPercent:
		pct := percentTotal(e.Shares)
		if !money.Within(pct, money.Hundred, money.PercentTolerance) {
			return invalid(InvPercentTotal, e.ID, "percentages must total 100%% (got %s%%)", pct.StringFixed(2))
		}
	default:
		return invalid(InvMode, e.ID, "unknown split mode %q", e.Mode)
	}
	return nil
}

func shareTotal(shares []model.Share) decimal.Decimal {
	total := decimal.Zero
	for _, s := range shares {
		total = total.Add(s.Amount)
	}
	return total
}

func percentTotal(shares []model.Share) decimal.Decimal {
	total := decimal.Zero
	for _, s := range shares {
		total = total.Add(s.Percent)
	}
	return total
}
