// Package balance derives member balances from a mission's expense history.
package balance

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/settleloop/settleloop/internal/model"
	"github.com/settleloop/settleloop/internal/money"
)

// ErrConservation means balances no longer sum to zero. It signals a defect,
// never a user error.
var ErrConservation = errors.New("balances do not sum to zero")

// Compute returns a copy of the mission members with Balance derived from
// the full expense history. Positive = owed money, negative = owes money.
//
// The stored Member.Balance is ignored. Shares held by ids that are no longer
// members carry zero weight, and whatever part of an expense total is not
// debited to current members (zero-weight shares, percent rounding, fixed
// amounts that miss the total) stays with the payer, so the result always
// sums to zero. Expenses whose payer has left the mission are skipped.
func Compute(m *model.Mission) []model.Member {
	balances := make(map[string]decimal.Decimal, len(m.Members))
	for _, mem := range m.Members {
		balances[mem.ID] = decimal.Zero
	}

	for _, e := range m.Expenses {
		if _, ok := balances[e.PaidBy]; !ok {
			continue
		}
		debited := decimal.Zero
		for _, s := range e.Shares {
			if _, ok := balances[s.MemberID]; !ok {
				continue
			}
			amt := ShareAmount(e, s)
			balances[s.MemberID] = balances[s.MemberID].Sub(amt)
			debited = debited.Add(amt)
		}
		balances[e.PaidBy] = balances[e.PaidBy].Add(e.Amount)
		if residual := e.Amount.Sub(debited); !residual.IsZero() {
			balances[e.PaidBy] = balances[e.PaidBy].Sub(residual)
		}
	}

	out := make([]model.Member, len(m.Members))
	for i, mem := range m.Members {
		mem.Balance = money.Round2(balances[mem.ID])
		out[i] = mem
	}
	return out
}

// ShareAmount is the amount debited for s. PERCENT shares are recomputed from
// the percentage rather than trusting the stored amount.
func ShareAmount(e model.Expense, s model.Share) decimal.Decimal {
	if e.Mode == model.SplitPercent {
		return money.Round2(e.Amount.Mul(s.Percent).Div(money.Hundred))
	}
	return money.Round2(s.Amount)
}

// Sum adds every member balance.
func Sum(members []model.Member) decimal.Decimal {
	total := decimal.Zero
	for _, m := range members {
		total = total.Add(m.Balance)
	}
	return total
}

// Verify checks that balances are conserved within a cent.
func Verify(members []model.Member) error {
	if sum := Sum(members); !money.Within(sum, decimal.Zero, money.Cent) {
		return fmt.Errorf("%w: got %s", ErrConservation, sum.StringFixed(2))
	}
	return nil
}

// Zeroed returns members with every balance pinned to zero, used while a
// mission is settled.
func Zeroed(members []model.Member) []model.Member {
	out := make([]model.Member, len(members))
	for i, m := range members {
		m.Balance = decimal.Zero
		out[i] = m
	}
	return out
}

// Of returns the balance of memberID from a computed slice.
func Of(members []model.Member, memberID string) (decimal.Decimal, bool) {
	for _, m := range members {
		if m.ID == memberID {
			return m.Balance, true
		}
	}
	return decimal.Zero, false
}
