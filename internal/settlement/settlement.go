// Package settlement plans the payments that bring every balance to zero.
package settlement

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/settleloop/settleloop/internal/model"
	"github.com/settleloop/settleloop/internal/money"
)

// Transfer is a recommended payment. It is derived on demand, never stored.
type Transfer struct {
	From   string          `yaml:"from"`
	To     string          `yaml:"to"`
	Amount decimal.Decimal `yaml:"amount"`
}

// Plan is the optimizer output.
type Plan struct {
	Transfers      []Transfer
	TotalSending   decimal.Decimal
	TotalReceiving decimal.Decimal
	Net            decimal.Decimal // always zero unless balances were not conserved
}

type position struct {
	id     string
	amount decimal.Decimal // magnitude
}

// Optimize computes transfers with the greedy largest-first heuristic:
// debtors and creditors are sorted by magnitude (stable on member order) and
// swept with two pointers. The result has at most len(members)-1 transfers;
// it is deterministic but not guaranteed to be the global minimum.
func Optimize(members []model.Member) Plan {
	var debtors, creditors []position
	for _, m := range members {
		if m.Balance.Abs().LessThan(money.Cent) {
			continue
		}
		if m.Balance.IsNegative() {
			debtors = append(debtors, position{id: m.ID, amount: m.Balance.Abs()})
		} else {
			creditors = append(creditors, position{id: m.ID, amount: m.Balance})
		}
	}
	sort.SliceStable(debtors, func(i, j int) bool { return debtors[i].amount.GreaterThan(debtors[j].amount) })
	sort.SliceStable(creditors, func(i, j int) bool { return creditors[i].amount.GreaterThan(creditors[j].amount) })

	plan := Plan{TotalSending: decimal.Zero, TotalReceiving: decimal.Zero}
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		d, c := &debtors[i], &creditors[j]
		amt := decimal.Min(d.amount, c.amount)

		plan.Transfers = append(plan.Transfers, Transfer{From: d.id, To: c.id, Amount: money.Round2(amt)})
		plan.TotalSending = plan.TotalSending.Add(amt)
		plan.TotalReceiving = plan.TotalReceiving.Add(amt)

		d.amount = d.amount.Sub(amt)
		c.amount = c.amount.Sub(amt)
		if d.amount.LessThan(money.Cent) {
			i++
		}
		if c.amount.LessThan(money.Cent) {
			j++
		}
	}

	plan.TotalSending = money.Round2(plan.TotalSending)
	plan.TotalReceiving = money.Round2(plan.TotalReceiving)
	plan.Net = plan.TotalSending.Sub(plan.TotalReceiving)
	return plan
}

// Debtors returns members owing at least a cent.
func Debtors(members []model.Member) []model.Member {
	var out []model.Member
	for _, m := range members {
		if m.Balance.LessThanOrEqual(money.Cent.Neg()) {
			out = append(out, m)
		}
	}
	return out
}

// Creditors returns members owed at least a cent.
func Creditors(members []model.Member) []model.Member {
	var out []model.Member
	for _, m := range members {
		if m.Balance.GreaterThanOrEqual(money.Cent) {
			out = append(out, m)
		}
	}
	return out
}

// View is one member's slice of a plan.
type View struct {
	MemberID       string
	Sends          []Transfer
	Receives       []Transfer
	TotalSending   decimal.Decimal
	TotalReceiving decimal.Decimal
}

// For returns the transfers memberID sends and receives.
func (p Plan) For(memberID string) View {
	v := View{MemberID: memberID, TotalSending: decimal.Zero, TotalReceiving: decimal.Zero}
	for _, t := range p.Transfers {
		switch memberID {
		case t.From:
			v.Sends = append(v.Sends, t)
			v.TotalSending = v.TotalSending.Add(t.Amount)
		case t.To:
			v.Receives = append(v.Receives, t)
			v.TotalReceiving = v.TotalReceiving.Add(t.Amount)
		}
	}
	return v
}
