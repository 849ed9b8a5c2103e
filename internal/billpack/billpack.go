// Package billpack aggregates rule-imported expenses into one monthly
// collection per participant.
package billpack

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/settleloop/settleloop/internal/balance"
	"github.com/settleloop/settleloop/internal/model"
	"github.com/settleloop/settleloop/internal/money"
)

// PeriodLayout formats a collection period key.
const PeriodLayout = "2006-01"

// Total is the aggregate owed to the payers of a pack for one period.
type Total struct {
	Period   time.Time
	Total    decimal.Decimal
	ByMember map[string]decimal.Decimal
	Expenses int
}

// PeriodStart returns midnight UTC on the first day of t's month.
func PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// PeriodKey returns the "2006-01" key of t's month.
func PeriodKey(t time.Time) string {
	return PeriodStart(t).Format(PeriodLayout)
}

// Rules returns the rules of pack that contribute to its monthly total.
func Rules(pack model.BillPack, rules []model.AutoSplitRule) []model.AutoSplitRule {
	var out []model.AutoSplitRule
	for _, r := range rules {
		if r.BillPackID == pack.ID && r.IsActive() && r.IncludeInMonthlyRequest {
			out = append(out, r)
		}
	}
	return out
}

// MonthlyTotal sums the mission expenses created by the pack's contributing
// rules within [periodStart, periodStart+1 month). ByMember excludes each
// payer's own share.
func MonthlyTotal(pack model.BillPack, rules []model.AutoSplitRule, mission *model.Mission, periodStart time.Time) Total {
	start := PeriodStart(periodStart)
	end := start.AddDate(0, 1, 0)
	out := Total{Period: start, Total: decimal.Zero, ByMember: map[string]decimal.Decimal{}}
	if mission == nil {
		return out
	}

	contributing := map[string]bool{}
	for _, r := range Rules(pack, rules) {
		contributing[r.ID] = true
	}

	for _, e := range mission.Expenses {
		if e.SourceRuleID == "" || !contributing[e.SourceRuleID] {
			continue
		}
		if e.CreatedAt.Before(start) || !e.CreatedAt.Before(end) {
			continue
		}
		out.Expenses++
		out.Total = out.Total.Add(e.Amount)
		for _, s := range e.Shares {
			if s.MemberID == e.PaidBy {
				continue
			}
			out.ByMember[s.MemberID] = out.ByMember[s.MemberID].Add(balance.ShareAmount(e, s))
		}
	}
	return out
}

// Due reports whether an automatic monthly request for pack should run at now:
// the pack is active with auto-send on, today is its request day (clamped to
// the last day of short months), and the period has not been sent or flagged.
func Due(pack model.BillPack, now time.Time) bool {
	if !pack.IsActive() || !pack.AutoSendMonthlyRequest || pack.RequestDayOfMonth < 1 {
		return false
	}
	now = now.UTC()
	day := pack.RequestDayOfMonth
	if last := PeriodStart(now).AddDate(0, 1, -1).Day(); day > last {
		day = last
	}
	if now.Day() != day {
		return false
	}
	key := PeriodKey(now)
	return pack.LastRequestPeriod != key && pack.ReviewPeriod != key
}

// Request is one collection addressed to a participant.
type Request struct {
	MemberID string
	Name     string
	Amount   decimal.Decimal
}

// Outcome is the decision for one pack and period.
type Outcome struct {
	PackID   string
	Period   string
	Total    Total
	Review   bool
	Requests []Request
}

// OverLimit reports whether total exceeds the pack's safety limit. A zero
// limit disables the check.
func OverLimit(pack model.BillPack, total Total) bool {
	return pack.SafetyLimit.IsPositive() && total.Total.GreaterThan(pack.SafetyLimit)
}

// Decide turns a monthly total into requests. Over-limit totals are flagged
// for review and produce no requests. Members owing a cent or less, members
// no longer in the mission and send-only packs get no request.
func Decide(pack model.BillPack, mission *model.Mission, total Total) Outcome {
	out := Outcome{PackID: pack.ID, Period: total.Period.Format(PeriodLayout), Total: total}
	if OverLimit(pack, total) {
		out.Review = true
		return out
	}
	if !CreatesRequests(pack.Mode) || mission == nil {
		return out
	}
	for _, m := range mission.Members {
		amt, ok := total.ByMember[m.ID]
		if !ok || !amt.GreaterThan(money.Cent) {
			continue
		}
		out.Requests = append(out.Requests, Request{MemberID: m.ID, Name: m.Name, Amount: money.Round2(amt)})
	}
	return out
}

// CreatesRequests reports whether packs in mode ask participants for money.
func CreatesRequests(mode model.CollectionMode) bool {
	return mode == model.CollectRequestOnly || mode == model.CollectSendRequest
}

// RequestDescription is the transaction description used for a pack request.
func RequestDescription(pack model.BillPack) string {
	return fmt.Sprintf("Monthly bills - %s", pack.Name)
}
