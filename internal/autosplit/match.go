// Package autosplit recognises recurring bank transactions and turns them
// into mission expenses.
package autosplit

import (
	"strings"

	"github.com/settleloop/settleloop/internal/model"
	"github.com/settleloop/settleloop/internal/money"
)

// Match returns the first active rule, in catalog order, that tx satisfies
// and that is not suppressed as a duplicate or throttled by its recurrence.
// It returns nil when no rule applies.
func Match(tx model.BankTransaction, rules []model.AutoSplitRule) *model.AutoSplitRule {
	for i := range rules {
		rule := rules[i]
		if !rule.IsActive() {
			continue
		}
		if rule.AccountID != tx.AccountID {
			continue
		}
		if !Detects(rule.Detection, tx) {
			continue
		}
		if rule.LastMatchedTransactionID == tx.ID {
			continue
		}
		if Throttled(rule, tx) {
			continue
		}
		return &rule
	}
	return nil
}

// Detects evaluates a detection criterion against a transaction.
func Detects(d model.Detection, tx model.BankTransaction) bool {
	switch d.Method {
	case model.DetectMerchant, model.DetectContains:
		if d.Text == "" {
			return false
		}
		return strings.Contains(strings.ToLower(tx.Description), strings.ToLower(d.Text))
	case model.DetectExactAmount:
		return money.Within(tx.Amount.Abs(), d.Amount, money.Cent)
	case model.DetectAmountRange:
		abs := tx.Amount.Abs()
		return abs.GreaterThanOrEqual(d.Min) && abs.LessThanOrEqual(d.Max)
	case model.DetectCategory:
		if d.Text == "" || tx.Category == "" {
			return false
		}
		return strings.EqualFold(tx.Category, d.Text)
	}
	return false
}

// Throttled reports whether a monthly rule already matched in the calendar
// month of tx.
func Throttled(rule model.AutoSplitRule, tx model.BankTransaction) bool {
	if rule.Recurrence != model.RecurMonthly || rule.LastMatchedAt == nil {
		return false
	}
	last := rule.LastMatchedAt.UTC()
	cur := tx.Date.UTC()
	return last.Year() == cur.Year() && last.Month() == cur.Month()
}
