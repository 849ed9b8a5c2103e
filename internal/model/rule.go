package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DetectionMethod selects how a rule recognises a transaction.
type DetectionMethod string

const (
	DetectMerchant    DetectionMethod = "merchant"
	DetectContains    DetectionMethod = "contains"
	DetectExactAmount DetectionMethod = "exactAmount"
	DetectAmountRange DetectionMethod = "amountRange"
	DetectCategory    DetectionMethod = "category"
)

// Detection is the matching criterion of a rule. Only the fields belonging to
// Method are set; use the constructors below rather than a literal.
type Detection struct {
	Method DetectionMethod `yaml:"method"`
	Text   string          `yaml:"text,omitempty"`   // merchant, contains, category
	Amount decimal.Decimal `yaml:"amount,omitempty"` // exactAmount
	Min    decimal.Decimal `yaml:"min,omitempty"`    // amountRange
	Max    decimal.Decimal `yaml:"max,omitempty"`    // amountRange
}

// MerchantDetection matches descriptions containing merchant.
func MerchantDetection(merchant string) Detection {
	return Detection{Method: DetectMerchant, Text: merchant}
}

// ContainsDetection matches descriptions containing text.
func ContainsDetection(text string) Detection {
	return Detection{Method: DetectContains, Text: text}
}

// ExactAmountDetection matches transactions of exactly amount (absolute value).
func ExactAmountDetection(amount decimal.Decimal) Detection {
	return Detection{Method: DetectExactAmount, Amount: amount}
}

// AmountRangeDetection matches absolute amounts within [min, max].
func AmountRangeDetection(minAmount, maxAmount decimal.Decimal) Detection {
	return Detection{Method: DetectAmountRange, Min: minAmount, Max: maxAmount}
}

// CategoryDetection matches the transaction category.
func CategoryDetection(category string) Detection {
	return Detection{Method: DetectCategory, Text: category}
}

// Validate rejects detections with missing or foreign fields.
func (d Detection) Validate() error {
	hasAmounts := !d.Amount.IsZero() || !d.Min.IsZero() || !d.Max.IsZero()
	switch d.Method {
	case DetectMerchant, DetectContains, DetectCategory:
		if strings.TrimSpace(d.Text) == "" {
			return fmt.Errorf("%s detection requires text", d.Method)
		}
		if hasAmounts {
			return fmt.Errorf("%s detection takes no amounts", d.Method)
		}
	case DetectExactAmount:
		if !d.Amount.IsPositive() {
			return errors.New("exactAmount detection requires a positive amount")
		}
		if d.Text != "" || !d.Min.IsZero() || !d.Max.IsZero() {
			return errors.New("exactAmount detection takes only an amount")
		}
	case DetectAmountRange:
		if d.Min.IsNegative() || d.Max.LessThan(d.Min) || d.Max.IsZero() {
			return fmt.Errorf("amountRange detection requires 0 <= min <= max, got [%s, %s]", d.Min.StringFixed(2), d.Max.StringFixed(2))
		}
		if d.Text != "" || !d.Amount.IsZero() {
			return errors.New("amountRange detection takes only min and max")
		}
	default:
		return fmt.Errorf("unknown detection method %q", d.Method)
	}
	return nil
}

// String renders the detection for listings.
func (d Detection) String() string {
	switch d.Method {
	case DetectExactAmount:
		return fmt.Sprintf("%s=%s", d.Method, d.Amount.StringFixed(2))
	case DetectAmountRange:
		return fmt.Sprintf("%s=[%s,%s]", d.Method, d.Min.StringFixed(2), d.Max.StringFixed(2))
	default:
		return fmt.Sprintf("%s=%q", d.Method, d.Text)
	}
}

// Recurrence is the expected cadence of a recurring bill.
type Recurrence string

const (
	RecurNone     Recurrence = ""
	RecurMonthly  Recurrence = "monthly"
	RecurWeekly   Recurrence = "weekly"
	RecurBiweekly Recurrence = "biweekly"
	RecurCustom   Recurrence = "custom"
)

// RuleStatus is shared by rules and bill packs.
type RuleStatus string

const (
	RuleActive RuleStatus = "active"
	RulePaused RuleStatus = "paused"
)

// RuleActions controls what happens when a rule matches.
type RuleActions struct {
	AutoCreateExpense bool `yaml:"auto_create_expense"`
	AutoSendRequests  bool `yaml:"auto_send_requests"`
}

// AutoSplitRule recognises a recurring bank transaction and turns it into an
// expense in its mission.
type AutoSplitRule struct {
	ID                       string            `yaml:"id"`
	MissionID                string            `yaml:"mission_id"`
	BillPackID               string            `yaml:"bill_pack_id,omitempty"`
	Name                     string            `yaml:"name"`
	AccountID                string            `yaml:"account_id"`
	Detection                Detection         `yaml:"detection"`
	PaidBy                   string            `yaml:"paid_by"`
	Participants             []string          `yaml:"participants"`
	Mode                     SplitMode         `yaml:"mode"`
	SplitValues              []decimal.Decimal `yaml:"split_values,omitempty"` // percents or amounts, parallel to Participants
	Recurrence               Recurrence        `yaml:"recurrence,omitempty"`
	ExpectedDayOfMonth       int               `yaml:"expected_day_of_month,omitempty"`
	Actions                  RuleActions       `yaml:"actions"`
	IncludeInMonthlyRequest  bool              `yaml:"include_in_monthly_request"`
	Status                   RuleStatus        `yaml:"status"`
	CreatedAt                time.Time         `yaml:"created_at"`
	LastMatchedAt            *time.Time        `yaml:"last_matched_at,omitempty"`
	LastMatchedTransactionID string            `yaml:"last_matched_transaction_id,omitempty"`
	MatchCount               int               `yaml:"match_count"`
}

// IsActive reports whether the rule takes part in matching.
func (r AutoSplitRule) IsActive() bool {
	return r.Status == RuleActive
}

// Clone returns a copy that shares no slices with r.
func (r AutoSplitRule) Clone() AutoSplitRule {
	r.Participants = append([]string(nil), r.Participants...)
	r.SplitValues = append([]decimal.Decimal(nil), r.SplitValues...)
	if r.LastMatchedAt != nil {
		t := *r.LastMatchedAt
		r.LastMatchedAt = &t
	}
	return r
}
