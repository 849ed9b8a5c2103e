package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SplitMode describes how an expense total is divided among participants.
type SplitMode string

const (
	SplitEqual   SplitMode = "EQUAL"
	SplitAmount  SplitMode = "AMOUNT"
	SplitPercent SplitMode = "PERCENT"
)

// Valid reports whether m is one of the known split modes.
func (m SplitMode) Valid() bool {
	switch m {
	case SplitEqual, SplitAmount, SplitPercent:
		return true
	}
	return false
}

// Share is one participant's portion of an expense.
type Share struct {
	MemberID string          `yaml:"member_id"`
	Amount   decimal.Decimal `yaml:"amount"`
	Percent  decimal.Decimal `yaml:"percent,omitempty"` // PERCENT mode only
}

// Expense is a single shared cost paid by one member and split across shares.
type Expense struct {
	ID           string          `yaml:"id"`
	Title        string          `yaml:"title"`
	Amount       decimal.Decimal `yaml:"amount"`
	PaidBy       string          `yaml:"paid_by"`
	Mode         SplitMode       `yaml:"mode"`
	Shares       []Share         `yaml:"shares"`
	CreatedAt    time.Time       `yaml:"created_at"`
	ImportedFrom string          `yaml:"imported_from,omitempty"` // source transaction id
	SourceRuleID string          `yaml:"source_rule_id,omitempty"`
}

// Share returns the share for memberID, if present.
func (e Expense) Share(memberID string) (Share, bool) {
	for _, s := range e.Shares {
		if s.MemberID == memberID {
			return s, true
		}
	}
	return Share{}, false
}

// ParticipantIDs returns the member ids of the expense shares in order.
func (e Expense) ParticipantIDs() []string {
	ids := make([]string, len(e.Shares))
	for i, s := range e.Shares {
		ids[i] = s.MemberID
	}
	return ids
}

// Clone returns a deep copy of the expense.
func (e Expense) Clone() Expense {
	e.Shares = append([]Share(nil), e.Shares...)
	return e
}
