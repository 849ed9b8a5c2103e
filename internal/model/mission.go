package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MissionStatus represents the lifecycle state of a shared ledger.
type MissionStatus string

const (
	MissionActive  MissionStatus = "active"
	MissionSettled MissionStatus = "settled"
)

// Member is a participant of a mission. Balance is derived and never trusted
// as input; it is overwritten every time balances are computed.
type Member struct {
	ID               string          `yaml:"id"`
	Name             string          `yaml:"name"`
	Email            string          `yaml:"email,omitempty"`
	Balance          decimal.Decimal `yaml:"-"`
	LastReminderSent *time.Time      `yaml:"last_reminder_sent,omitempty"`
}

// Mission is a shared ledger: an ordered member list and its expense history.
type Mission struct {
	ID                    string        `yaml:"id"`
	Title                 string        `yaml:"title"`
	Status                MissionStatus `yaml:"status"`
	Members               []Member      `yaml:"members"`
	Expenses              []Expense     `yaml:"expenses"`
	CreatedAt             time.Time     `yaml:"created_at"`
	SettledAt             *time.Time    `yaml:"settled_at,omitempty"`
	SettlementInitiatedAt *time.Time    `yaml:"settlement_initiated_at,omitempty"`
}

// Member returns the member with the given id.
func (m *Mission) Member(id string) (Member, bool) {
	for _, mem := range m.Members {
		if mem.ID == id {
			return mem, true
		}
	}
	return Member{}, false
}

// HasMember reports whether id belongs to a current member.
func (m *Mission) HasMember(id string) bool {
	_, ok := m.Member(id)
	return ok
}

// MemberIDs returns member ids in mission order.
func (m *Mission) MemberIDs() []string {
	ids := make([]string, len(m.Members))
	for i, mem := range m.Members {
		ids[i] = mem.ID
	}
	return ids
}

// Expense returns the expense with the given id and its index.
func (m *Mission) Expense(id string) (Expense, int, bool) {
	for i, e := range m.Expenses {
		if e.ID == id {
			return e, i, true
		}
	}
	return Expense{}, -1, false
}

// IsSettled reports whether the mission is closed out.
func (m *Mission) IsSettled() bool {
	return m.Status == MissionSettled
}

// Clone returns a deep copy, safe to mutate without touching m.
func (m *Mission) Clone() *Mission {
	c := *m
	c.Members = append([]Member(nil), m.Members...)
	c.Expenses = make([]Expense, len(m.Expenses))
	for i, e := range m.Expenses {
		c.Expenses[i] = e.Clone()
	}
	return &c
}
