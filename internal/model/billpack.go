package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CollectionMode controls what a bill pack does on its monthly run.
type CollectionMode string

const (
	CollectRequestOnly CollectionMode = "request-only"
	CollectSendRequest CollectionMode = "send-request"
	CollectSendOnly    CollectionMode = "send-only"
)

// BillPack groups rules whose matched expenses are collected once a month.
type BillPack struct {
	ID                     string          `yaml:"id"`
	MissionID              string          `yaml:"mission_id"`
	Name                   string          `yaml:"name"`
	Description            string          `yaml:"description,omitempty"`
	AutoSendMonthlyRequest bool            `yaml:"auto_send_monthly_request"`
	RequestDayOfMonth      int             `yaml:"request_day_of_month"`
	SafetyLimit            decimal.Decimal `yaml:"safety_limit,omitempty"` // zero = no limit
	Mode                   CollectionMode  `yaml:"mode"`
	Status                 RuleStatus      `yaml:"status"`
	CreatedAt              time.Time       `yaml:"created_at"`
	LastRequestSentAt      *time.Time      `yaml:"last_request_sent_at,omitempty"`
	LastRequestPeriod      string          `yaml:"last_request_period,omitempty"` // "2006-01"
	ReviewPeriod           string          `yaml:"review_period,omitempty"`       // period held for manual review
}

// IsActive reports whether the pack takes part in monthly collection.
func (p BillPack) IsActive() bool {
	return p.Status == RuleActive
}
