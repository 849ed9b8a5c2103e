package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// NotificationType selects how a notification is presented.
type NotificationType string

const (
	NotifyInfo    NotificationType = "info"
	NotifyDeposit NotificationType = "deposit"
	NotifyPayment NotificationType = "payment"
)

// Notification is a message handed to the notification collaborator.
type Notification struct {
	ID        string
	Type      NotificationType
	Title     string
	Message   string
	Amount    decimal.Decimal // zero when not applicable
	CreatedAt time.Time
}
