package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a bank transaction.
type TransactionType string

const (
	TxTransfer   TransactionType = "transfer"
	TxBill       TransactionType = "bill"
	TxDeposit    TransactionType = "deposit"
	TxWithdrawal TransactionType = "withdrawal"
	TxRequest    TransactionType = "request"
	TxPayment    TransactionType = "payment"
	TxCharge     TransactionType = "charge"
)

// TransactionStatus is the processing state reported by the bank.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
	TxFailed    TransactionStatus = "failed"
	TxCancelled TransactionStatus = "cancelled"
)

// BankTransaction is a row from the bank feed. The ledger never mutates one.
type BankTransaction struct {
	ID           string            `yaml:"id"`
	AccountID    string            `yaml:"account_id"`
	Type         TransactionType   `yaml:"type"`
	Amount       decimal.Decimal   `yaml:"amount"` // negative = money out, positive = money in
	Description  string            `yaml:"description"`
	Category     string            `yaml:"category,omitempty"`
	Date         time.Time         `yaml:"date"`
	Status       TransactionStatus `yaml:"status"`
	Counterparty string            `yaml:"counterparty,omitempty"`
}
