package model

// AccountType classifies bank accounts that feed transactions.
type AccountType string

const (
	AccountChequing     AccountType = "chequing"
	AccountSavings      AccountType = "savings"
	AccountJoint        AccountType = "joint"
	AccountCredit       AccountType = "credit"
	AccountLineOfCredit AccountType = "lineOfCredit"
)

// Account is a bank account that rules can watch and settlements deposit into.
type Account struct {
	ID     string
	Type   AccountType
	Name   string
	Number string // last four digits
}
