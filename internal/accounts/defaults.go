package accounts

import "github.com/settleloop/settleloop/internal/model"

// DefaultAccountID is the account settlements deposit into when none is
// configured.
const DefaultAccountID = "chequing-1"

// DefaultAccounts returns the starter set of household bank accounts.
func DefaultAccounts() []model.Account {
	return []model.Account{
		{ID: "chequing-1", Type: model.AccountChequing, Name: "Chequing", Number: "4291"},
		{ID: "savings-1", Type: model.AccountSavings, Name: "Savings", Number: "7803"},
		{ID: "joint-1", Type: model.AccountJoint, Name: "Joint Account", Number: "6120"},
		{ID: "credit-1", Type: model.AccountCredit, Name: "Visa Credit Card", Number: "1234"},
		{ID: "loc-1", Type: model.AccountLineOfCredit, Name: "Line of Credit", Number: "5678"},
	}
}
