package accounts

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/settleloop/settleloop/internal/model"
)

const (
	numFields = 4
	colID     = 0
	colType   = 1
	colName   = 2
	colNumber = 3
)

var header = []string{"account_id", "account_type", "name", "number"}

var knownTypes = map[model.AccountType]bool{
	model.AccountChequing:     true,
	model.AccountSavings:      true,
	model.AccountJoint:        true,
	model.AccountCredit:       true,
	model.AccountLineOfCredit: true,
}

// ReadAccounts reads accounts.csv.
func ReadAccounts(r io.Reader) ([]model.Account, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var accounts []model.Account
	for i, rec := range records[1:] {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// WriteAccounts writes accounts.csv.
func WriteAccounts(w io.Writer, accounts []model.Account) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// MarshalAccount converts an Account to a CSV row.
func MarshalAccount(acct model.Account) []string {
	row := make([]string, numFields)
	row[colID] = acct.ID
	row[colType] = string(acct.Type)
	row[colName] = acct.Name
	row[colNumber] = acct.Number
	return row
}

// UnmarshalAccount converts a CSV row to an Account.
func UnmarshalAccount(record []string) (model.Account, error) {
	if len(record) != numFields {
		return model.Account{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}
	if record[colID] == "" {
		return model.Account{}, fmt.Errorf("missing account_id")
	}
	typ := model.AccountType(record[colType])
	if !knownTypes[typ] {
		return model.Account{}, fmt.Errorf("unknown account_type %q", record[colType])
	}
	return model.Account{
		ID:     record[colID],
		Type:   typ,
		Name:   record[colName],
		Number: record[colNumber],
	}, nil
}
