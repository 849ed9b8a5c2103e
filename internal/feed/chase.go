package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/settleloop/settleloop/internal/model"
)

const chaseFormat = "chase"

// ChaseParser parses Chase checking CSV exports. The export carries no
// account, so every row is posted to AccountID.
type ChaseParser struct {
	AccountID string
}

const (
	chaseDateFormat = "01/02/2006"
	chaseNumFields  = 7
	chaseColDetails = 0
	chaseColDate    = 1
	chaseColDesc    = 2
	chaseColAmount  = 3
	chaseColType    = 4
)

// Format returns the parser name.
func (p *ChaseParser) Format() string { return chaseFormat }

// Parse reads a Chase CSV and returns completed BankTransactions.
func (p *ChaseParser) Parse(r io.Reader) ([]model.BankTransaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = chaseNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading chase CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	seen := map[string]int{}
	var txns []model.BankTransaction
	for i, rec := range records[1:] {
		txn, err := p.parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		// Same-day rows with the same description need distinct ids.
		seen[txn.ID]++
		if n := seen[txn.ID]; n > 1 {
			txn.ID = fmt.Sprintf("%s_%d", txn.ID, n)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

func (p *ChaseParser) parseRow(rec []string) (model.BankTransaction, error) {
	date, err := time.Parse(chaseDateFormat, rec[chaseColDate])
	if err != nil {
		return model.BankTransaction{}, fmt.Errorf("parsing date %q: %w", rec[chaseColDate], err)
	}

	amount, err := decimal.NewFromString(rec[chaseColAmount])
	if err != nil {
		return model.BankTransaction{}, fmt.Errorf("parsing amount %q: %w", rec[chaseColAmount], err)
	}

	desc := rec[chaseColDesc]
	return model.BankTransaction{
		ID:          makeChaseRef(date, desc),
		AccountID:   p.AccountID,
		Type:        chaseType(rec[chaseColDetails], rec[chaseColType], amount),
		Amount:      amount,
		Description: desc,
		Date:        date,
		Status:      model.TxCompleted,
	}, nil
}

// chaseType maps the Chase details and type columns onto a transaction type.
func chaseType(details, kind string, amount decimal.Decimal) model.TransactionType {
	switch strings.ToUpper(kind) {
	case "ACCT_XFER", "QUICKPAY_CREDIT", "QUICKPAY_DEBIT":
		return model.TxTransfer
	case "ACH_DEBIT", "BILLPAY":
		return model.TxBill
	case "DEBIT_CARD":
		return model.TxCharge
	}
	if strings.EqualFold(details, "CREDIT") || amount.IsPositive() {
		return model.TxDeposit
	}
	return model.TxWithdrawal
}

// makeChaseRef creates a reference like chase_20250103_GITHUBPROS.
func makeChaseRef(date time.Time, desc string) string {
	prefix := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, desc)
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}
	return fmt.Sprintf("chase_%s_%s", date.Format("20060102"), prefix)
}
