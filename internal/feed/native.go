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

const nativeFormat = "settleloop"

// NativeHeader is the header row of the settleloop transaction CSV.
var NativeHeader = []string{"id", "account_id", "type", "amount", "description", "category", "date", "status"}

const (
	colID = iota
	colAccountID
	colType
	colAmount
	colDescription
	colCategory
	colDate
	colStatus
	nativeNumFields
)

// NativeParser reads the settleloop transaction CSV. Dates are ISO-8601,
// either a plain date or RFC 3339.
type NativeParser struct{}

// Format returns the parser name.
func (p *NativeParser) Format() string { return nativeFormat }

// Parse reads a settleloop CSV and returns BankTransactions.
func (p *NativeParser) Parse(r io.Reader) ([]model.BankTransaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = nativeNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading transaction CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var txns []model.BankTransaction
	for i, rec := range records[1:] {
		txn, err := parseNativeRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

func parseNativeRow(rec []string) (model.BankTransaction, error) {
	if rec[colID] == "" {
		return model.BankTransaction{}, fmt.Errorf("missing id")
	}
	date, err := parseDate(rec[colDate])
	if err != nil {
		return model.BankTransaction{}, err
	}
	amount, err := decimal.NewFromString(rec[colAmount])
	if err != nil {
		return model.BankTransaction{}, fmt.Errorf("parsing amount %q: %w", rec[colAmount], err)
	}
	status := model.TransactionStatus(strings.ToLower(rec[colStatus]))
	if status == "" {
		status = model.TxCompleted
	}
	return model.BankTransaction{
		ID:          rec[colID],
		AccountID:   rec[colAccountID],
		Type:        model.TransactionType(strings.ToLower(rec[colType])),
		Amount:      amount.Round(2),
		Description: rec[colDescription],
		Category:    rec[colCategory],
		Date:        date,
		Status:      status,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t.UTC(), nil
}

// MarshalNative renders a transaction as a settleloop CSV record.
func MarshalNative(tx model.BankTransaction) []string {
	rec := make([]string, nativeNumFields)
	rec[colID] = tx.ID
	rec[colAccountID] = tx.AccountID
	rec[colType] = string(tx.Type)
	rec[colAmount] = tx.Amount.StringFixed(2)
	rec[colDescription] = tx.Description
	rec[colCategory] = tx.Category
	rec[colDate] = tx.Date.UTC().Format(time.RFC3339)
	rec[colStatus] = string(tx.Status)
	return rec
}

// WriteNative writes txns as a settleloop CSV, header included.
func WriteNative(w io.Writer, txns []model.BankTransaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(NativeHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, tx := range txns {
		if err := cw.Write(MarshalNative(tx)); err != nil {
			return fmt.Errorf("writing %s: %w", tx.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
