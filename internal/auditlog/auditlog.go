// Package auditlog is the append-only CSV trail of what the ledger did on its
// own: imports, configuration warnings, settlements, monthly requests and
// reminders.
package auditlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Actions recorded in the log.
const (
	ActionExpenseImported       = "expense_imported"
	ActionConfigurationWarning  = "configuration_warning"
	ActionSettlementConfirmed   = "settlement_confirmed"
	ActionMonthlyRequestSent    = "monthly_request_sent"
	ActionMonthlyReviewRequired = "monthly_review_required"
	ActionReminderSent          = "reminder_sent"
)

// Entry is one row in the audit log.
type Entry struct {
	Timestamp time.Time
	Actor     string
	Action    string
	Details   string
	MissionID string
	Ref       string
}

// Header is the CSV header for audit-log.csv.
const Header = "timestamp,actor,action,details,mission_id,ref"

// FileName is the log file inside the log directory.
const FileName = "audit-log.csv"

const (
	numFields    = 6
	colTimestamp = 0
	colActor     = 1
	colAction    = 2
	colDetails   = 3
	colMissionID = 4
	colRef       = 5
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colActor] = e.Actor
	row[colAction] = e.Action
	row[colDetails] = e.Details
	row[colMissionID] = e.MissionID
	row[colRef] = e.Ref
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	return Entry{
		Timestamp: ts,
		Actor:     record[colActor],
		Action:    record[colAction],
		Details:   record[colDetails],
		MissionID: record[colMissionID],
		Ref:       record[colRef],
	}, nil
}

// Append writes entries to <logDir>/audit-log.csv, creating the file and
// header if needed.
func Append(logDir string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("creating log dir: %w", err)
	}

	path := filepath.Join(logDir, FileName)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	return cw.Error()
}

// Read returns all entries from <logDir>/audit-log.csv.
// Returns an empty slice if the file does not exist.
func Read(logDir string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(logDir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Buffer collects entries in memory until they are drained to disk.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
}

// Record adds e to the buffer.
func (b *Buffer) Record(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, e)
}

// Drain returns the buffered entries and empties the buffer.
func (b *Buffer) Drain() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.entries
	b.entries = nil
	return out
}

// Filter returns the entries with the given action.
func Filter(entries []Entry, action string) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
