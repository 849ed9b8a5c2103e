package autosplit

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/settleloop/settleloop/internal/model"
	"github.com/settleloop/settleloop/internal/split"
)

// DefaultWindowDays bounds how far back a scan looks.
const DefaultWindowDays = 30

// TransactionSource is the read side of the bank feed.
type TransactionSource interface {
	Transactions() []model.BankTransaction
}

// Ledger is the port the engine uses to read rules and record imports.
type Ledger interface {
	// ActiveRules returns active rules in catalog order.
	ActiveRules() []model.AutoSplitRule
	// HasImported reports whether any mission already holds an expense
	// imported from transactionID.
	HasImported(transactionID string) bool
	// AddImportedExpense appends e to the mission and recomputes balances.
	AddImportedExpense(missionID string, e model.Expense) (model.Expense, error)
	// RecordMatch updates the rule's match bookkeeping.
	RecordMatch(ruleID string, tx model.BankTransaction) error
}

// ConfigurationWarning flags a fixed-amount rule whose amounts do not add up
// to the matched transaction. The expense is still created as configured.
type ConfigurationWarning struct {
	RuleID        string
	MissionID     string
	TransactionID string
	Mismatch      split.Mismatch
}

func (w ConfigurationWarning) String() string {
	return fmt.Sprintf("rule %s: %s", w.RuleID, w.Mismatch)
}

// Result is the outcome of importing one matched transaction.
type Result struct {
	Expense   model.Expense
	Duplicate bool
	Warning   *ConfigurationWarning
}

// Failure records a matched transaction that could not be imported.
type Failure struct {
	TransactionID string
	RuleID        string
	Err           error
}

// Report summarises a batch scan.
type Report struct {
	Scanned    int
	Matched    int
	Imported   []model.Expense
	Duplicates int
	Warnings   []ConfigurationWarning
	Failures   []Failure
}

// Engine runs rules against the transaction feed.
type Engine struct {
	source TransactionSource
	ledger Ledger
	logger *zap.Logger
	now    func() time.Time
	window int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithWindowDays sets the scan window.
func WithWindowDays(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.window = days
		}
	}
}

// NewEngine creates an Engine over source and ledger.
func NewEngine(source TransactionSource, ledger Ledger, opts ...Option) *Engine {
	e := &Engine{
		source: source,
		ledger: ledger,
		logger: zap.NewNop(),
		now:    time.Now,
		window: DefaultWindowDays,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CheckTransactions scans completed transactions from the last window days,
// oldest first, and imports every match whose rule auto-creates expenses.
// A transaction imported into any mission is never matched again, so running
// it again on unchanged data imports nothing.
func (e *Engine) CheckTransactions() Report {
	cutoff := e.now().AddDate(0, 0, -e.window)

	var recent []model.BankTransaction
	for _, tx := range e.source.Transactions() {
		if tx.Status != model.TxCompleted || tx.Date.Before(cutoff) {
			continue
		}
		recent = append(recent, tx)
	}
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].Date.Before(recent[j].Date) })

	var rep Report
	rep.Scanned = len(recent)
	for _, tx := range recent {
		if e.ledger.HasImported(tx.ID) {
			rep.Duplicates++
			continue
		}
		rule := Match(tx, e.ledger.ActiveRules())
		if rule == nil {
			continue
		}
		rep.Matched++
		if !rule.Actions.AutoCreateExpense {
			continue
		}

		res, err := e.Import(*rule, tx)
		if err != nil {
			e.logger.Error("import failed",
				zap.String("rule_id", rule.ID),
				zap.String("transaction_id", tx.ID),
				zap.Error(err))
			rep.Failures = append(rep.Failures, Failure{TransactionID: tx.ID, RuleID: rule.ID, Err: err})
			continue
		}
		if res.Duplicate {
			rep.Duplicates++
			continue
		}
		rep.Imported = append(rep.Imported, res.Expense)
		if res.Warning != nil {
			rep.Warnings = append(rep.Warnings, *res.Warning)
		}
	}

	e.logger.Info("transaction scan complete",
		zap.Int("scanned", rep.Scanned),
		zap.Int("matched", rep.Matched),
		zap.Int("imported", len(rep.Imported)),
		zap.Int("duplicates", rep.Duplicates))
	return rep
}

// Import turns a matched transaction into an expense of the rule's mission.
// A transaction already imported into any mission is absorbed silently.
func (e *Engine) Import(rule model.AutoSplitRule, tx model.BankTransaction) (Result, error) {
	if e.ledger.HasImported(tx.ID) {
		e.logger.Debug("transaction already imported",
			zap.String("transaction_id", tx.ID),
			zap.String("rule_id", rule.ID))
		return Result{Duplicate: true}, nil
	}

	total := tx.Amount.Abs()
	shares, mismatch, err := split.ForRule(rule, total)
	if err != nil {
		return Result{}, fmt.Errorf("splitting %s: %w", tx.ID, err)
	}

	var res Result
	if mismatch != nil {
		res.Warning = &ConfigurationWarning{
			RuleID:        rule.ID,
			MissionID:     rule.MissionID,
			TransactionID: tx.ID,
			Mismatch:      *mismatch,
		}
		e.logger.Warn("fixed split amounts do not match transaction",
			zap.String("rule_id", rule.ID),
			zap.String("transaction_id", tx.ID),
			zap.String("configured", mismatch.Configured.StringFixed(2)),
			zap.String("total", mismatch.Total.StringFixed(2)))
	}

	title := rule.Name
	if title == "" {
		title = tx.Description
	}
	exp, err := e.ledger.AddImportedExpense(rule.MissionID, model.Expense{
		Title:        title,
		Amount:       total,
		PaidBy:       rule.PaidBy,
		Mode:         rule.Mode,
		Shares:       shares,
		CreatedAt:    e.now(),
		ImportedFrom: tx.ID,
		SourceRuleID: rule.ID,
	})
	if err != nil {
		return Result{}, fmt.Errorf("adding expense for %s: %w", tx.ID, err)
	}
	if err := e.ledger.RecordMatch(rule.ID, tx); err != nil {
		return Result{}, fmt.Errorf("recording match for rule %s: %w", rule.ID, err)
	}

	e.logger.Info("expense imported",
		zap.String("rule_id", rule.ID),
		zap.String("transaction_id", tx.ID),
		zap.String("expense_id", exp.ID),
		zap.String("amount", total.StringFixed(2)))
	res.Expense = exp
	return res, nil
}
