package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/settleloop/settleloop/internal/auditlog"
	"github.com/settleloop/settleloop/internal/autosplit"
	"github.com/settleloop/settleloop/internal/id"
	"github.com/settleloop/settleloop/internal/model"
	"github.com/settleloop/settleloop/internal/money"
	"github.com/settleloop/settleloop/internal/split"
)

// RuleParams describes an auto-split rule to create or replace.
type RuleParams struct {
	MissionID               string
	BillPackID              string
	Name                    string
	AccountID               string
	Detection               model.Detection
	PaidBy                  string
	Participants            []string
	Mode                    model.SplitMode
	SplitValues             []decimal.Decimal
	Recurrence              model.Recurrence
	ExpectedDayOfMonth      int
	Actions                 model.RuleActions
	IncludeInMonthlyRequest bool
}

func (s *Service) checkRule(ruleID string, p RuleParams) error {
	if strings.TrimSpace(p.Name) == "" {
		return invalid(InvName, ruleID, "rule name is required")
	}
	m, _, err := s.lookup(p.MissionID)
	if err != nil {
		return err
	}
	if err := p.Detection.Validate(); err != nil {
		return invalid(split.InvDetection, ruleID, "%v", err)
	}
	if _, ok := s.accounts.Get(p.AccountID); !ok {
		return invalid(InvAccount, ruleID, "unknown bank account %q", p.AccountID)
	}
	mode := p.Mode
	if mode == "" {
		mode = model.SplitEqual
	}
	if err := split.ValidateConfig(ruleID, mode, p.Participants, p.SplitValues); err != nil {
		return err
	}
	return s.checkRuleMembers(m, ruleID, p.PaidBy, p.Participants, p.BillPackID)
}

func (s *Service) checkRuleMembers(m *model.Mission, ruleID, paidBy string, participants []string, packID string) error {
	if paidBy == "" {
		return invalid(split.InvPayer, ruleID, "a payer is required")
	}
	if !m.HasMember(paidBy) {
		return invalid(split.InvPayer, ruleID, "payer %s is not a member of the mission", paidBy)
	}
	for _, p := range participants {
		if !m.HasMember(p) {
			return invalid(split.InvMember, ruleID, "%s is not a member of the mission", p)
		}
	}
	if packID != "" {
		pack, ok := s.pack(packID)
		if !ok {
			return notFound(KindBillPack, packID)
		}
		if pack.MissionID != m.ID {
			return invalid(InvBillPack, ruleID, "bill pack %s belongs to another mission", packID)
		}
	}
	return nil
}

func (s *Service) newRule(p RuleParams) model.AutoSplitRule {
	mode := p.Mode
	if mode == "" {
		mode = model.SplitEqual
	}
	return model.AutoSplitRule{
		ID:                      s.ids(id.Rule),
		MissionID:               p.MissionID,
		BillPackID:              p.BillPackID,
		Name:                    strings.TrimSpace(p.Name),
		AccountID:               p.AccountID,
		Detection:               p.Detection,
		PaidBy:                  p.PaidBy,
		Participants:            append([]string(nil), p.Participants...),
		Mode:                    mode,
		SplitValues:             append([]decimal.Decimal(nil), p.SplitValues...),
		Recurrence:              p.Recurrence,
		ExpectedDayOfMonth:      p.ExpectedDayOfMonth,
		Actions:                 p.Actions,
		IncludeInMonthlyRequest: p.IncludeInMonthlyRequest,
		Status:                  model.RuleActive,
		CreatedAt:               s.now(),
	}
}

// CreateRule validates and appends a rule to the catalog. New rules are
// active.
func (s *Service) CreateRule(p RuleParams) (model.AutoSplitRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkRule("", p); err != nil {
		return model.AutoSplitRule{}, err
	}
	r := s.newRule(p)
	s.rules = append(s.rules, r)
	s.logger.Info("rule created", zap.String("rule_id", r.ID), zap.String("detection", r.Detection.String()))
	return r.Clone(), nil
}

// CreateRulesBulk creates several rules at once. Either every rule is valid
// and all are created, or none is.
func (s *Service) CreateRulesBulk(params []RuleParams) ([]model.AutoSplitRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range params {
		if err := s.checkRule("", p); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i+1, p.Name, err)
		}
	}
	out := make([]model.AutoSplitRule, len(params))
	for i, p := range params {
		r := s.newRule(p)
		s.rules = append(s.rules, r)
		out[i] = r.Clone()
	}
	s.logger.Info("rules created", zap.Int("count", len(out)))
	return out, nil
}

// UpdateRule replaces a rule's configuration. Status and match bookkeeping
// are kept; the mission cannot change.
func (s *Service) UpdateRule(ruleID string, p RuleParams) (model.AutoSplitRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.ruleIndex(ruleID)
	if i < 0 {
		return model.AutoSplitRule{}, notFound(KindRule, ruleID)
	}
	old := s.rules[i]
	if p.MissionID == "" {
		p.MissionID = old.MissionID
	}
	if p.MissionID != old.MissionID {
		return model.AutoSplitRule{}, invalid(InvMission, ruleID, "a rule cannot move to another mission")
	}
	if err := s.checkRule(ruleID, p); err != nil {
		return model.AutoSplitRule{}, err
	}
	r := s.newRule(p)
	r.ID = old.ID
	r.Status = old.Status
	r.CreatedAt = old.CreatedAt
	r.LastMatchedAt = old.LastMatchedAt
	r.LastMatchedTransactionID = old.LastMatchedTransactionID
	r.MatchCount = old.MatchCount
	s.rules[i] = r
	return r.Clone(), nil
}

// DeleteRule removes a rule. Expenses it created stay in their mission.
func (s *Service) DeleteRule(ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.ruleIndex(ruleID)
	if i < 0 {
		return notFound(KindRule, ruleID)
	}
	s.rules = append(s.rules[:i], s.rules[i+1:]...)
	return nil
}

// ToggleRule flips a rule between active and paused. Resuming re-checks the
// rule against the mission's current members.
func (s *Service) ToggleRule(ruleID string) (model.AutoSplitRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.ruleIndex(ruleID)
	if i < 0 {
		return model.AutoSplitRule{}, notFound(KindRule, ruleID)
	}
	r := &s.rules[i]
	if r.Status == model.RuleActive {
		r.Status = model.RulePaused
		return r.Clone(), nil
	}

	m, _, err := s.lookup(r.MissionID)
	if err != nil {
		return model.AutoSplitRule{}, err
	}
	if err := split.ValidateConfig(r.ID, r.Mode, r.Participants, r.SplitValues); err != nil {
		return model.AutoSplitRule{}, err
	}
	if err := s.checkRuleMembers(m, r.ID, r.PaidBy, r.Participants, r.BillPackID); err != nil {
		return model.AutoSplitRule{}, err
	}
	r.Status = model.RuleActive
	return r.Clone(), nil
}

// Rule returns a rule by id.
func (s *Service) Rule(ruleID string) (model.AutoSplitRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.ruleIndex(ruleID)
	if i < 0 {
		return model.AutoSplitRule{}, notFound(KindRule, ruleID)
	}
	return s.rules[i].Clone(), nil
}

// Rules returns the whole catalog in order.
func (s *Service) Rules() []model.AutoSplitRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterRules(func(model.AutoSplitRule) bool { return true })
}

// RulesForMission returns the rules of a mission in catalog order.
func (s *Service) RulesForMission(missionID string) []model.AutoSplitRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterRules(func(r model.AutoSplitRule) bool { return r.MissionID == missionID })
}

// RulesForPack returns the rules attached to a bill pack.
func (s *Service) RulesForPack(packID string) []model.AutoSplitRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterRules(func(r model.AutoSplitRule) bool { return r.BillPackID == packID })
}

func (s *Service) filterRules(keep func(model.AutoSplitRule) bool) []model.AutoSplitRule {
	var out []model.AutoSplitRule
	for _, r := range s.rules {
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

func (s *Service) ruleIndex(ruleID string) int {
	for i, r := range s.rules {
		if r.ID == ruleID {
			return i
		}
	}
	return -1
}

// CheckTransactions scans the bank feed and imports every transaction an
// active rule matches.
func (s *Service) CheckTransactions() autosplit.Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	eng := autosplit.NewEngine(s.feed, sink{s},
		autosplit.WithLogger(s.logger.Named("autosplit")),
		autosplit.WithClock(s.now),
		autosplit.WithWindowDays(s.windowDays))
	rep := eng.CheckTransactions()

	for _, e := range rep.Imported {
		s.record("autosplit", auditlog.ActionExpenseImported, missionOfRule(s.rules, e.SourceRuleID), e.ImportedFrom,
			fmt.Sprintf("%s %s via rule %s", e.Title, money.Format(e.Amount), e.SourceRuleID))
	}
	for _, w := range rep.Warnings {
		s.record("autosplit", auditlog.ActionConfigurationWarning, w.MissionID, w.TransactionID, w.String())
	}
	return rep
}

func missionOfRule(rules []model.AutoSplitRule, ruleID string) string {
	for _, r := range rules {
		if r.ID == ruleID {
			return r.MissionID
		}
	}
	return ""
}

// sink gives the autosplit engine access to the service while s.mu is held.
type sink struct{ s *Service }

// ActiveRules skips rules whose mission is settled.
func (k sink) ActiveRules() []model.AutoSplitRule {
	return k.s.filterRules(func(r model.AutoSplitRule) bool {
		if !r.IsActive() {
			return false
		}
		m, _, err := k.s.lookup(r.MissionID)
		return err == nil && !m.IsSettled()
	})
}

// HasImported looks across every mission so two missions watching the same
// account never both import one transaction.
func (k sink) HasImported(txID string) bool {
	for _, m := range k.s.missions {
		for _, e := range m.Expenses {
			if e.ImportedFrom == txID {
				return true
			}
		}
	}
	return false
}

// AddImportedExpense trusts the rule's configured shares; fixed amounts that
// miss the total were already reported as a warning.
func (k sink) AddImportedExpense(missionID string, e model.Expense) (model.Expense, error) {
	s := k.s
	_, err := s.mutate(missionID, func(m *model.Mission) error {
		if err := requireActive(m); err != nil {
			return err
		}
		if !m.HasMember(e.PaidBy) {
			return invalid(split.InvPayer, e.SourceRuleID, "payer %s is not a member of the mission", e.PaidBy)
		}
		if !e.Amount.IsPositive() {
			return invalid(split.InvAmount, e.SourceRuleID, "imported amount must be positive")
		}
		if e.ID == "" {
			e.ID = s.ids(id.Expense)
		}
		m.Expenses = append(m.Expenses, e)
		return nil
	})
	if err != nil {
		return model.Expense{}, err
	}
	return e, nil
}

// RecordMatch stores the transaction date as the match time so monthly
// throttling follows the bank calendar rather than the scan time.
func (k sink) RecordMatch(ruleID string, tx model.BankTransaction) error {
	i := k.s.ruleIndex(ruleID)
	if i < 0 {
		return notFound(KindRule, ruleID)
	}
	r := &k.s.rules[i]
	at := tx.Date
	r.LastMatchedAt = &at
	r.LastMatchedTransactionID = tx.ID
	r.MatchCount++
	return nil
}
