package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/settleloop/settleloop/internal/id"
	"github.com/settleloop/settleloop/internal/model"
	"github.com/settleloop/settleloop/internal/money"
	"github.com/settleloop/settleloop/internal/split"
)

// ExpenseParams describes an expense to add or replace. When Shares is empty
// they are generated for Participants with split.Generate; AMOUNT expenses
// must supply Shares. PERCENT shares need only Percent set, amounts are
// derived.
type ExpenseParams struct {
	Title        string
	Amount       decimal.Decimal
	PaidBy       string
	Mode         model.SplitMode
	Participants []string
	Shares       []model.Share
}

func (s *Service) buildExpense(m *model.Mission, expenseID string, p ExpenseParams) (model.Expense, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return model.Expense{}, invalid(InvTitle, expenseID, "expense title is required")
	}
	amount := money.Round2(p.Amount)
	mode := p.Mode
	if mode == "" {
		mode = model.SplitEqual
	}

	shares := p.Shares
	if len(shares) == 0 {
		participants := p.Participants
		if len(participants) == 0 {
			return model.Expense{}, invalid(split.InvParticipants, expenseID, "at least one participant is required")
		}
		generated, err := split.Generate(participants, mode, amount)
		if err != nil {
			return model.Expense{}, err
		}
		shares = generated
	} else {
		shares = append([]model.Share(nil), shares...)
		for i := range shares {
			if mode == model.SplitPercent {
				shares[i].Amount = money.Round2(amount.Mul(shares[i].Percent).Div(money.Hundred))
			} else {
				shares[i].Amount = money.Round2(shares[i].Amount)
			}
		}
	}

	e := model.Expense{
		ID:     expenseID,
		Title:  title,
		Amount: amount,
		PaidBy: p.PaidBy,
		Mode:   mode,
		Shares: shares,
	}
	if err := split.Validate(e); err != nil {
		return model.Expense{}, err
	}
	if !m.HasMember(e.PaidBy) {
		return model.Expense{}, invalid(split.InvPayer, expenseID, "payer %s is not a member of the mission", e.PaidBy)
	}
	for _, sh := range e.Shares {
		if !m.HasMember(sh.MemberID) {
			return model.Expense{}, invalid(split.InvMember, expenseID, "%s is not a member of the mission", sh.MemberID)
		}
	}
	return e, nil
}

// AddExpense validates and records an expense.
func (s *Service) AddExpense(missionID string, p ExpenseParams) (model.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var added model.Expense
	_, err := s.mutate(missionID, func(m *model.Mission) error {
		if err := requireActive(m); err != nil {
			return err
		}
		e, err := s.buildExpense(m, s.ids(id.Expense), p)
		if err != nil {
			return err
		}
		e.CreatedAt = s.now()
		m.Expenses = append(m.Expenses, e)
		added = e
		return nil
	})
	if err != nil {
		return model.Expense{}, err
	}
	s.logger.Info("expense added",
		zap.String("mission_id", missionID),
		zap.String("expense_id", added.ID),
		zap.String("amount", added.Amount.StringFixed(2)))
	return added, nil
}

// UpdateExpense replaces an expense's content, keeping its id, creation time
// and import provenance.
func (s *Service) UpdateExpense(missionID, expenseID string, p ExpenseParams) (model.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated model.Expense
	_, err := s.mutate(missionID, func(m *model.Mission) error {
		if err := requireActive(m); err != nil {
			return err
		}
		old, i, ok := m.Expense(expenseID)
		if !ok {
			return notFound(KindExpense, expenseID)
		}
		e, err := s.buildExpense(m, expenseID, p)
		if err != nil {
			return err
		}
		e.CreatedAt = old.CreatedAt
		e.ImportedFrom = old.ImportedFrom
		e.SourceRuleID = old.SourceRuleID
		m.Expenses[i] = e
		updated = e
		return nil
	})
	return updated, err
}

// RemoveExpense deletes an expense.
func (s *Service) RemoveExpense(missionID, expenseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.mutate(missionID, func(m *model.Mission) error {
		if err := requireActive(m); err != nil {
			return err
		}
		_, i, ok := m.Expense(expenseID)
		if !ok {
			return notFound(KindExpense, expenseID)
		}
		m.Expenses = append(m.Expenses[:i], m.Expenses[i+1:]...)
		return nil
	})
	return err
}
