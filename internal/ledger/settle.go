package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/settleloop/settleloop/internal/auditlog"
	"github.com/settleloop/settleloop/internal/balance"
	"github.com/settleloop/settleloop/internal/model"
	"github.com/settleloop/settleloop/internal/money"
	"github.com/settleloop/settleloop/internal/settlement"
)

// Balances returns the mission members with derived balances. While the
// mission is settled every balance is zero.
func (s *Service) Balances(missionID string) ([]model.Member, error) {
	m, err := s.Mission(missionID)
	if err != nil {
		return nil, err
	}
	return m.Members, nil
}

// SettlementPlan returns the minimal set of transfers that clears the
// mission. A settled mission has nothing to transfer.
func (s *Service) SettlementPlan(missionID string) (settlement.Plan, error) {
	members, err := s.Balances(missionID)
	if err != nil {
		return settlement.Plan{}, err
	}
	return settlement.Optimize(members), nil
}

// SettlementView returns the transfers userID sends and receives.
func (s *Service) SettlementView(missionID, userID string) (settlement.View, error) {
	m, err := s.Mission(missionID)
	if err != nil {
		return settlement.View{}, err
	}
	if !m.HasMember(userID) {
		return settlement.View{}, notFound(KindMember, userID)
	}
	return settlement.Optimize(m.Members).For(userID), nil
}

// Confirmation is the result of confirming a settlement.
type Confirmation struct {
	View         settlement.View
	Transactions []model.BankTransaction
}

// ConfirmSettlement marks the mission settled and records the current user's
// side of the settlement in the bank feed: deposits for transfers received,
// withdrawals for transfers sent. If the mission cannot be settled nothing is
// posted.
func (s *Service) ConfirmSettlement(missionID, userID string) (Confirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, _, err := s.lookup(missionID)
	if err != nil {
		return Confirmation{}, err
	}
	if m.IsSettled() {
		return Confirmation{}, ErrSettled
	}
	if !m.HasMember(userID) {
		return Confirmation{}, notFound(KindMember, userID)
	}

	members := balance.Compute(m)
	conf := Confirmation{View: settlement.Optimize(members).For(userID)}
	now := s.now()

	var txs []model.BankTransaction
	for _, t := range conf.View.Receives {
		from := memberName(m, t.From)
		txs = append(txs, model.BankTransaction{
			AccountID:    s.depositAccount,
			Type:         model.TxDeposit,
			Amount:       t.Amount,
			Description:  fmt.Sprintf("E-Transfer from %s", from),
			Category:     "Transfer",
			Date:         now,
			Status:       model.TxCompleted,
			Counterparty: from,
		})
	}
	for _, t := range conf.View.Sends {
		to := memberName(m, t.To)
		txs = append(txs, model.BankTransaction{
			AccountID:    s.depositAccount,
			Type:         model.TxWithdrawal,
			Amount:       t.Amount.Neg(),
			Description:  fmt.Sprintf("E-Transfer to %s", to),
			Category:     "Transfer",
			Date:         now,
			Status:       model.TxCompleted,
			Counterparty: to,
		})
	}

	// The mission is settled before anything reaches the feed.
	if err := s.stage(txs); err != nil {
		return Confirmation{}, fmt.Errorf("recording transfers: %w", err)
	}
	if _, err := s.markSettled(missionID); err != nil {
		return Confirmation{}, err
	}
	if err := s.post(txs); err != nil {
		return conf, err
	}
	conf.Transactions = txs

	acct, hasAcct := s.accounts.Get(s.depositAccount)
	for _, t := range conf.View.Receives {
		from := memberName(m, t.From)
		msg := fmt.Sprintf("%s sent you %s via e-Transfer.", from, money.Format(t.Amount))
		if hasAcct {
			msg += fmt.Sprintf(" Deposited to account ending in %s", acct.Number)
		}
		s.notify(model.Notification{Type: model.NotifyDeposit, Title: "Payment Received", Message: msg, Amount: t.Amount})
	}
	for _, t := range conf.View.Sends {
		s.notify(model.Notification{
			Type:    model.NotifyPayment,
			Title:   "Payment Sent",
			Message: fmt.Sprintf("You sent %s to %s via e-Transfer", money.Format(t.Amount), memberName(m, t.To)),
			Amount:  t.Amount,
		})
	}

	s.record("settle", auditlog.ActionSettlementConfirmed, missionID, userID,
		fmt.Sprintf("received %s, sent %s", money.Format(conf.View.TotalReceiving), money.Format(conf.View.TotalSending)))
	s.logger.Info("settlement confirmed",
		zap.String("mission_id", missionID),
		zap.String("user_id", userID),
		zap.Int("transactions", len(conf.Transactions)))
	return conf, nil
}

func memberName(m *model.Mission, memberID string) string {
	if mem, ok := m.Member(memberID); ok {
		return mem.Name
	}
	return memberID
}

// MarkSettled closes the mission. Balances read as zero until it is reopened.
func (s *Service) MarkSettled(missionID string) (*model.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markSettled(missionID)
}

func (s *Service) markSettled(missionID string) (*model.Mission, error) {
	m, err := s.mutate(missionID, func(m *model.Mission) error {
		if err := requireActive(m); err != nil {
			return err
		}
		now := s.now()
		m.Status = model.MissionSettled
		m.SettledAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.Members = balance.Zeroed(m.Members)
	return m, nil
}

// Reopen makes a settled mission active again; balances are recomputed from
// the full expense history.
func (s *Service) Reopen(missionID string) (*model.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate(missionID, func(m *model.Mission) error {
		if !m.IsSettled() {
			return nil
		}
		m.Status = model.MissionActive
		m.SettledAt = nil
		m.SettlementInitiatedAt = nil
		return nil
	})
}

// InitiateSettlement starts the reminder clock for an active mission. Calling
// it again keeps the original start time.
func (s *Service) InitiateSettlement(missionID string) (*model.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate(missionID, func(m *model.Mission) error {
		if err := requireActive(m); err != nil {
			return err
		}
		if m.SettlementInitiatedAt == nil {
			now := s.now()
			m.SettlementInitiatedAt = &now
		}
		return nil
	})
}

// Reminder is a settlement reminder sent to a member who still owes money.
type Reminder struct {
	MissionID string
	MemberID  string
	Name      string
	Email     string
	Owes      decimal.Decimal
}

// SendReminders reminds members of initiated, unsettled missions who owe more
// than a cent and have an email. The first reminder goes out once the
// settlement has been pending longer than the reminder delay; after that a
// member is reminded at most once per reminder interval.
func (s *Service) SendReminders(now time.Time) ([]Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sent []Reminder
	for _, cur := range s.missions {
		if cur.IsSettled() || cur.SettledAt != nil || cur.SettlementInitiatedAt == nil {
			continue
		}
		if !cur.SettlementInitiatedAt.Before(now.Add(-s.reminderAfter)) {
			continue
		}

		var due []Reminder
		for _, mem := range balance.Compute(cur) {
			if !mem.Balance.LessThan(money.Cent.Neg()) || mem.Email == "" {
				continue
			}
			if mem.LastReminderSent != nil && !mem.LastReminderSent.Before(now.Add(-s.reminderInterval)) {
				continue
			}
			due = append(due, Reminder{
				MissionID: cur.ID,
				MemberID:  mem.ID,
				Name:      mem.Name,
				Email:     mem.Email,
				Owes:      mem.Balance.Neg(),
			})
		}
		if len(due) == 0 {
			continue
		}

		title := cur.Title
		_, err := s.mutate(cur.ID, func(m *model.Mission) error {
			for _, r := range due {
				i := memberIndex(m, r.MemberID)
				at := now
				m.Members[i].LastReminderSent = &at
			}
			return nil
		})
		if err != nil {
			return sent, err
		}
		for _, r := range due {
			s.notify(model.Notification{
				Type:    model.NotifyInfo,
				Title:   "Settlement Reminder",
				Message: fmt.Sprintf("Reminder sent to %s: %s owed in %s", r.Name, money.Format(r.Owes), title),
				Amount:  r.Owes,
			})
			s.record("remind", auditlog.ActionReminderSent, r.MissionID, r.MemberID,
				fmt.Sprintf("%s owes %s", r.Email, money.Format(r.Owes)))
		}
		sent = append(sent, due...)
	}
	if len(sent) > 0 {
		s.logger.Info("settlement reminders sent", zap.Int("count", len(sent)))
	}
	return sent, nil
}
