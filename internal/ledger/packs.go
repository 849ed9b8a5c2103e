package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/settleloop/settleloop/internal/auditlog"
	"github.com/settleloop/settleloop/internal/billpack"
	"github.com/settleloop/settleloop/internal/id"
	"github.com/settleloop/settleloop/internal/model"
	"github.com/settleloop/settleloop/internal/money"
)

// BillPackParams describes a bill pack to create or replace.
type BillPackParams struct {
	MissionID              string
	Name                   string
	Description            string
	AutoSendMonthlyRequest bool
	RequestDayOfMonth      int
	SafetyLimit            decimal.Decimal
	Mode                   model.CollectionMode
}

func (s *Service) checkPack(packID string, p BillPackParams) error {
	if strings.TrimSpace(p.Name) == "" {
		return invalid(InvName, packID, "bill pack name is required")
	}
	if _, _, err := s.lookup(p.MissionID); err != nil {
		return err
	}
	if p.RequestDayOfMonth < 1 || p.RequestDayOfMonth > 31 {
		return invalid(InvSchedule, packID, "request day must be between 1 and 31, got %d", p.RequestDayOfMonth)
	}
	if p.SafetyLimit.IsNegative() {
		return invalid(InvBillPack, packID, "safety limit must not be negative")
	}
	switch p.Mode {
	case "", model.CollectRequestOnly, model.CollectSendRequest, model.CollectSendOnly:
	default:
		return invalid(InvBillPack, packID, "unknown collection mode %q", p.Mode)
	}
	return nil
}

func applyPackParams(pack *model.BillPack, p BillPackParams) {
	pack.MissionID = p.MissionID
	pack.Name = strings.TrimSpace(p.Name)
	pack.Description = p.Description
	pack.AutoSendMonthlyRequest = p.AutoSendMonthlyRequest
	pack.RequestDayOfMonth = p.RequestDayOfMonth
	pack.SafetyLimit = money.Round2(p.SafetyLimit)
	pack.Mode = p.Mode
	if pack.Mode == "" {
		pack.Mode = model.CollectRequestOnly
	}
}

// CreateBillPack adds an active bill pack to a mission.
func (s *Service) CreateBillPack(p BillPackParams) (model.BillPack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkPack("", p); err != nil {
		return model.BillPack{}, err
	}
	pack := model.BillPack{ID: s.ids(id.BillPack), Status: model.RuleActive, CreatedAt: s.now()}
	applyPackParams(&pack, p)
	s.packs = append(s.packs, pack)
	s.logger.Info("bill pack created", zap.String("pack_id", pack.ID), zap.String("mission_id", pack.MissionID))
	return pack, nil
}

// UpdateBillPack replaces a pack's settings, keeping its send history.
func (s *Service) UpdateBillPack(packID string, p BillPackParams) (model.BillPack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.packIndex(packID)
	if i < 0 {
		return model.BillPack{}, notFound(KindBillPack, packID)
	}
	if p.MissionID == "" {
		p.MissionID = s.packs[i].MissionID
	}
	if p.MissionID != s.packs[i].MissionID {
		return model.BillPack{}, invalid(InvMission, packID, "a bill pack cannot move to another mission")
	}
	if err := s.checkPack(packID, p); err != nil {
		return model.BillPack{}, err
	}
	applyPackParams(&s.packs[i], p)
	return s.packs[i], nil
}

// DeleteBillPack removes a pack and detaches its rules, which keep running.
func (s *Service) DeleteBillPack(packID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.packIndex(packID)
	if i < 0 {
		return notFound(KindBillPack, packID)
	}
	s.packs = append(s.packs[:i], s.packs[i+1:]...)
	for j := range s.rules {
		if s.rules[j].BillPackID == packID {
			s.rules[j].BillPackID = ""
		}
	}
	return nil
}

// BillPack returns a pack by id.
func (s *Service) BillPack(packID string) (model.BillPack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pack, ok := s.pack(packID)
	if !ok {
		return model.BillPack{}, notFound(KindBillPack, packID)
	}
	return pack, nil
}

// BillPacksForMission returns the packs of a mission.
func (s *Service) BillPacksForMission(missionID string) []model.BillPack {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.BillPack
	for _, p := range s.packs {
		if p.MissionID == missionID {
			out = append(out, p)
		}
	}
	return out
}

func (s *Service) pack(packID string) (model.BillPack, bool) {
	if i := s.packIndex(packID); i >= 0 {
		return s.packs[i], true
	}
	return model.BillPack{}, false
}

func (s *Service) packIndex(packID string) int {
	for i, p := range s.packs {
		if p.ID == packID {
			return i
		}
	}
	return -1
}

// MonthlyTotal aggregates a pack's rule-imported expenses for the month
// containing periodStart.
func (s *Service) MonthlyTotal(packID string, periodStart time.Time) (billpack.Total, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pack, ok := s.pack(packID)
	if !ok {
		return billpack.Total{}, notFound(KindBillPack, packID)
	}
	m, _, err := s.lookup(pack.MissionID)
	if err != nil {
		return billpack.Total{}, err
	}
	return billpack.MonthlyTotal(pack, s.rules, m, periodStart), nil
}

// PackFailure records a bill pack whose monthly requests could not be sent.
// Nothing from a failed pack reaches the feed.
type PackFailure struct {
	PackID string
	Err    error
}

// MonthlyRun summarises one ProcessMonthlyRequests pass.
type MonthlyRun struct {
	Outcomes []billpack.Outcome
	Failures []PackFailure
}

// ProcessMonthlyRequests runs the monthly collection for every pack of the
// mission that is due at now. Totals over a pack's safety limit are held for
// review and nothing is sent. A pack that fails is reported and the run
// continues with the next one.
func (s *Service) ProcessMonthlyRequests(missionID string, now time.Time) (MonthlyRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, _, err := s.lookup(missionID)
	if err != nil {
		return MonthlyRun{}, err
	}

	var run MonthlyRun
	for _, pack := range s.packs {
		if pack.MissionID != missionID || !billpack.Due(pack, now) {
			continue
		}
		total := billpack.MonthlyTotal(pack, s.rules, m, now)
		out := billpack.Decide(pack, m, total)
		if out.Review {
			s.holdForReview(pack, out)
		} else if err := s.sendRequests(pack, out, now); err != nil {
			s.logger.Error("monthly requests failed",
				zap.String("pack_id", pack.ID),
				zap.String("period", out.Period),
				zap.Error(err))
			run.Failures = append(run.Failures, PackFailure{PackID: pack.ID, Err: err})
			continue
		}
		run.Outcomes = append(run.Outcomes, out)
	}
	return run, nil
}

// ApproveMonthlyRequest sends a period that was held for review, regardless
// of the pack's safety limit. Only the period flagged at now can be approved.
func (s *Service) ApproveMonthlyRequest(packID string, now time.Time) (billpack.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pack, ok := s.pack(packID)
	if !ok {
		return billpack.Outcome{}, notFound(KindBillPack, packID)
	}
	m, _, err := s.lookup(pack.MissionID)
	if err != nil {
		return billpack.Outcome{}, err
	}
	period := billpack.PeriodKey(now)
	if pack.LastRequestPeriod == period {
		return billpack.Outcome{}, invalid(InvReview, packID, "bill pack already sent for %s", period)
	}
	if pack.ReviewPeriod != period {
		return billpack.Outcome{}, invalid(InvReview, packID, "bill pack has no request for %s awaiting review", period)
	}

	unlimited := pack
	unlimited.SafetyLimit = decimal.Zero
	out := billpack.Decide(unlimited, m, billpack.MonthlyTotal(pack, s.rules, m, now))
	if err := s.sendRequests(pack, out, now); err != nil {
		return out, err
	}
	return out, nil
}

func (s *Service) holdForReview(pack model.BillPack, out billpack.Outcome) {
	s.packs[s.packIndex(pack.ID)].ReviewPeriod = out.Period

	msg := fmt.Sprintf("%s total %s exceeds the safety limit of %s. Review before sending.",
		pack.Name, money.Format(out.Total.Total), money.Format(pack.SafetyLimit))
	s.notify(model.Notification{
		Type:    model.NotifyInfo,
		Title:   "Monthly Request Needs Review",
		Message: msg,
		Amount:  out.Total.Total,
	})
	s.record("bills", auditlog.ActionMonthlyReviewRequired, pack.MissionID, pack.ID, msg)
	s.logger.Warn("monthly request held for review",
		zap.String("pack_id", pack.ID),
		zap.String("period", out.Period),
		zap.String("total", out.Total.Total.StringFixed(2)),
		zap.String("limit", pack.SafetyLimit.StringFixed(2)))
}

// sendRequests posts every request of out to the feed in one merge, so a
// pack is either fully requested or not at all.
func (s *Service) sendRequests(pack model.BillPack, out billpack.Outcome, now time.Time) error {
	txs := make([]model.BankTransaction, 0, len(out.Requests))
	for _, req := range out.Requests {
		txs = append(txs, model.BankTransaction{
			AccountID:    s.depositAccount,
			Type:         model.TxRequest,
			Amount:       req.Amount,
			Description:  billpack.RequestDescription(pack),
			Category:     "Transfer",
			Date:         now,
			Status:       model.TxPending,
			Counterparty: req.Name,
		})
	}
	if err := s.stage(txs); err != nil {
		return fmt.Errorf("requesting %s: %w", pack.Name, err)
	}
	if err := s.post(txs); err != nil {
		return fmt.Errorf("requesting %s: %w", pack.Name, err)
	}

	for _, req := range out.Requests {
		s.notify(model.Notification{
			Type:    model.NotifyInfo,
			Title:   "Monthly Request Sent",
			Message: fmt.Sprintf("Requested %s from %s for %s", money.Format(req.Amount), req.Name, pack.Name),
			Amount:  req.Amount,
		})
		s.record("bills", auditlog.ActionMonthlyRequestSent, pack.MissionID, pack.ID,
			fmt.Sprintf("%s requested from %s", money.Format(req.Amount), req.Name))
	}

	i := s.packIndex(pack.ID)
	at := now
	s.packs[i].LastRequestSentAt = &at
	s.packs[i].LastRequestPeriod = out.Period
	s.packs[i].ReviewPeriod = ""
	s.logger.Info("monthly requests sent",
		zap.String("pack_id", pack.ID),
		zap.String("period", out.Period),
		zap.Int("requests", len(out.Requests)))
	return nil
}
