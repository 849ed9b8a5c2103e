// Package ledger is the domain service that owns missions, auto-split rules
// and bill packs. Every mutation is applied to a copy of the mission, balances
// are recomputed and checked for conservation, and only then is the copy
// committed.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/settleloop/settleloop/internal/accounts"
	"github.com/settleloop/settleloop/internal/auditlog"
	"github.com/settleloop/settleloop/internal/autosplit"
	"github.com/settleloop/settleloop/internal/balance"
	"github.com/settleloop/settleloop/internal/feed"
	"github.com/settleloop/settleloop/internal/id"
	"github.com/settleloop/settleloop/internal/model"
	"github.com/settleloop/settleloop/internal/notify"
)

// Feed is the bank transaction collaborator.
type Feed interface {
	Transactions() []model.BankTransaction
	Append(tx model.BankTransaction) (model.BankTransaction, error)
	Merge(txs []model.BankTransaction) int
}

// AccountCatalog looks up bank accounts.
type AccountCatalog interface {
	Get(id string) (model.Account, bool)
}

// Service owns all ledger state. It is safe for concurrent use; mutations
// are serialised.
type Service struct {
	mu       sync.Mutex
	missions []*model.Mission
	rules    []model.AutoSplitRule
	packs    []model.BillPack

	feed     Feed
	notifier notify.Notifier
	accounts AccountCatalog
	audit    auditlog.Buffer
	logger   *zap.Logger
	now      func() time.Time
	ids      id.Generator

	depositAccount   string
	windowDays       int
	reminderAfter    time.Duration
	reminderInterval time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithFeed sets the bank transaction feed.
func WithFeed(f Feed) Option {
	return func(s *Service) { s.feed = f }
}

// WithNotifier sets the notification sink.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithAccounts sets the bank account catalog used to validate rules and
// describe deposits.
func WithAccounts(a AccountCatalog) Option {
	return func(s *Service) { s.accounts = a }
}

// WithIDs sets the id generator.
func WithIDs(gen id.Generator) Option {
	return func(s *Service) { s.ids = gen }
}

// WithDepositAccount sets the account settlement deposits and monthly
// requests are posted to.
func WithDepositAccount(accountID string) Option {
	return func(s *Service) { s.depositAccount = accountID }
}

// WithScanWindow sets how many days back CheckTransactions looks.
func WithScanWindow(days int) Option {
	return func(s *Service) { s.windowDays = days }
}

// WithReminders sets the delay before the first settlement reminder and the
// minimum gap between reminders.
func WithReminders(after, interval time.Duration) Option {
	return func(s *Service) {
		s.reminderAfter = after
		s.reminderInterval = interval
	}
}

// New creates a Service with no missions.
func New(opts ...Option) *Service {
	s := &Service{
		logger:           zap.NewNop(),
		now:              time.Now,
		ids:              id.New,
		depositAccount:   accounts.DefaultAccountID,
		windowDays:       autosplit.DefaultWindowDays,
		reminderAfter:    48 * time.Hour,
		reminderInterval: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.feed == nil {
		s.feed = feed.NewMemory(nil, feed.WithIDs(s.ids), feed.WithClock(s.now))
	}
	if s.notifier == nil {
		s.notifier = notify.NewOutbox(s.ids, s.now)
	}
	if s.accounts == nil {
		s.accounts = accounts.NewService(accounts.DefaultAccounts())
	}
	return s
}

// Feed returns the transaction feed the service reads and appends to.
func (s *Service) Feed() Feed {
	return s.feed
}

// DrainAudit returns the audit entries recorded since the last drain.
func (s *Service) DrainAudit() []auditlog.Entry {
	return s.audit.Drain()
}

func (s *Service) record(actor, action, missionID, ref, details string) {
	s.audit.Record(auditlog.Entry{
		Timestamp: s.now(),
		Actor:     actor,
		Action:    action,
		Details:   details,
		MissionID: missionID,
		Ref:       ref,
	})
}

func (s *Service) notify(n model.Notification) {
	if _, err := s.notifier.Notify(n); err != nil {
		s.logger.Warn("notification dropped", zap.String("title", n.Title), zap.Error(err))
	}
}

// stage assigns feed ids to txs and checks none is already in the feed, so a
// following Merge adds all of them. Callers hold s.mu.
func (s *Service) stage(txs []model.BankTransaction) error {
	seen := map[string]bool{}
	for _, tx := range s.feed.Transactions() {
		seen[tx.ID] = true
	}
	for i := range txs {
		txs[i].ID = s.ids(id.Transaction)
		if seen[txs[i].ID] {
			return fmt.Errorf("transaction %s already in feed", txs[i].ID)
		}
		seen[txs[i].ID] = true
	}
	return nil
}

// post merges staged transactions into the feed.
func (s *Service) post(txs []model.BankTransaction) error {
	if added := s.feed.Merge(txs); added != len(txs) {
		return fmt.Errorf("posting transactions: %d of %d added to feed", added, len(txs))
	}
	return nil
}

// lookup returns the stored mission and its index. Callers hold s.mu.
func (s *Service) lookup(missionID string) (*model.Mission, int, error) {
	for i, m := range s.missions {
		if m.ID == missionID {
			return m, i, nil
		}
	}
	return nil, -1, notFound(KindMission, missionID)
}

// mutate applies fn to a copy of the mission, recomputes balances, checks
// conservation and commits. Nothing changes when fn or the check fails.
// Callers hold s.mu.
func (s *Service) mutate(missionID string, fn func(m *model.Mission) error) (*model.Mission, error) {
	cur, idx, err := s.lookup(missionID)
	if err != nil {
		return nil, err
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Members = balance.Compute(next)
	if err := balance.Verify(next.Members); err != nil {
		s.logger.Error("mutation rejected", zap.String("mission_id", missionID), zap.Error(err))
		return nil, err
	}
	s.missions[idx] = next
	return next.Clone(), nil
}

func requireActive(m *model.Mission) error {
	if m.IsSettled() {
		return ErrSettled
	}
	return nil
}
