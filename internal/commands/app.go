package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/settleloop/settleloop/internal/accounts"
	"github.com/settleloop/settleloop/internal/auditlog"
	"github.com/settleloop/settleloop/internal/config"
	"github.com/settleloop/settleloop/internal/gitops"
	"github.com/settleloop/settleloop/internal/ledger"
	"github.com/settleloop/settleloop/internal/model"
	"github.com/settleloop/settleloop/internal/money"
	"github.com/settleloop/settleloop/internal/notify"
	"github.com/settleloop/settleloop/internal/store"
)

// app is one CLI invocation against a ledger root: config, state and the
// service rebuilt from the snapshot.
type app struct {
	root     string
	cfg      *config.Config
	logger   *zap.Logger
	accounts *accounts.Service
	outbox   *notify.Outbox
	svc      *ledger.Service
	out      io.Writer
}

func openApp(root string, out io.Writer) (*app, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	cfg, err := config.LoadWithEnv(filepath.Join(root, config.FileName), filepath.Join(root, ".env"))
	if err != nil {
		return nil, fmt.Errorf("loading config (run `settleloop init` first?): %w", err)
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	accts, err := accounts.Load(config.Resolve(root, cfg.Paths.Accounts))
	if err != nil {
		return nil, err
	}
	st, err := store.Load(config.Resolve(root, cfg.Paths.State))
	if err != nil {
		return nil, err
	}

	outbox := notify.NewOutbox(nil, nil)
	svc := ledger.New(
		ledger.WithLogger(logger.Named("ledger")),
		ledger.WithAccounts(accts),
		ledger.WithNotifier(outbox),
		ledger.WithDepositAccount(cfg.Settlement.DepositAccount),
		ledger.WithScanWindow(cfg.AutoSplit.ScanWindowDays),
		ledger.WithReminders(cfg.Settlement.ReminderAfter(), cfg.Settlement.ReminderInterval()),
	)
	if err := svc.Restore(st); err != nil {
		return nil, err
	}
	return &app{root: root, cfg: cfg, logger: logger, accounts: accts, outbox: outbox, svc: svc, out: out}, nil
}

// newLogger builds the zap logger selected by the log section. Logs go to
// stderr so command output stays clean.
func newLogger(lc config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	zc := zap.NewDevelopmentConfig()
	if lc.Format == "json" {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.DisableStacktrace = true
	return zc.Build()
}

// commit persists the snapshot, flushes the audit log and, when the root is
// a git repository, records the change as a commit.
func (a *app) commit(kind, format string, args ...any) error {
	defer func() { _ = a.logger.Sync() }()

	if err := store.Save(config.Resolve(a.root, a.cfg.Paths.State), a.svc.Snapshot()); err != nil {
		return err
	}
	if err := auditlog.Append(config.Resolve(a.root, a.cfg.Paths.LogDir), a.svc.DrainAudit()); err != nil {
		a.logger.Warn("audit log not written", zap.Error(err))
	}
	a.printNotifications()

	if !gitops.IsRepo(a.root) {
		return nil
	}
	author := gitops.Author{Name: a.cfg.Git.AuthorName, Email: a.cfg.Git.AuthorEmail}
	hash, err := gitops.CommitAll(a.root, gitops.Message(kind, format, args...), author)
	if errors.Is(err, gitops.ErrNothingToCommit) {
		return nil
	}
	if err != nil {
		return err
	}
	a.logger.Debug("ledger committed", zap.String("commit", hash))
	return nil
}

func (a *app) printNotifications() {
	for _, n := range a.outbox.Drain() {
		title := color.New(color.Bold).Sprint(n.Title)
		fmt.Fprintf(a.out, "%s %s: %s\n", notificationIcon(n.Type), title, n.Message)
	}
}

func notificationIcon(t model.NotificationType) string {
	switch t {
	case model.NotifyDeposit:
		return color.GreenString("+")
	case model.NotifyPayment:
		return color.RedString("-")
	default:
		return color.CyanString("*")
	}
}

// mission resolves ref as a mission id or, case-insensitively, a title.
func (a *app) mission(ref string) (*model.Mission, error) {
	if m, err := a.svc.Mission(ref); err == nil {
		return m, nil
	}
	var found *model.Mission
	for _, m := range a.svc.Missions() {
		if strings.EqualFold(m.Title, ref) {
			if found != nil {
				return nil, fmt.Errorf("more than one mission is titled %q, use its id", ref)
			}
			found = m
		}
	}
	if found == nil {
		return nil, &ledger.NotFoundError{Kind: ledger.KindMission, ID: ref}
	}
	return found, nil
}

func (a *app) members(missionID string, refs []string) ([]string, error) {
	ids := make([]string, len(refs))
	for i, ref := range refs {
		mem, err := a.svc.ResolveMember(missionID, strings.TrimSpace(ref))
		if err != nil {
			return nil, err
		}
		ids[i] = mem.ID
	}
	return ids, nil
}

// currentUser resolves who is running the CLI: the --as flag, else the
// configured current user.
func (a *app) currentUser(missionID, as string) (model.Member, error) {
	ref := as
	if ref == "" {
		ref = a.cfg.Ledger.CurrentUser
	}
	if ref == "" {
		return model.Member{}, fmt.Errorf("no current user: set ledger.current_user, %s or pass --as", config.EnvCurrentUser)
	}
	return a.svc.ResolveMember(missionID, ref)
}

func signed(amount string, positive bool) string {
	if positive {
		return color.GreenString(amount)
	}
	return color.RedString(amount)
}

func formatBalance(m model.Member) string {
	s := money.Format(m.Balance)
	switch {
	case m.Balance.GreaterThanOrEqual(money.Cent):
		return signed(s, true)
	case m.Balance.LessThanOrEqual(money.Cent.Neg()):
		return signed(s, false)
	default:
		return s
	}
}

// parseTime accepts YYYY-MM-DD or RFC 3339; empty means now.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}
