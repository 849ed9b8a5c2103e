package commands

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settleloop/settleloop/internal/accounts"
	"github.com/settleloop/settleloop/internal/auditlog"
	"github.com/settleloop/settleloop/internal/config"
	"github.com/settleloop/settleloop/internal/store"
)

func runSettleloop(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	t.Setenv(config.EnvLogLevel, "error")

	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runSettleloop(t, args...)
	require.NoError(t, err, "settleloop %s: %s", strings.Join(args, " "), out)
	return out
}

// newLedger initializes a ledger with the Cottage mission and Sarah as the
// current user.
func newLedger(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	mustRun(t, "init", dir, "--name", "Household", "--user", "Sarah")
	mustRun(t, "--root", dir, "mission", "create", "Cottage",
		"-m", "Sarah:sarah@example.com", "-m", "Teresa", "-m", "Mike:mike@example.com")
	return dir
}

func TestInit_CreatesLedger(t *testing.T) {
	dir := t.TempDir()
	out := mustRun(t, "init", dir, "--name", "Household")
	assert.Contains(t, out, `Initialized ledger "Household"`)

	for _, d := range []string{"import", filepath.Join("import", "processed"), "logs"} {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir())
	}

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, "Household", cfg.Ledger.Name)

	accts, err := accounts.Load(filepath.Join(dir, accounts.FileName))
	require.NoError(t, err)
	assert.Len(t, accts.All(), len(accounts.DefaultAccounts()))

	st, err := store.Load(filepath.Join(dir, "state.yaml"))
	require.NoError(t, err)
	assert.Empty(t, st.Missions)

	_, err = runSettleloop(t, "init", dir, "--name", "Again")
	assert.Error(t, err, "init must not overwrite a ledger")
}

func TestInit_RequiresName(t *testing.T) {
	_, err := runSettleloop(t, "init", t.TempDir())
	require.Error(t, err)
}

func TestCommandsWithoutLedgerFail(t *testing.T) {
	_, err := runSettleloop(t, "--root", t.TempDir(), "mission", "list")
	require.Error(t, err)
}

func TestExpenseBalancesSettle(t *testing.T) {
	dir := newLedger(t)

	out := mustRun(t, "--root", dir, "expense", "add", "cottage", "Dinner", "90")
	assert.Contains(t, out, "$90.00")
	mustRun(t, "--root", dir, "expense", "add", "Cottage", "Taxi", "$30", "--paid-by", "teresa")

	out = mustRun(t, "--root", dir, "balances", "Cottage")
	assert.Contains(t, out, "$50.00")
	assert.Contains(t, out, "-$10.00")
	assert.Contains(t, out, "-$40.00")

	out = mustRun(t, "--root", dir, "settle", "Cottage")
	assert.Contains(t, out, "Mike pays Sarah $40.00")
	assert.Contains(t, out, "Teresa pays Sarah $10.00")
	assert.Contains(t, out, "You (Sarah) send $0.00 and receive $50.00")

	out = mustRun(t, "--root", dir, "settle", "Cottage", "--confirm")
	assert.Contains(t, out, "Settled \"Cottage\": $50.00 received")
	assert.Contains(t, out, "Payment Received: Mike sent you $40.00 via e-Transfer")

	out = mustRun(t, "--root", dir, "balances", "Cottage")
	assert.Contains(t, out, "Cottage (settled)")
	assert.NotContains(t, out, "$50.00")

	_, err := runSettleloop(t, "--root", dir, "expense", "add", "Cottage", "Late", "5")
	assert.Error(t, err, "settled missions are frozen")

	entries, err := auditlog.Read(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	assert.Len(t, auditlog.Filter(entries, auditlog.ActionSettlementConfirmed), 1)

	st, err := store.Load(filepath.Join(dir, "state.yaml"))
	require.NoError(t, err)
	assert.Len(t, st.Transactions, 2)

	mustRun(t, "--root", dir, "settle", "Cottage", "--reopen")
	out = mustRun(t, "--root", dir, "balances", "Cottage")
	assert.Contains(t, out, "$50.00")
}

func TestExpenseAddSplits(t *testing.T) {
	dir := newLedger(t)

	mustRun(t, "--root", dir, "expense", "add", "Cottage", "Gas", "60",
		"--mode", "amount", "--share", "Sarah=45", "--share", "Mike=15", "--paid-by", "Mike")
	mustRun(t, "--root", dir, "expense", "add", "Cottage", "Groceries", "100",
		"--mode", "PERCENT", "--share", "Sarah=50%", "--share", "Teresa=50%")

	out := mustRun(t, "--root", dir, "balances", "Cottage")
	assert.Contains(t, out, "$5.00")
	assert.Contains(t, out, "-$50.00")
	assert.Contains(t, out, "$45.00")

	_, err := runSettleloop(t, "--root", dir, "expense", "add", "Cottage", "Bad", "60",
		"--mode", "AMOUNT", "--share", "Sarah=10", "--share", "Mike=10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "share-total")

	out = mustRun(t, "--root", dir, "expense", "list", "Cottage")
	assert.Equal(t, 2, strings.Count(out, "paid by"))
}

func TestMemberCommands(t *testing.T) {
	dir := newLedger(t)

	out := mustRun(t, "--root", dir, "member", "add", "Cottage", "Ann", "--email", "ann@example.com")
	assert.Contains(t, out, "Added Ann")
	mustRun(t, "--root", dir, "member", "remove", "Cottage", "ann")

	mustRun(t, "--root", dir, "expense", "add", "Cottage", "Dinner", "90")
	_, err := runSettleloop(t, "--root", dir, "member", "remove", "Cottage", "Sarah")
	assert.Error(t, err, "a payer cannot be removed")

	out = mustRun(t, "--root", dir, "mission", "list")
	assert.Contains(t, out, "Cottage")
	assert.Contains(t, out, "3 members")
}

func writeBankCSV(t *testing.T, dir string, date time.Time) {
	t.Helper()
	csv := fmt.Sprintf("id,account_id,type,amount,description,category,date,status\n"+
		"tx-hydro,chequing-1,bill,-120.00,HYDRO ONE BILL PAYMENT,Utilities,%s,completed\n"+
		"tx-coffee,chequing-1,charge,-4.50,TIM HORTONS,Dining,%s,completed\n",
		date.Format(time.DateOnly), date.Format(time.DateOnly))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "bank.csv"), []byte(csv), 0o644))
}

func TestRuleAndScan(t *testing.T) {
	dir := newLedger(t)

	_, err := runSettleloop(t, "--root", dir, "rule", "add", "Cottage", "--name", "Hydro")
	assert.Error(t, err, "a detection is required")

	out := mustRun(t, "--root", dir, "rule", "add", "Cottage", "--name", "Hydro", "--merchant", "hydro")
	assert.Contains(t, out, "Created rule")

	writeBankCSV(t, dir, time.Now().AddDate(0, 0, -2))
	out = mustRun(t, "--root", dir, "scan")
	assert.Contains(t, out, "Imported bank.csv: 2 new of 2 transactions")
	assert.Contains(t, out, "1 imported")
	assert.Contains(t, out, "+ Hydro $120.00")

	_, err = os.Stat(filepath.Join(dir, "import", "processed", "bank.csv"))
	require.NoError(t, err, "imported files move to processed/")

	out = mustRun(t, "--root", dir, "scan")
	assert.Contains(t, out, "0 imported")

	out = mustRun(t, "--root", dir, "balances", "Cottage")
	assert.Contains(t, out, "$80.00")

	out = mustRun(t, "--root", dir, "rule", "list", "Cottage")
	assert.Contains(t, out, "matched 1")

	st, err := store.Load(filepath.Join(dir, "state.yaml"))
	require.NoError(t, err)
	require.Len(t, st.Rules, 1)
	out = mustRun(t, "--root", dir, "rule", "toggle", st.Rules[0].ID)
	assert.Contains(t, out, "is now paused")
}

func TestBillsSend(t *testing.T) {
	dir := newLedger(t)
	today := time.Now().UTC()

	mustRun(t, "--root", dir, "pack", "create", "Cottage", "Utilities", "--day", fmt.Sprint(today.Day()))
	mustRun(t, "--root", dir, "rule", "add", "Cottage", "--name", "Hydro", "--merchant", "hydro", "--pack", "utilities")
	writeBankCSV(t, dir, today.AddDate(0, 0, -1))
	mustRun(t, "--root", dir, "scan")

	out := mustRun(t, "--root", dir, "bills", "total", "Cottage", "Utilities")
	assert.Contains(t, out, "$120.00 from 1 expense(s)")

	at := today.Format(time.DateOnly)
	out = mustRun(t, "--root", dir, "bills", "send", "Cottage", "--at", at)
	assert.Contains(t, out, "2 request(s)")
	assert.Contains(t, out, "Requested $40.00 from Teresa for Utilities")

	out = mustRun(t, "--root", dir, "bills", "send", "Cottage", "--at", at)
	assert.Contains(t, out, "No bill packs due.")

	out = mustRun(t, "--root", dir, "pack", "list", "Cottage")
	assert.Contains(t, out, today.Format("2006-01"))
}

func TestRemind(t *testing.T) {
	dir := newLedger(t)
	mustRun(t, "--root", dir, "expense", "add", "Cottage", "Dinner", "90")
	mustRun(t, "--root", dir, "settle", "Cottage", "--initiate")

	out := mustRun(t, "--root", dir, "remind")
	assert.Contains(t, out, "No reminders due.")

	later := time.Now().Add(72 * time.Hour).Format(time.RFC3339)
	out = mustRun(t, "--root", dir, "remind", "--at", later)
	assert.Contains(t, out, "Sent 1 reminder(s)")
	assert.Contains(t, out, "Settlement Reminder")
}

func TestGitTracking(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	mustRun(t, "init", dir, "--name", "Household", "--git")
	mustRun(t, "--root", dir, "mission", "create", "Cottage", "-m", "Sarah", "-m", "Mike")
	mustRun(t, "--root", dir, "expense", "add", "Cottage", "Dinner", "40", "--paid-by", "Sarah")

	log := exec.Command("git", "log", "--format=%s")
	log.Dir = dir
	out, err := log.Output()
	require.NoError(t, err)
	subjects := strings.Split(strings.TrimSpace(string(out)), "\n")
	assert.Equal(t, []string{"expense: add Dinner $40.00", "mission: create Cottage", "init: Initialize Household"}, subjects)
}
