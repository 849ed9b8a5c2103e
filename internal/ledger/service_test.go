package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settleloop/settleloop/internal/balance"
	"github.com/settleloop/settleloop/internal/feed"
	"github.com/settleloop/settleloop/internal/id"
	"github.com/settleloop/settleloop/internal/model"
	"github.com/settleloop/settleloop/internal/notify"
	"github.com/settleloop/settleloop/internal/split"
)

var testNow = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	svc    *Service
	outbox *notify.Outbox
	feed   *feed.Memory
	ids    id.Generator

	missionID           string
	sarah, teresa, mike string
}

func newFixture(t *testing.T, txs ...model.BankTransaction) *fixture {
	t.Helper()
	gen := id.Sequence()
	clock := func() time.Time { return testNow }
	f := &fixture{
		outbox: notify.NewOutbox(gen, clock),
		feed:   feed.NewMemory(txs, feed.WithIDs(gen), feed.WithClock(clock)),
		ids:    gen,
	}
	f.svc = New(
		WithIDs(gen),
		WithClock(clock),
		WithFeed(f.feed),
		WithNotifier(f.outbox),
		WithReminders(48*time.Hour, 24*time.Hour),
	)
	m, err := f.svc.CreateMission("Cottage Weekend", []MemberParams{
		{Name: "Sarah", Email: "sarah@example.com"},
		{Name: "Teresa"},
		{Name: "Mike", Email: "mike@example.com"},
	})
	require.NoError(t, err)
	f.missionID = m.ID
	f.sarah, f.teresa, f.mike = m.Members[0].ID, m.Members[1].ID, m.Members[2].ID
	return f
}

func (f *fixture) everyone() []string { return []string{f.sarah, f.teresa, f.mike} }

// addTrip records the dinner and taxi used by most tests:
// Sarah +50, Teresa -10, Mike -40.
func (f *fixture) addTrip(t *testing.T) {
	t.Helper()
	_, err := f.svc.AddExpense(f.missionID, ExpenseParams{Title: "Dinner", Amount: d("90"), PaidBy: f.sarah, Participants: f.everyone()})
	require.NoError(t, err)
	_, err = f.svc.AddExpense(f.missionID, ExpenseParams{Title: "Taxi", Amount: d("30"), PaidBy: f.teresa, Participants: f.everyone()})
	require.NoError(t, err)
}

func (f *fixture) balances(t *testing.T) map[string]string {
	t.Helper()
	members, err := f.svc.Balances(f.missionID)
	require.NoError(t, err)
	out := map[string]string{}
	for _, m := range members {
		out[m.Name] = m.Balance.StringFixed(2)
	}
	assert.True(t, balance.Sum(members).IsZero(), "balances must sum to zero")
	return out
}

func TestCreateMission(t *testing.T) {
	f := newFixture(t)

	m, err := f.svc.Mission(f.missionID)
	require.NoError(t, err)
	assert.Equal(t, "Cottage Weekend", m.Title)
	assert.Equal(t, model.MissionActive, m.Status)
	assert.Equal(t, []string{"mem-001", "mem-002", "mem-003"}, m.MemberIDs())
	assert.Len(t, f.svc.Missions(), 1)

	_, err = f.svc.CreateMission("  ", nil)
	var ve *split.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, InvTitle, ve.Invariant)

	_, err = f.svc.CreateMission("Dupes", []MemberParams{{Name: "Ann"}, {Name: "ann"}})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, split.InvDuplicate, ve.Invariant)
}

func TestBalancesAndPlan(t *testing.T) {
	f := newFixture(t)
	f.addTrip(t)

	assert.Equal(t, map[string]string{"Sarah": "50.00", "Teresa": "-10.00", "Mike": "-40.00"}, f.balances(t))

	plan, err := f.svc.SettlementPlan(f.missionID)
	require.NoError(t, err)
	require.Len(t, plan.Transfers, 2)
	assert.Equal(t, f.mike, plan.Transfers[0].From)
	assert.Equal(t, f.sarah, plan.Transfers[0].To)
	assert.Equal(t, "40.00", plan.Transfers[0].Amount.StringFixed(2))
	assert.Equal(t, f.teresa, plan.Transfers[1].From)
	assert.Equal(t, "10.00", plan.Transfers[1].Amount.StringFixed(2))
	assert.True(t, plan.Net.IsZero())

	view, err := f.svc.SettlementView(f.missionID, f.mike)
	require.NoError(t, err)
	assert.Len(t, view.Sends, 1)
	assert.Empty(t, view.Receives)
	assert.Equal(t, "40.00", view.TotalSending.StringFixed(2))
}

func TestAddExpenseModes(t *testing.T) {
	f := newFixture(t)

	e, err := f.svc.AddExpense(f.missionID, ExpenseParams{
		Title: "Groceries", Amount: d("100"), PaidBy: f.sarah, Mode: model.SplitPercent,
		Shares: []model.Share{
			{MemberID: f.sarah, Percent: d("33.33")},
			{MemberID: f.teresa, Percent: d("33.33")},
			{MemberID: f.mike, Percent: d("33.34")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "33.34", e.Shares[2].Amount.StringFixed(2))
	assert.Equal(t, testNow, e.CreatedAt)

	_, err = f.svc.AddExpense(f.missionID, ExpenseParams{
		Title: "Gas", Amount: d("60"), PaidBy: f.mike, Mode: model.SplitAmount,
		Shares: []model.Share{{MemberID: f.sarah, Amount: d("45")}, {MemberID: f.mike, Amount: d("15")}},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"Sarah": "21.67", "Teresa": "-33.33", "Mike": "11.66"}, f.balances(t))
}

func TestAddExpenseRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name      string
		params    ExpenseParams
		invariant string
	}{
		{"missing title", ExpenseParams{Amount: d("10"), PaidBy: f.sarah, Participants: f.everyone()}, InvTitle},
		{"no participants", ExpenseParams{Title: "x", Amount: d("10"), PaidBy: f.sarah}, split.InvParticipants},
		{"payer outside mission", ExpenseParams{Title: "x", Amount: d("10"), PaidBy: "mem-999", Participants: f.everyone()}, split.InvPayer},
		{"share outside mission", ExpenseParams{Title: "x", Amount: d("10"), PaidBy: f.sarah, Participants: []string{f.sarah, "mem-999"}}, split.InvMember},
		{"amount shares miss total", ExpenseParams{
			Title: "x", Amount: d("10"), PaidBy: f.sarah, Mode: model.SplitAmount,
			Shares: []model.Share{{MemberID: f.sarah, Amount: d("4")}, {MemberID: f.mike, Amount: d("4")}},
		}, split.InvShareTotal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddExpense(f.missionID, tt.params)
			var ve *split.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.invariant, ve.Invariant)
		})
	}

	m, err := f.svc.Mission(f.missionID)
	require.NoError(t, err)
	assert.Empty(t, m.Expenses, "rejected expenses must not be recorded")
}

func TestUpdateAndRemoveExpense(t *testing.T) {
	f := newFixture(t)
	f.addTrip(t)
	m, err := f.svc.Mission(f.missionID)
	require.NoError(t, err)
	dinner := m.Expenses[0]

	updated, err := f.svc.UpdateExpense(f.missionID, dinner.ID, ExpenseParams{
		Title: "Dinner", Amount: d("60"), PaidBy: f.sarah, Participants: []string{f.sarah, f.mike},
	})
	require.NoError(t, err)
	assert.Equal(t, dinner.ID, updated.ID)
	assert.Equal(t, dinner.CreatedAt, updated.CreatedAt)
	assert.Equal(t, map[string]string{"Sarah": "20.00", "Teresa": "20.00", "Mike": "-40.00"}, f.balances(t))

	require.NoError(t, f.svc.RemoveExpense(f.missionID, dinner.ID))
	assert.Equal(t, map[string]string{"Sarah": "-10.00", "Teresa": "20.00", "Mike": "-10.00"}, f.balances(t))

	err = f.svc.RemoveExpense(f.missionID, dinner.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Mission("msn-404")
	require.ErrorIs(t, err, ErrNotFound)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, KindMission, nf.Kind)

	_, err = f.svc.AddExpense("msn-404", ExpenseParams{Title: "x", Amount: d("1"), PaidBy: f.sarah, Participants: f.everyone()})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Rule("rule-404")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.BillPack("pack-404")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.SettlementView(f.missionID, "mem-404")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.svc.DeleteMission("msn-404"), ErrNotFound)
}

func TestMembers(t *testing.T) {
	f := newFixture(t)
	f.addTrip(t)

	ann, err := f.svc.AddMember(f.missionID, MemberParams{Name: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, "0.00", f.balances(t)["Ann"])

	_, err = f.svc.AddMember(f.missionID, MemberParams{Name: "SARAH"})
	var ve *split.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, split.InvDuplicate, ve.Invariant)

	mem, err := f.svc.ResolveMember(f.missionID, "mike")
	require.NoError(t, err)
	assert.Equal(t, f.mike, mem.ID)

	renamed, err := f.svc.UpdateMember(f.missionID, ann.ID, MemberParams{Name: "Annie", Email: "annie@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Annie", renamed.Name)

	require.NoError(t, f.svc.RemoveMember(f.missionID, ann.ID))
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AddExpense(f.missionID, ExpenseParams{Title: "Dinner", Amount: d("90"), PaidBy: f.sarah, Participants: f.everyone()})
	require.NoError(t, err)

	err = f.svc.RemoveMember(f.missionID, f.sarah)
	var ve *split.ValidationError
	require.ErrorAs(t, err, &ve, "a payer cannot leave")
	assert.Equal(t, split.InvPayer, ve.Invariant)

	equal, err := f.svc.CreateRule(RuleParams{
		MissionID: f.missionID, Name: "Hydro", AccountID: "chequing-1",
		Detection: model.MerchantDetection("hydro"), PaidBy: f.sarah, Participants: f.everyone(),
	})
	require.NoError(t, err)
	fixed, err := f.svc.CreateRule(RuleParams{
		MissionID: f.missionID, Name: "Internet", AccountID: "chequing-1",
		Detection: model.MerchantDetection("rogers"), PaidBy: f.sarah, Participants: []string{f.teresa, f.mike},
		Mode: model.SplitAmount, SplitValues: []decimal.Decimal{d("40"), d("40")},
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveMember(f.missionID, f.mike))

	// Mike's share now weighs nothing and Sarah absorbs it.
	assert.Equal(t, map[string]string{"Sarah": "30.00", "Teresa": "-30.00"}, f.balances(t))

	r, err := f.svc.Rule(equal.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{f.sarah, f.teresa}, r.Participants)
	assert.True(t, r.IsActive())

	r, err = f.svc.Rule(fixed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RulePaused, r.Status)
	assert.Equal(t, []string{f.teresa}, r.Participants)
}

func TestSettledMissionIsFrozen(t *testing.T) {
	f := newFixture(t)
	f.addTrip(t)

	m, err := f.svc.MarkSettled(f.missionID)
	require.NoError(t, err)
	assert.True(t, m.IsSettled())
	require.NotNil(t, m.SettledAt)
	assert.Equal(t, map[string]string{"Sarah": "0.00", "Teresa": "0.00", "Mike": "0.00"}, f.balances(t))

	plan, err := f.svc.SettlementPlan(f.missionID)
	require.NoError(t, err)
	assert.Empty(t, plan.Transfers)

	_, err = f.svc.AddExpense(f.missionID, ExpenseParams{Title: "Late", Amount: d("5"), PaidBy: f.sarah, Participants: f.everyone()})
	assert.ErrorIs(t, err, ErrSettled)
	_, err = f.svc.MarkSettled(f.missionID)
	assert.ErrorIs(t, err, ErrSettled)

	m, err = f.svc.Reopen(f.missionID)
	require.NoError(t, err)
	assert.Equal(t, model.MissionActive, m.Status)
	assert.Nil(t, m.SettledAt)
	assert.Equal(t, map[string]string{"Sarah": "50.00", "Teresa": "-10.00", "Mike": "-40.00"}, f.balances(t))
}

func TestConfirmSettlement(t *testing.T) {
	f := newFixture(t)
	f.addTrip(t)

	conf, err := f.svc.ConfirmSettlement(f.missionID, f.sarah)
	require.NoError(t, err)
	require.Len(t, conf.Transactions, 2)
	assert.Equal(t, "50.00", conf.View.TotalReceiving.StringFixed(2))

	deposit := conf.Transactions[0]
	assert.Equal(t, model.TxDeposit, deposit.Type)
	assert.Equal(t, "E-Transfer from Mike", deposit.Description)
	assert.Equal(t, "chequing-1", deposit.AccountID)
	assert.Equal(t, "40.00", deposit.Amount.StringFixed(2))
	assert.Len(t, f.feed.Transactions(), 2)

	notes := f.outbox.Drain()
	require.Len(t, notes, 2)
	assert.Equal(t, model.NotifyDeposit, notes[0].Type)
	assert.Equal(t, "Payment Received", notes[0].Title)
	assert.Equal(t, "Mike sent you $40.00 via e-Transfer. Deposited to account ending in 4291", notes[0].Message)

	m, err := f.svc.Mission(f.missionID)
	require.NoError(t, err)
	assert.True(t, m.IsSettled())

	audit := f.svc.DrainAudit()
	require.Len(t, audit, 1)
	assert.Equal(t, "settlement_confirmed", audit[0].Action)

	_, err = f.svc.ConfirmSettlement(f.missionID, f.sarah)
	assert.ErrorIs(t, err, ErrSettled)
}

func TestConfirmSettlementWritesNothingOnFailure(t *testing.T) {
	f := newFixture(t)
	f.addTrip(t)

	taken := f.ids(id.Transaction)
	f.svc.ids = func(string) string { return taken }
	_, err := f.feed.Append(model.BankTransaction{ID: taken, AccountID: "chequing-1", Amount: d("-1")})
	require.NoError(t, err)

	_, err = f.svc.ConfirmSettlement(f.missionID, f.sarah)
	require.Error(t, err)

	assert.Len(t, f.feed.Transactions(), 1)
	assert.Empty(t, f.outbox.Drain())
	assert.Empty(t, f.svc.DrainAudit())
	m, err := f.svc.Mission(f.missionID)
	require.NoError(t, err)
	assert.False(t, m.IsSettled())
	assert.Equal(t, map[string]string{"Sarah": "50.00", "Teresa": "-10.00", "Mike": "-40.00"}, f.balances(t))
}

func TestConfirmSettlementAsDebtor(t *testing.T) {
	f := newFixture(t)
	f.addTrip(t)

	conf, err := f.svc.ConfirmSettlement(f.missionID, f.mike)
	require.NoError(t, err)
	require.Len(t, conf.Transactions, 1)
	tx := conf.Transactions[0]
	assert.Equal(t, model.TxWithdrawal, tx.Type)
	assert.Equal(t, "-40.00", tx.Amount.StringFixed(2))
	assert.Equal(t, "E-Transfer to Sarah", tx.Description)

	notes := f.outbox.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, "You sent $40.00 to Sarah via e-Transfer", notes[0].Message)
}

func TestSendReminders(t *testing.T) {
	f := newFixture(t)
	f.addTrip(t)

	sent, err := f.svc.SendReminders(testNow.Add(72 * time.Hour))
	require.NoError(t, err)
	assert.Empty(t, sent, "nothing is sent before settlement is initiated")

	m, err := f.svc.InitiateSettlement(f.missionID)
	require.NoError(t, err)
	require.NotNil(t, m.SettlementInitiatedAt)

	sent, err = f.svc.SendReminders(testNow.Add(47 * time.Hour))
	require.NoError(t, err)
	assert.Empty(t, sent)

	sent, err = f.svc.SendReminders(testNow.Add(49 * time.Hour))
	require.NoError(t, err)
	require.Len(t, sent, 1, "Teresa has no email")
	assert.Equal(t, f.mike, sent[0].MemberID)
	assert.Equal(t, "40.00", sent[0].Owes.StringFixed(2))

	sent, err = f.svc.SendReminders(testNow.Add(60 * time.Hour))
	require.NoError(t, err)
	assert.Empty(t, sent, "reminded within the interval")

	sent, err = f.svc.SendReminders(testNow.Add(74 * time.Hour))
	require.NoError(t, err)
	assert.Len(t, sent, 1)

	notes := f.outbox.Drain()
	require.Len(t, notes, 2)
	assert.Equal(t, "Settlement Reminder", notes[0].Title)
}

func TestDeleteMissionCascades(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateRule(RuleParams{
		MissionID: f.missionID, Name: "Hydro", AccountID: "chequing-1",
		Detection: model.MerchantDetection("hydro"), PaidBy: f.sarah, Participants: f.everyone(),
	})
	require.NoError(t, err)
	_, err = f.svc.CreateBillPack(BillPackParams{MissionID: f.missionID, Name: "Utilities", RequestDayOfMonth: 1})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteMission(f.missionID))
	assert.Empty(t, f.svc.Missions())
	assert.Empty(t, f.svc.Rules())
	assert.Empty(t, f.svc.BillPacksForMission(f.missionID))
}

func TestSnapshotRestore(t *testing.T) {
	f := newFixture(t)
	f.addTrip(t)
	_, err := f.svc.ConfirmSettlement(f.missionID, f.sarah)
	require.NoError(t, err)
	_, err = f.svc.Reopen(f.missionID)
	require.NoError(t, err)

	st := f.svc.Snapshot()
	assert.Len(t, st.Missions, 1)
	assert.Len(t, st.Transactions, 2)

	restored := New(WithClock(func() time.Time { return testNow }))
	require.NoError(t, restored.Restore(st))
	members, err := restored.Balances(f.missionID)
	require.NoError(t, err)
	assert.Equal(t, "50.00", members[0].Balance.StringFixed(2))
	assert.Len(t, restored.Feed().Transactions(), 2)
}
