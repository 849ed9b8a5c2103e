package split

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settleloop/settleloop/internal/model"
	"github.com/settleloop/settleloop/internal/money"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sumShares(shares []model.Share) decimal.Decimal {
	total := decimal.Zero
	for _, s := range shares {
		total = total.Add(s.Amount)
	}
	return total
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("m%d", i)
	}
	return out
}

func TestGenerate_EqualRemainderToFirst(t *testing.T) {
	shares, err := Generate([]string{"a", "b", "c"}, model.SplitEqual, dec("100.00"))
	require.NoError(t, err)
	require.Len(t, shares, 3)
	assert.Equal(t, "33.34", shares[0].Amount.StringFixed(2))
	assert.Equal(t, "33.33", shares[1].Amount.StringFixed(2))
	assert.Equal(t, "33.33", shares[2].Amount.StringFixed(2))
	assert.True(t, sumShares(shares).Equal(dec("100.00")))
}

func TestGenerate_EqualIsCentExact(t *testing.T) {
	totals := []string{"0.01", "0.05", "1.00", "10.01", "99.99", "100.00", "1234.57", "2000.03"}
	for n := 1; n <= 17; n++ {
		for _, tot := range totals {
			shares, err := Generate(ids(n), model.SplitEqual, dec(tot))
			require.NoError(t, err)
			assert.Equal(t, money.ToCents(dec(tot)), money.ToCents(sumShares(shares)), "n=%d total=%s", n, tot)

			// No share differs from another by more than a cent.
			minC, maxC := money.ToCents(shares[0].Amount), money.ToCents(shares[0].Amount)
			for _, s := range shares {
				c := money.ToCents(s.Amount)
				minC = min(minC, c)
				maxC = max(maxC, c)
			}
			assert.LessOrEqual(t, maxC-minC, int64(1))
		}
	}
}

func TestGenerate_AmountStartsAtZero(t *testing.T) {
	shares, err := Generate([]string{"a", "b"}, model.SplitAmount, dec("50"))
	require.NoError(t, err)
	for _, s := range shares {
		assert.True(t, s.Amount.IsZero())
	}
}

func TestGenerate_Percent(t *testing.T) {
	shares, err := Generate([]string{"a", "b", "c"}, model.SplitPercent, dec("90.00"))
	require.NoError(t, err)
	for _, s := range shares {
		assert.Equal(t, "33.33", s.Percent.StringFixed(2))
		assert.Equal(t, "30.00", s.Amount.StringFixed(2))
	}

	e := model.Expense{ID: "e", Amount: dec("90.00"), PaidBy: "a", Mode: model.SplitPercent, Shares: shares}
	assert.NoError(t, Validate(e), "99.99 percent is within tolerance")
}

func TestGenerate_Errors(t *testing.T) {
	_, err := Generate(nil, model.SplitEqual, dec("10"))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, InvParticipants, ve.Invariant)

	_, err = Generate([]string{"a"}, model.SplitMode("SHARES"), dec("10"))
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, InvMode, ve.Invariant)

	_, err = Generate([]string{"a"}, model.SplitEqual, dec("-10"))
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, InvAmount, ve.Invariant)
}

func expense(mode model.SplitMode, amount string, shares ...model.Share) model.Expense {
	return model.Expense{
		ID:        "exp-1",
		Title:     "Groceries",
		Amount:    dec(amount),
		PaidBy:    "a",
		Mode:      mode,
		Shares:    shares,
		CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func invariantOf(t *testing.T, err error) string {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	return ve.Invariant
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		exp  model.Expense
		want string // empty = valid
	}{
		{
			name: "equal ok",
			exp: expense(model.SplitEqual, "100.00",
				model.Share{MemberID: "a", Amount: dec("33.34")},
				model.Share{MemberID: "b", Amount: dec("33.33")},
				model.Share{MemberID: "c", Amount: dec("33.33")}),
		},
		{
			name: "equal uneven",
			exp: expense(model.SplitEqual, "100.00",
				model.Share{MemberID: "a", Amount: dec("60.00")},
				model.Share{MemberID: "b", Amount: dec("40.00")}),
			want: InvEqualShare,
		},
		{
			name: "equal short",
			exp: expense(model.SplitEqual, "100.00",
				model.Share{MemberID: "a", Amount: dec("49.00")},
				model.Share{MemberID: "b", Amount: dec("49.00")}),
			want: InvShareTotal,
		},
		{
			name: "amount ok",
			exp: expense(model.SplitAmount, "80.00",
				model.Share{MemberID: "a", Amount: dec("60.00")},
				model.Share{MemberID: "b", Amount: dec("20.00")}),
		},
		{
			name: "amount off by a cent is tolerated",
			exp: expense(model.SplitAmount, "80.00",
				model.Share{MemberID: "a", Amount: dec("59.99")},
				model.Share{MemberID: "b", Amount: dec("20.00")}),
		},
		{
			name: "amount off",
			exp: expense(model.SplitAmount, "80.00",
				model.Share{MemberID: "a", Amount: dec("50.00")},
				model.Share{MemberID: "b", Amount: dec("20.00")}),
			want: InvShareTotal,
		},
		{
			name: "percent off",
			exp: expense(model.SplitPercent, "80.00",
				model.Share{MemberID: "a", Percent: dec("50")},
				model.Share{MemberID: "b", Percent: dec("47.5")}),
			want: InvPercentTotal,
		},
		{
			name: "no shares",
			exp:  expense(model.SplitEqual, "10.00"),
			want: InvParticipants,
		},
		{
			name: "duplicate member",
			exp: expense(model.SplitAmount, "10.00",
				model.Share{MemberID: "a", Amount: dec("5")},
				model.Share{MemberID: "a", Amount: dec("5")}),
			want: InvDuplicate,
		},
		{
			name: "negative share",
			exp: expense(model.SplitAmount, "10.00",
				model.Share{MemberID: "a", Amount: dec("15")},
				model.Share{MemberID: "b", Amount: dec("-5")}),
			want: InvNegative,
		},
		{
			name: "zero amount",
			exp:  expense(model.SplitEqual, "0", model.Share{MemberID: "a"}),
			want: InvAmount,
		},
	}
	for _, tt := range tests {
		err := Validate(tt.exp)
		if tt.want == "" {
			assert.NoError(t, err, tt.name)
			continue
		}
		require.Error(t, err, tt.name)
		assert.Equal(t, tt.want, invariantOf(t, err), tt.name)
	}
}

func TestValidate_NoPayer(t *testing.T) {
	e := expense(model.SplitEqual, "10.00", model.Share{MemberID: "a", Amount: dec("10")})
	e.PaidBy = ""
	assert.Equal(t, InvPayer, invariantOf(t, Validate(e)))
}

func TestValidate_PercentMessage(t *testing.T) {
	e := expense(model.SplitPercent, "80.00",
		model.Share{MemberID: "a", Percent: dec("50")},
		model.Share{MemberID: "b", Percent: dec("47.5")})
	err := Validate(e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "percentages must total 100% (got 97.50%)")
}
