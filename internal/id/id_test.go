package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	a := New(Expense)
	b := New(Expense)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, len("exp-")+suffixLen)
	assert.True(t, HasPrefix(a, Expense))
	assert.False(t, HasPrefix(a, Mission))
}

func TestSequence(t *testing.T) {
	gen := Sequence()
	assert.Equal(t, "exp-001", gen(Expense))
	assert.Equal(t, "exp-002", gen(Expense))
	assert.Equal(t, "msn-001", gen(Mission))
}

func TestFormatSeq(t *testing.T) {
	tests := []struct {
		prefix string
		seq    int
		want   string
	}{
		{"rule", 1, "rule-001"},
		{"tx", 42, "tx-042"},
		{"pack", 1234, "pack-1234"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSeq(tt.prefix, tt.seq))
	}
}

func TestParse(t *testing.T) {
	prefix, suffix, err := Parse("exp-1f3a9c2e")
	require.NoError(t, err)
	assert.Equal(t, "exp", prefix)
	assert.Equal(t, "1f3a9c2e", suffix)

	prefix, suffix, err = Parse("tx-chase-20250103")
	require.NoError(t, err)
	assert.Equal(t, "tx", prefix)
	assert.Equal(t, "chase-20250103", suffix)
}

func TestParse_Invalid(t *testing.T) {
	for _, s := range []string{"", "exp", "-abc", "exp-"} {
		_, _, err := Parse(s)
		assert.Error(t, err, s)
	}
}
