// Package id generates and parses prefixed identifiers like "exp-1f3a9c2e".
package id

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Prefixes for each record kind.
const (
	Mission      = "msn"
	Member       = "mem"
	Expense      = "exp"
	Rule         = "rule"
	BillPack     = "pack"
	Transaction  = "tx"
	Notification = "ntf"
)

// suffixLen is the number of hex characters kept from the uuid.
const suffixLen = 8

// Generator returns a fresh id for prefix.
type Generator func(prefix string) string

// New returns prefix + "-" + the first hex characters of a random uuid.
func New(prefix string) string {
	u := uuid.New()
	hex := strings.ReplaceAll(u.String(), "-", "")
	return prefix + "-" + hex[:suffixLen]
}

// Sequence returns a deterministic Generator producing "exp-001", "exp-002",
// ... with one counter per prefix.
func Sequence() Generator {
	var mu sync.Mutex
	next := map[string]int{}
	return func(prefix string) string {
		mu.Lock()
		defer mu.Unlock()
		next[prefix]++
		return FormatSeq(prefix, next[prefix])
	}
}

// FormatSeq returns an id like "exp-001".
func FormatSeq(prefix string, seq int) string {
	return fmt.Sprintf("%s-%03d", prefix, seq)
}

// Parse splits "exp-1f3a9c2e" into its prefix and suffix.
func Parse(s string) (prefix, suffix string, err error) {
	prefix, suffix, ok := strings.Cut(s, "-")
	if !ok || prefix == "" || suffix == "" {
		return "", "", fmt.Errorf("invalid id format: %q", s)
	}
	return prefix, suffix, nil
}

// HasPrefix reports whether s is a well-formed id of the given kind.
func HasPrefix(s, prefix string) bool {
	p, _, err := Parse(s)
	return err == nil && p == prefix
}
