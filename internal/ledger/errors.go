package ledger

import (
	"errors"
	"fmt"

	"github.com/settleloop/settleloop/internal/split"
)

// Sentinel errors.
var (
	ErrNotFound = errors.New("ledger: not found")
	ErrSettled  = errors.New("ledger: mission is settled")
)

// Kinds reported by NotFoundError.
const (
	KindMission  = "mission"
	KindMember   = "member"
	KindExpense  = "expense"
	KindRule     = "rule"
	KindBillPack = "bill pack"
)

// Invariants checked by the ledger on top of those in package split.
const (
	InvTitle    = "title"
	InvName     = "name"
	InvAccount  = "account"
	InvBillPack = "bill-pack"
	InvSchedule = "schedule"
	InvMission  = "mission"
	InvReview   = "review"
)

// NotFoundError reports an unknown id. It matches ErrNotFound with errors.Is.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

func invalid(invariant, subject, format string, args ...any) error {
	return &split.ValidationError{Invariant: invariant, Subject: subject, Description: fmt.Sprintf(format, args...)}
}
