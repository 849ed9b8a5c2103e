package feed

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/settleloop/settleloop/internal/id"
	"github.com/settleloop/settleloop/internal/model"
)

// Memory is an in-memory transaction feed. It is safe for concurrent use.
type Memory struct {
	mu  sync.RWMutex
	txs []model.BankTransaction
	ids map[string]bool
	gen id.Generator
	now func() time.Time
}

// MemoryOption configures a Memory feed.
type MemoryOption func(*Memory)

// WithIDs sets the generator used for appended transactions.
func WithIDs(gen id.Generator) MemoryOption {
	return func(m *Memory) { m.gen = gen }
}

// WithClock sets the clock used to date appended transactions.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates a feed holding txs.
func NewMemory(txs []model.BankTransaction, opts ...MemoryOption) *Memory {
	m := &Memory{ids: map[string]bool{}, gen: id.New, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	m.Merge(txs)
	return m
}

// Transactions returns a copy of the feed, newest first.
func (m *Memory) Transactions() []model.BankTransaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.BankTransaction, len(m.txs))
	copy(out, m.txs)
	return out
}

// Append records a new transaction, assigning an id and date when missing.
func (m *Memory) Append(tx model.BankTransaction) (model.BankTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.ID == "" {
		tx.ID = m.gen(id.Transaction)
	}
	if m.ids[tx.ID] {
		return model.BankTransaction{}, fmt.Errorf("transaction %s already in feed", tx.ID)
	}
	if tx.Date.IsZero() {
		tx.Date = m.now()
	}
	if tx.Status == "" {
		tx.Status = model.TxCompleted
	}
	m.insert(tx)
	return tx, nil
}

// Merge adds txs whose ids the feed has not seen and returns how many were
// added.
func (m *Memory) Merge(txs []model.BankTransaction) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	added := 0
	for _, tx := range txs {
		if tx.ID == "" || m.ids[tx.ID] {
			continue
		}
		m.insert(tx)
		added++
	}
	return added
}

func (m *Memory) insert(tx model.BankTransaction) {
	m.ids[tx.ID] = true
	m.txs = append(m.txs, tx)
	sort.SliceStable(m.txs, func(i, j int) bool { return m.txs[i].Date.After(m.txs[j].Date) })
}
