package ledger

import (
	"fmt"

	"github.com/settleloop/settleloop/internal/balance"
	"github.com/settleloop/settleloop/internal/model"
	"github.com/settleloop/settleloop/internal/store"
)

// Snapshot captures the full ledger state for persistence.
func (s *Service) Snapshot() store.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := store.State{Version: store.Version}
	for _, m := range s.missions {
		st.Missions = append(st.Missions, *m.Clone())
	}
	for _, r := range s.rules {
		st.Rules = append(st.Rules, r.Clone())
	}
	st.BillPacks = append(st.BillPacks, s.packs...)
	st.Transactions = s.feed.Transactions()
	return st
}

// Restore replaces the ledger state with st. Balances are recomputed and
// every mission must conserve money; on failure nothing changes.
func (s *Service) Restore(st store.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	missions := make([]*model.Mission, 0, len(st.Missions))
	for i := range st.Missions {
		m := st.Missions[i].Clone()
		m.Members = balance.Compute(m)
		if err := balance.Verify(m.Members); err != nil {
			return fmt.Errorf("restoring mission %s: %w", m.ID, err)
		}
		missions = append(missions, m)
	}
	rules := make([]model.AutoSplitRule, len(st.Rules))
	for i, r := range st.Rules {
		rules[i] = r.Clone()
	}

	s.missions = missions
	s.rules = rules
	s.packs = append([]model.BillPack(nil), st.BillPacks...)
	s.feed.Merge(st.Transactions)
	return nil
}
