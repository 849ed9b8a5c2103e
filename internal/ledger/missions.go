package ledger

import (
	"strings"

	"go.uber.org/zap"

	"github.com/settleloop/settleloop/internal/balance"
	"github.com/settleloop/settleloop/internal/id"
	"github.com/settleloop/settleloop/internal/model"
	"github.com/settleloop/settleloop/internal/split"
)

// MemberParams describes a member to add or update.
type MemberParams struct {
	Name  string
	Email string
}

// CreateMission starts a new shared ledger with the given members, in order.
func (s *Service) CreateMission(title string, members []MemberParams) (*model.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, invalid(InvTitle, "", "mission title is required")
	}
	m := &model.Mission{
		ID:        s.ids(id.Mission),
		Title:     title,
		Status:    model.MissionActive,
		CreatedAt: s.now(),
	}
	for _, p := range members {
		mem, err := s.newMember(m, p)
		if err != nil {
			return nil, err
		}
		m.Members = append(m.Members, mem)
	}
	m.Members = balance.Compute(m)
	s.missions = append(s.missions, m)

	s.logger.Info("mission created", zap.String("mission_id", m.ID), zap.Int("members", len(m.Members)))
	return m.Clone(), nil
}

// Mission returns a copy of the mission with freshly computed balances,
// pinned to zero while it is settled.
func (s *Service) Mission(missionID string) (*model.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, _, err := s.lookup(missionID)
	if err != nil {
		return nil, err
	}
	return view(m), nil
}

// Missions returns copies of every mission in creation order.
func (s *Service) Missions() []*model.Mission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Mission, len(s.missions))
	for i, m := range s.missions {
		out[i] = view(m)
	}
	return out
}

func view(m *model.Mission) *model.Mission {
	out := m.Clone()
	if out.IsSettled() {
		out.Members = balance.Zeroed(out.Members)
	} else {
		out.Members = balance.Compute(out)
	}
	return out
}

// RenameMission changes the mission title.
func (s *Service) RenameMission(missionID, title string) (*model.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, invalid(InvTitle, missionID, "mission title is required")
	}
	return s.mutate(missionID, func(m *model.Mission) error {
		m.Title = title
		return nil
	})
}

// DeleteMission removes the mission together with its rules and bill packs.
func (s *Service) DeleteMission(missionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, idx, err := s.lookup(missionID)
	if err != nil {
		return err
	}
	s.missions = append(s.missions[:idx], s.missions[idx+1:]...)

	rules := s.rules[:0]
	for _, r := range s.rules {
		if r.MissionID != missionID {
			rules = append(rules, r)
		}
	}
	s.rules = rules

	packs := s.packs[:0]
	for _, p := range s.packs {
		if p.MissionID != missionID {
			packs = append(packs, p)
		}
	}
	s.packs = packs

	s.logger.Info("mission deleted", zap.String("mission_id", missionID))
	return nil
}

// AddMember appends a member to the mission. Existing expenses are untouched,
// so the new member starts at a zero balance.
func (s *Service) AddMember(missionID string, p MemberParams) (model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var added model.Member
	_, err := s.mutate(missionID, func(m *model.Mission) error {
		if err := requireActive(m); err != nil {
			return err
		}
		mem, err := s.newMember(m, p)
		if err != nil {
			return err
		}
		m.Members = append(m.Members, mem)
		added = mem
		return nil
	})
	if err != nil {
		return model.Member{}, err
	}
	s.logger.Info("member added", zap.String("mission_id", missionID), zap.String("member_id", added.ID))
	return added, nil
}

func (s *Service) newMember(m *model.Mission, p MemberParams) (model.Member, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return model.Member{}, invalid(InvName, m.ID, "member name is required")
	}
	if findByName(m, name, "") != "" {
		return model.Member{}, invalid(split.InvDuplicate, m.ID, "a member named %q already exists", name)
	}
	return model.Member{ID: s.ids(id.Member), Name: name, Email: strings.TrimSpace(p.Email)}, nil
}

// findByName returns the id of the member called name, ignoring exceptID.
func findByName(m *model.Mission, name, exceptID string) string {
	for _, mem := range m.Members {
		if mem.ID != exceptID && strings.EqualFold(mem.Name, name) {
			return mem.ID
		}
	}
	return ""
}

// UpdateMember changes a member's name and email.
func (s *Service) UpdateMember(missionID, memberID string, p MemberParams) (model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated model.Member
	_, err := s.mutate(missionID, func(m *model.Mission) error {
		i := memberIndex(m, memberID)
		if i < 0 {
			return notFound(KindMember, memberID)
		}
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return invalid(InvName, memberID, "member name is required")
		}
		if findByName(m, name, memberID) != "" {
			return invalid(split.InvDuplicate, memberID, "a member named %q already exists", name)
		}
		m.Members[i].Name = name
		m.Members[i].Email = strings.TrimSpace(p.Email)
		updated = m.Members[i]
		return nil
	})
	return updated, err
}

// RemoveMember drops a member from the mission. Expenses already recorded
// keep the member's shares; those shares carry zero weight from now on and
// the payer absorbs them. A member who paid for any expense cannot be
// removed. Rules of the mission stop splitting with the member; rules that
// can no longer run as configured are paused.
func (s *Service) RemoveMember(missionID, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.mutate(missionID, func(m *model.Mission) error {
		if err := requireActive(m); err != nil {
			return err
		}
		i := memberIndex(m, memberID)
		if i < 0 {
			return notFound(KindMember, memberID)
		}
		for _, e := range m.Expenses {
			if e.PaidBy == memberID {
				return invalid(split.InvPayer, memberID, "member paid for expense %q and cannot be removed", e.Title)
			}
		}
		m.Members = append(m.Members[:i], m.Members[i+1:]...)
		return nil
	})
	if err != nil {
		return err
	}

	for i := range s.rules {
		r := &s.rules[i]
		if r.MissionID != missionID {
			continue
		}
		if paused := detachMember(r, memberID); paused {
			s.logger.Warn("rule paused after member removal",
				zap.String("rule_id", r.ID), zap.String("member_id", memberID))
		}
	}
	s.logger.Info("member removed", zap.String("mission_id", missionID), zap.String("member_id", memberID))
	return nil
}

// detachMember strips memberID from the rule. EQUAL rules keep running with
// the remaining participants; any other rule touching the member is paused
// until it is reconfigured. It reports whether the rule was paused.
func detachMember(r *model.AutoSplitRule, memberID string) bool {
	idx := -1
	for i, p := range r.Participants {
		if p == memberID {
			idx = i
		}
	}
	if idx < 0 && r.PaidBy != memberID {
		return false
	}
	if idx >= 0 {
		r.Participants = append(r.Participants[:idx:idx], r.Participants[idx+1:]...)
		if idx < len(r.SplitValues) {
			r.SplitValues = append(r.SplitValues[:idx:idx], r.SplitValues[idx+1:]...)
		}
	}
	if r.PaidBy == memberID || r.Mode != model.SplitEqual || len(r.Participants) == 0 {
		if r.Status == model.RuleActive {
			r.Status = model.RulePaused
			return true
		}
	}
	return false
}

func memberIndex(m *model.Mission, memberID string) int {
	for i, mem := range m.Members {
		if mem.ID == memberID {
			return i
		}
	}
	return -1
}

// ResolveMember finds a member by id or, case-insensitively, by name.
func (s *Service) ResolveMember(missionID, ref string) (model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, _, err := s.lookup(missionID)
	if err != nil {
		return model.Member{}, err
	}
	if mem, ok := m.Member(ref); ok {
		return mem, nil
	}
	if memberID := findByName(m, ref, ""); memberID != "" {
		mem, _ := m.Member(memberID)
		return mem, nil
	}
	return model.Member{}, notFound(KindMember, ref)
}
