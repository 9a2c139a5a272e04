package bot

import (
	"sync"
	"time"

	"shala/internal/model"
)

type adminStep string

const (
	stepNone         adminStep = "none"
	stepAwaitingText adminStep = "awaiting_text"
)

// editTarget is the schedule cell an admin is editing: either a weekly
// template cell (Weekday set) or a per-date override (Date set).
type editTarget struct {
	Weekday time.Weekday
	Date    string // empty for template edits
	Slot    model.SlotKind
}

type adminState struct {
	Step      adminStep
	Target    editTarget
	UpdatedAt time.Time
}

// stateStore holds per-admin edit flows. Stale flows expire so a forgotten
// edit does not swallow an unrelated message days later.
type stateStore struct {
	mu      sync.Mutex
	m       map[int64]*adminState
	timeout time.Duration
	now     func() time.Time
}

func newStateStore(timeout time.Duration) *stateStore {
	return &stateStore{
		m:       make(map[int64]*adminState),
		timeout: timeout,
		now:     time.Now,
	}
}

func (s *stateStore) get(userID int64) *adminState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.m[userID]
	if st == nil {
		st = &adminState{Step: stepNone}
		s.m[userID] = st
		return st
	}
	if st.Step != stepNone && s.now().Sub(st.UpdatedAt) > s.timeout {
		st.Step = stepNone
		st.Target = editTarget{}
	}
	return st
}

func (s *stateStore) set(userID int64, step adminStep, target editTarget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[userID] = &adminState{Step: step, Target: target, UpdatedAt: s.now()}
}

func (s *stateStore) reset(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
}
