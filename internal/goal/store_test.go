package goal

import (
	"context"
	"sort"
	"sync"

	"github.com/hitoshi/habitstreak/internal/model"
	"github.com/hitoshi/habitstreak/internal/repository"
)

// memStore は目標とチェックインを保持するインメモリのフェイクストア。
// 目標削除時にチェックインも削除し、PostgreSQLのCASCADEを再現する。
type memStore struct {
	mu       sync.Mutex
	goals    map[string]*model.Goal
	checkins []*model.CheckIn

	listGoalsErr    error
	listCheckinsErr error
	createGoalErr   error
	createCheckErr  error
}

func newMemStore() *memStore {
	return &memStore{goals: map[string]*model.Goal{}}
}

// goalRepo はmemStoreをGoalRepositoryとして公開する。
type goalRepo struct{ s *memStore }

// checkinRepo はmemStoreをCheckinRepositoryとして公開する。
type checkinRepo struct{ s *memStore }

func (r goalRepo) ListActiveByUser(ctx context.Context, userID string) ([]*model.Goal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.listGoalsErr != nil {
		return nil, r.s.listGoalsErr
	}
	var out []*model.Goal
	for _, g := range r.s.goals {
		if g.UserID == userID && g.IsActive {
			c := *g
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r goalRepo) FindByIDAndUser(ctx context.Context, id, userID string) (*model.Goal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.goals[id]
	if !ok || g.UserID != userID {
		return nil, nil
	}
	c := *g
	return &c, nil
}

func (r goalRepo) Create(ctx context.Context, goal *model.Goal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.createGoalErr != nil {
		return r.s.createGoalErr
	}
	c := *goal
	r.s.goals[goal.ID] = &c
	return nil
}

func (r goalRepo) Update(ctx context.Context, goal *model.Goal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.goals[goal.ID]
	if !ok || g.UserID != goal.UserID {
		return repository.ErrNotFound
	}
	c := *goal
	r.s.goals[goal.ID] = &c
	return nil
}

func (r goalRepo) Delete(ctx context.Context, id, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.goals[id]
	if !ok || g.UserID != userID {
		return repository.ErrNotFound
	}
	delete(r.s.goals, id)
	kept := r.s.checkins[:0]
	for _, c := range r.s.checkins {
		if c.GoalID != id {
			kept = append(kept, c)
		}
	}
	r.s.checkins = kept
	return nil
}

func (r checkinRepo) Create(ctx context.Context, checkin *model.CheckIn) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.createCheckErr != nil {
		return false, r.s.createCheckErr
	}
	g, ok := r.s.goals[checkin.GoalID]
	if !ok || g.UserID != checkin.UserID {
		return false, nil
	}
	for _, c := range r.s.checkins {
		if c.UserID == checkin.UserID && c.GoalID == checkin.GoalID && c.CheckedOn == checkin.CheckedOn {
			return false, nil
		}
	}
	c := *checkin
	r.s.checkins = append(r.s.checkins, &c)
	return true, nil
}

func (r checkinRepo) ListByUser(ctx context.Context, userID string) ([]*model.CheckIn, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.listCheckinsErr != nil {
		return nil, r.s.listCheckinsErr
	}
	var out []*model.CheckIn
	for _, c := range r.s.checkins {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r checkinRepo) ListByGoal(ctx context.Context, goalID, userID string) ([]*model.CheckIn, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.CheckIn
	for _, c := range r.s.checkins {
		if c.GoalID == goalID && c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckedOn > out[j].CheckedOn })
	return out, nil
}

// addCheckins はテスト用にチェックインを直接追加する。
func (s *memStore) addCheckins(userID, goalID string, days ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range days {
		s.checkins = append(s.checkins, &model.CheckIn{ID: d + goalID, UserID: userID, GoalID: goalID, CheckedOn: d})
	}
}

func (s *memStore) checkinCount(goalID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.checkins {
		if c.GoalID == goalID {
			n++
		}
	}
	return n
}

var (
	_ repository.GoalRepository    = goalRepo{}
	_ repository.CheckinRepository = checkinRepo{}
)
