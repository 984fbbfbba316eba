package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/repo"
)

type timerKey struct{ tenant, id string }

// TimerStore: in-memory хранилище таймеров.
type TimerStore struct {
	mu     sync.Mutex
	timers map[timerKey]*domain.Timer
}

// NewTimerStore создаёт пустой TimerStore.
func NewTimerStore() *TimerStore {
	return &TimerStore{timers: make(map[timerKey]*domain.Timer)}
}

func (s *TimerStore) Put(_ context.Context, timer *domain.Timer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.timers[timerKey{timer.TenantID, timer.ID}] = cloneTimer(timer)
	return nil
}

func (s *TimerStore) Create(_ context.Context, timer *domain.Timer) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := timerKey{timer.TenantID, timer.ID}
	if _, ok := s.timers[key]; ok {
		return false, nil
	}
	s.timers[key] = cloneTimer(timer)
	return true, nil
}

func (s *TimerStore) GetByID(_ context.Context, tenantID, id string) (*domain.Timer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[timerKey{tenantID, id}]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return cloneTimer(timer), nil
}

func (s *TimerStore) Delete(_ context.Context, tenantID, id string) (*domain.Timer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := timerKey{tenantID, id}
	timer, ok := s.timers[key]
	if !ok {
		return nil, repo.ErrNotFound
	}
	delete(s.timers, key)
	return timer, nil
}

// SweepExpired держит блокировку на всё время обхода, что соответствует
// FOR UPDATE SKIP LOCKED в PostgreSQL-реализации.
func (s *TimerStore) SweepExpired(_ context.Context, now time.Time, limit int, fn func(domain.Timer) error) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*domain.Timer
	for _, timer := range s.timers {
		if timer.Expired(now) {
			expired = append(expired, timer)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		a, b := expired[i].TTL, expired[j].TTL
		switch {
		case a == nil:
			return b != nil
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}

	var swept int
	for _, timer := range expired {
		if err := fn(*cloneTimer(timer)); err != nil {
			return swept, err
		}
		delete(s.timers, timerKey{timer.TenantID, timer.ID})
		swept++
	}
	return swept, nil
}

// Len возвращает количество таймеров.
func (s *TimerStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
