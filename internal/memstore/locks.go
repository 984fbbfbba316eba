package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/repo"
)

type lockKey struct{ key, purpose string }

// LockStore: in-memory хранилище блокировок.
type LockStore struct {
	mu    sync.Mutex
	locks map[lockKey]domain.LockRecord
}

// NewLockStore создаёт пустой LockStore.
func NewLockStore() *LockStore {
	return &LockStore{locks: make(map[lockKey]domain.LockRecord)}
}

func (s *LockStore) Create(_ context.Context, lock domain.LockRecord, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := lockKey{lock.LockKey, lock.Purpose}
	if existing, ok := s.locks[key]; ok && existing.Held(now) {
		return fmt.Errorf("%w: lock %s/%s", repo.ErrAlreadyExists, lock.LockKey, lock.Purpose)
	}
	s.locks[key] = lock
	return nil
}

func (s *LockStore) Delete(_ context.Context, key, purpose string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := lockKey{key, purpose}
	if _, ok := s.locks[k]; !ok {
		return repo.ErrNotFound
	}
	delete(s.locks, k)
	return nil
}
