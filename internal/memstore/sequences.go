package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/repo"
)

type seqKey struct{ consumer, seq string }

// SequenceStore: in-memory отметки обработки записей потока.
// Записи с истёкшим TTL считаются отсутствующими.
type SequenceStore struct {
	mu      sync.Mutex
	clock   Clock
	records map[seqKey]domain.SequenceRecord
}

// NewSequenceStore создаёт пустой SequenceStore.
func NewSequenceStore(clock Clock) *SequenceStore {
	return &SequenceStore{
		clock:   clock,
		records: make(map[seqKey]domain.SequenceRecord),
	}
}

func (s *SequenceStore) Create(_ context.Context, rec domain.SequenceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := seqKey{rec.ConsumerID, rec.SequenceNumber}
	if existing, ok := s.records[key]; ok && existing.TTL.After(s.clock.now()) {
		return fmt.Errorf("%w: %s/%s", repo.ErrAlreadyExists, rec.ConsumerID, rec.SequenceNumber)
	}
	s.records[key] = rec
	return nil
}

func (s *SequenceStore) Delete(_ context.Context, consumerID, seq string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, seqKey{consumerID, seq})
	return nil
}

// Has возвращает true, если действующая отметка есть.
func (s *SequenceStore) Has(consumerID, seq string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[seqKey{consumerID, seq}]
	return ok && rec.TTL.After(s.clock.now())
}
