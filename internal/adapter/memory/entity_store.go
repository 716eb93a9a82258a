package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/pscheid92/askpulse/internal/domain"
)

type ledgerRecord struct {
	votes   []domain.Vote
	version int64
}

// EntityStore holds votable entities and their ledgers.
type EntityStore struct {
	mu       sync.RWMutex
	entities map[domain.EntityRef]domain.Entity
	ledgers  map[domain.EntityRef]ledgerRecord
}

var (
	_ domain.EntityRepository = (*EntityStore)(nil)
	_ domain.LedgerRepository = (*EntityStore)(nil)
)

func NewEntityStore() *EntityStore {
	return &EntityStore{
		entities: make(map[domain.EntityRef]domain.Entity),
		ledgers:  make(map[domain.EntityRef]ledgerRecord),
	}
}

func (s *EntityStore) GetEntity(_ context.Context, ref domain.EntityRef) (*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[ref]
	if !ok {
		return nil, domain.ErrEntityNotFound
	}
	return &e, nil
}

func (s *EntityStore) RegisterEntity(_ context.Context, entity domain.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entities[entity.Ref]; ok {
		if existing.OwnerID != entity.OwnerID {
			return domain.ErrEntityConflict
		}
		return nil
	}
	s.entities[entity.Ref] = entity
	return nil
}

func (s *EntityStore) DeleteEntity(_ context.Context, ref domain.EntityRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[ref]; !ok {
		return domain.ErrEntityNotFound
	}
	delete(s.entities, ref)
	delete(s.ledgers, ref)
	return nil
}

func (s *EntityStore) LoadLedger(_ context.Context, ref domain.EntityRef) (domain.LedgerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.entities[ref]; !ok {
		return domain.LedgerState{}, domain.ErrEntityNotFound
	}
	rec := s.ledgers[ref]
	return domain.LedgerState{Votes: slices.Clone(rec.votes), Version: rec.version}, nil
}

func (s *EntityStore) SaveLedger(_ context.Context, ref domain.EntityRef, state domain.LedgerState, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[ref]; !ok {
		return domain.ErrEntityNotFound
	}
	if s.ledgers[ref].version != expectedVersion {
		return domain.ErrVersionConflict
	}
	s.ledgers[ref] = ledgerRecord{votes: slices.Clone(state.Votes), version: expectedVersion + 1}
	return nil
}
