package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/recurring-tracker/internal/obligations"
)

// Store is an in-memory implementation of obligations.Store.
// It is safe for concurrent use. Data is lost on restart.
type Store struct {
	mu          sync.RWMutex
	obligations map[string]*obligations.Obligation // by ID
	byKey       map[obligations.Key]string
}

// NewStore creates an empty in-memory obligation store.
func NewStore() *Store {
	return &Store{
		obligations: make(map[string]*obligations.Obligation),
		byKey:       make(map[obligations.Key]string),
	}
}

// FindObligation implements obligations.Store.
func (s *Store) FindObligation(ctx context.Context, key obligations.Key) (*obligations.Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[key]
	if !ok {
		return nil, obligations.ErrNotFound
	}
	o := *s.obligations[id]
	return &o, nil
}

// InsertObligation implements obligations.Store.
func (s *Store) InsertObligation(ctx context.Context, o *obligations.Obligation) error {
	if o.ID == "" {
		return fmt.Errorf("obligation ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byKey[o.Key()]; exists {
		return fmt.Errorf("obligation already exists for merchant %q", o.MerchantName)
	}

	stored := *o
	s.obligations[o.ID] = &stored
	s.byKey[o.Key()] = o.ID
	return nil
}

// UpdateObligation implements obligations.Store.
func (s *Store) UpdateObligation(ctx context.Context, o *obligations.Obligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.obligations[o.ID]
	if !exists {
		return fmt.Errorf("update obligation %s: %w", o.ID, obligations.ErrNotFound)
	}

	delete(s.byKey, prev.Key())
	stored := *o
	s.obligations[o.ID] = &stored
	s.byKey[o.Key()] = o.ID
	return nil
}

// ListObligations implements obligations.Store. Results are ordered by
// merchant name.
func (s *Store) ListObligations(ctx context.Context, userID string) ([]obligations.Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []obligations.Obligation{}
	for _, o := range s.obligations {
		if o.UserID != userID {
			continue
		}
		result = append(result, *o)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].MerchantName != result[j].MerchantName {
			return result[i].MerchantName < result[j].MerchantName
		}
		return result[i].Category < result[j].Category
	})
	return result, nil
}

// Ensure Store implements the obligations.Store interface.
var _ obligations.Store = (*Store)(nil)
