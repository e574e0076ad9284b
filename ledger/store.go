// Package ledger persists royalty distributions and the history of
// attempts made to settle them.
package ledger

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bitfsorg/royalty-go/royalty"
)

// Attempt records one run of the distributor over a distribution.
type Attempt struct {
	DistributionID string                     `json:"distributionId"`
	Number         int                        `json:"number"` // 1-based, assigned by AppendAttempt
	Retry          bool                       `json:"retry"`
	StartedAt      time.Time                  `json:"startedAt"`
	FinishedAt     time.Time                  `json:"finishedAt"`
	Result         royalty.DistributionResult `json:"result"`
}

// Store persists distributions and their attempt history.
type Store interface {
	// PutDistribution stores a new distribution.
	PutDistribution(d *royalty.RoyaltyDistribution) error

	// GetDistribution retrieves a distribution by ID.
	GetDistribution(id string) (*royalty.RoyaltyDistribution, error)

	// UpdateDistribution overwrites an existing distribution.
	UpdateDistribution(d *royalty.RoyaltyDistribution) error

	// ListByStatus returns distributions with the given status, oldest first.
	ListByStatus(status royalty.Status) ([]*royalty.RoyaltyDistribution, error)

	// AppendAttempt records an attempt and assigns its number.
	AppendAttempt(a *Attempt) error

	// Attempts returns the attempts for a distribution in order.
	Attempts(id string) ([]*Attempt, error)
}

func checkDistribution(d *royalty.RoyaltyDistribution) error {
	if d == nil {
		return fmt.Errorf("%w: distribution", ErrNilParam)
	}
	if strings.TrimSpace(d.ID) == "" {
		return ErrInvalidID
	}
	return nil
}

// sortOldestFirst orders by CreatedAt, then ID.
func sortOldestFirst(ds []*royalty.RoyaltyDistribution) {
	slices.SortFunc(ds, func(a, b *royalty.RoyaltyDistribution) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func cloneDistribution(d *royalty.RoyaltyDistribution) *royalty.RoyaltyDistribution {
	c := *d
	c.Splits = slices.Clone(d.Splits)
	c.TransactionHashes = slices.Clone(d.TransactionHashes)
	return &c
}

func cloneAttempt(a *Attempt) *Attempt {
	c := *a
	c.Result.Transactions = slices.Clone(a.Result.Transactions)
	c.Result.Errors = slices.Clone(a.Result.Errors)
	return &c
}

// MemStore is an in-memory implementation of Store for testing.
type MemStore struct {
	mu            sync.RWMutex
	distributions map[string]*royalty.RoyaltyDistribution
	attempts      map[string][]*Attempt
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates a new in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		distributions: make(map[string]*royalty.RoyaltyDistribution),
		attempts:      make(map[string][]*Attempt),
	}
}

// PutDistribution stores a new distribution.
func (s *MemStore) PutDistribution(d *royalty.RoyaltyDistribution) error {
	if err := checkDistribution(d); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.distributions[d.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, d.ID)
	}
	s.distributions[d.ID] = cloneDistribution(d)
	return nil
}

// GetDistribution retrieves a distribution by ID.
func (s *MemStore) GetDistribution(id string) (*royalty.RoyaltyDistribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.distributions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cloneDistribution(d), nil
}

// UpdateDistribution overwrites an existing distribution.
func (s *MemStore) UpdateDistribution(d *royalty.RoyaltyDistribution) error {
	if err := checkDistribution(d); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.distributions[d.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, d.ID)
	}
	s.distributions[d.ID] = cloneDistribution(d)
	return nil
}

// ListByStatus returns distributions with the given status, oldest first.
func (s *MemStore) ListByStatus(status royalty.Status) ([]*royalty.RoyaltyDistribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*royalty.RoyaltyDistribution
	for _, d := range s.distributions {
		if d.Status == status {
			out = append(out, cloneDistribution(d))
		}
	}
	sortOldestFirst(out)
	return out, nil
}

// AppendAttempt records an attempt and assigns its number.
func (s *MemStore) AppendAttempt(a *Attempt) error {
	if a == nil {
		return fmt.Errorf("%w: attempt", ErrNilParam)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.distributions[a.DistributionID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, a.DistributionID)
	}
	a.Number = len(s.attempts[a.DistributionID]) + 1
	s.attempts[a.DistributionID] = append(s.attempts[a.DistributionID], cloneAttempt(a))
	return nil
}

// Attempts returns the attempts for a distribution in order.
func (s *MemStore) Attempts(id string) ([]*Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.distributions[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := make([]*Attempt, len(s.attempts[id]))
	for i, a := range s.attempts[id] {
		out[i] = cloneAttempt(a)
	}
	return out, nil
}
