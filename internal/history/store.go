// Package history keeps the bounded, deduplicated rolling window of rounds.
package history

import (
	"sync"

	"github.com/roundcast/roundcast/internal/models"
)

// DefaultCapacity is used when a non-positive capacity is requested.
const DefaultCapacity = 100

// Store holds recent rounds oldest first. RoundIDs are unique and strictly
// increasing; the buffer never grows past its capacity.
type Store struct {
	mu       sync.RWMutex
	records  []models.RoundRecord
	capacity int
}

// New creates an empty store.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		records:  make([]models.RoundRecord, 0, capacity),
		capacity: capacity,
	}
}

// Upsert appends rec unless its RoundID is already present or not newer than
// the latest stored round, in which case it reports false. Malformed records
// are rejected with a validation error and never stored.
func (s *Store) Upsert(rec models.RoundRecord) (bool, error) {
	if err := rec.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.records); n > 0 && rec.RoundID <= s.records[n-1].RoundID {
		// Ids are strictly increasing, so anything not newer than the tail is
		// either a duplicate or a late arrival.
		return false, nil
	}

	s.records = append(s.records, rec)
	if overflow := len(s.records) - s.capacity; overflow > 0 {
		// Shift in place so the backing array stays at capacity.
		copy(s.records, s.records[overflow:])
		s.records = s.records[:s.capacity]
	}
	return true, nil
}

// Contains reports whether a round with the given id is stored.
func (s *Store) Contains(roundID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].RoundID == roundID {
			return true
		}
		if s.records[i].RoundID < roundID {
			return false
		}
	}
	return false
}

// Snapshot returns a copy of the stored rounds, oldest first.
func (s *Store) Snapshot() []models.RoundRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.RoundRecord(nil), s.records...)
}

// Latest returns the most recently stored round.
func (s *Store) Latest() (models.RoundRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return models.RoundRecord{}, false
	}
	return s.records[len(s.records)-1], true
}

// Len returns the number of stored rounds.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Capacity returns the maximum number of retained rounds.
func (s *Store) Capacity() int {
	return s.capacity
}
