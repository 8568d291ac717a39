// Package category implements the learned item-to-category suggestion store
// and the fuzzy account matcher used to narrow candidate lists.
package category

import (
	"encoding/json"
	"fmt"

	"github.com/qifbot/qifbot/internal/common"
	"github.com/qifbot/qifbot/internal/model"
)

// Store maps item names to a ranked list of previously assigned categories.
// Item names are matched exactly and case-sensitively.
type Store struct {
	stats map[string]model.CategoryStats
}

// NewStore creates an empty suggestion store.
func NewStore() *Store {
	return &Store{stats: make(map[string]model.CategoryStats)}
}

// Assign files item under category, incrementing the hit count if the
// category was used for this item before. The ranked list is kept sorted
// after every mutation.
func (s *Store) Assign(item, category string) error {
	if category == "" {
		return fmt.Errorf("assign %q: %w", item, common.ErrEmptyCategory)
	}

	stats := s.stats[item]
	found := false
	for i := range stats {
		if stats[i].Category == category {
			stats[i].Hits++
			found = true
			break
		}
	}
	if !found {
		stats = append(stats, model.CategoryStat{Category: category, Hits: 1})
	}

	stats.Sort()
	s.stats[item] = stats
	return nil
}

// Top returns the most-used category for item, or false if the item has
// never been assigned.
func (s *Store) Top(item string) (string, bool) {
	top := s.stats[item].Top()
	if top == nil {
		return "", false
	}
	return top.Category, true
}

// Stats returns the ranked category list for item. The returned slice is a
// copy and safe for the caller to hold.
func (s *Store) Stats(item string) model.CategoryStats {
	stats := s.stats[item]
	if stats == nil {
		return nil
	}
	out := make(model.CategoryStats, len(stats))
	copy(out, stats)
	return out
}

// Len returns the number of known items.
func (s *Store) Len() int {
	return len(s.stats)
}

// Clone returns a deep copy of the store.
func (s *Store) Clone() *Store {
	clone := NewStore()
	for item, stats := range s.stats {
		copied := make(model.CategoryStats, len(stats))
		copy(copied, stats)
		clone.stats[item] = copied
	}
	return clone
}

// MarshalJSON implements json.Marshaler.
func (s *Store) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.stats)
}

// UnmarshalJSON implements json.Unmarshaler. Loaded lists are re-sorted so
// records persisted by older versions still honor the ranking invariant.
func (s *Store) UnmarshalJSON(data []byte) error {
	stats := make(map[string]model.CategoryStats)
	if err := json.Unmarshal(data, &stats); err != nil {
		return err
	}
	for item := range stats {
		stats[item].Sort()
	}
	s.stats = stats
	return nil
}
