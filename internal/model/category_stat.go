// Package model defines the core domain types shared across the application.
package model

import "sort"

// CategoryStat records how many times an item has been filed under a category.
type CategoryStat struct {
	Category string `json:"category"`
	Hits     int64  `json:"hits"`
}

// CategoryStats is a ranked list of category usage for a single item,
// most-used first.
type CategoryStats []CategoryStat

// Len implements sort.Interface.
func (s CategoryStats) Len() int {
	return len(s)
}

// Less implements sort.Interface - more hits come first. Equal hit counts
// order by category name so the ranking is deterministic.
func (s CategoryStats) Less(i, j int) bool {
	if s[i].Hits != s[j].Hits {
		return s[i].Hits > s[j].Hits
	}
	return s[i].Category < s[j].Category
}

// Swap implements sort.Interface.
func (s CategoryStats) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}

// Sort sorts the stats by hits in descending order.
func (s CategoryStats) Sort() {
	sort.Sort(s)
}

// Top returns the most-used category, or nil if the list is empty.
func (s CategoryStats) Top() *CategoryStat {
	if len(s) == 0 {
		return nil
	}
	return &s[0]
}

// TotalHits returns the sum of hit counts across all categories.
func (s CategoryStats) TotalHits() int64 {
	var total int64
	for _, stat := range s {
		total += stat.Hits
	}
	return total
}
