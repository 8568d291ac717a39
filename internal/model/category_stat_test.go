package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryStats_Sort(t *testing.T) {
	tests := []struct {
		name  string
		stats CategoryStats
		want  []string
	}{
		{
			name: "sorts by hits descending",
			stats: CategoryStats{
				{Category: "Expenses:Alcohol:Wine", Hits: 1},
				{Category: "Expenses:Groceries:Dairy", Hits: 5},
				{Category: "Expenses:Groceries:Produce", Hits: 3},
			},
			want: []string{
				"Expenses:Groceries:Dairy",
				"Expenses:Groceries:Produce",
				"Expenses:Alcohol:Wine",
			},
		},
		{
			name: "equal hits order by category name",
			stats: CategoryStats{
				{Category: "Expenses:Groceries:Produce", Hits: 2},
				{Category: "Expenses:Groceries:Dairy", Hits: 2},
			},
			want: []string{
				"Expenses:Groceries:Dairy",
				"Expenses:Groceries:Produce",
			},
		},
		{
			name:  "empty list",
			stats: CategoryStats{},
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.stats.Sort()

			got := make([]string, 0, len(tt.stats))
			for _, stat := range tt.stats {
				got = append(got, stat.Category)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategoryStats_Top(t *testing.T) {
	stats := CategoryStats{
		{Category: "Expenses:Groceries:Dairy", Hits: 5},
		{Category: "Expenses:Alcohol:Wine", Hits: 1},
	}

	top := stats.Top()
	assert.NotNil(t, top)
	assert.Equal(t, "Expenses:Groceries:Dairy", top.Category)

	var empty CategoryStats
	assert.Nil(t, empty.Top())
}

func TestCategoryStats_TotalHits(t *testing.T) {
	stats := CategoryStats{
		{Category: "a", Hits: 5},
		{Category: "b", Hits: 2},
	}
	assert.Equal(t, int64(7), stats.TotalHits())
	assert.Equal(t, int64(0), CategoryStats(nil).TotalHits())
}
