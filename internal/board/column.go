package board

import (
	"github.com/evanschultz/funnel/internal/domain"
)

// Column is one stage with the items whose status matches its id.
type Column struct {
	Stage domain.Stage
	Items []domain.Item
	Total float64
	Over  bool
}

// Count returns the number of items in the column.
func (c Column) Count() int {
	return len(c.Items)
}

// Partition groups items into columns in stage order. Items whose status
// matches no stage are returned separately and appear in no column.
func Partition(stages []domain.Stage, items []domain.Item) ([]Column, []domain.Item) {
	ordered := domain.SortedStages(stages)
	columns := make([]Column, 0, len(ordered))
	index := make(map[string]int, len(ordered))
	for _, stage := range ordered {
		if _, dup := index[stage.ID]; dup {
			continue
		}
		index[stage.ID] = len(columns)
		columns = append(columns, Column{
			Stage: stage,
			Items: []domain.Item{},
		})
	}

	unplaced := make([]domain.Item, 0)
	for _, item := range items {
		idx, ok := index[item.Status]
		if !ok {
			unplaced = append(unplaced, item)
			continue
		}
		columns[idx].Items = append(columns[idx].Items, item)
	}
	for i := range columns {
		columns[i].Total = Total(columns[i].Items)
	}
	return columns, unplaced
}

// Total sums the coerced monetary value of items.
func Total(items []domain.Item) float64 {
	var total float64
	for _, item := range items {
		total += item.Amount()
	}
	return total
}
