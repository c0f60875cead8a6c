package mino

import (
	"sort"
)

// Filter is a set of parameters for the Players.Take function.
type Filter struct {
	// Indices indicates the indexes of the elements that must be included.
	// This list is updated based on the filters that are applied and it is
	// always sorted.
	Indices []int
}

// ApplyFilters applies the updaters and returns the result.
func ApplyFilters(updaters []FilterUpdater) *Filter {
	filters := &Filter{
		Indices: []int{},
	}

	for _, fn := range updaters {
		fn(filters)
	}

	return filters
}

// FilterUpdater is a function to update the filters.
type FilterUpdater func(*Filter)

// IndexFilter is a filter to include a given index.
func IndexFilter(index int) FilterUpdater {
	return func(filters *Filter) {
		arr := filters.Indices
		i := sort.IntSlice(arr).Search(index)

		// do nothing if the element is already there
		if i < len(arr) && arr[i] == index {
			return
		}

		filters.Indices = append(arr, 0)
		copy(filters.Indices[i+1:], arr[i:])
		filters.Indices[i] = index
	}
}

// RangeFilter is a filter to include the indices in the range [start, end).
func RangeFilter(start, end int) FilterUpdater {
	return func(filters *Filter) {
		for i := start; i < end; i++ {
			IndexFilter(i)(filters)
		}
	}
}
