package stac

import "sort"

// SortDirection represents the sort direction.
type SortDirection string

const (
	// SortAsc represents ascending sort order.
	SortAsc SortDirection = "asc"
	// SortDesc represents descending sort order.
	SortDesc SortDirection = "desc"
)

// SortByDatetime orders items by acquisition datetime in place. The sort is
// stable, so items with equal datetimes keep their relative order.
func SortByDatetime(items []*Item, direction SortDirection) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Properties.Datetime, items[j].Properties.Datetime
		if direction == SortDesc {
			return a.After(b)
		}
		return a.Before(b)
	})
}
