package state

import (
	"sort"

	"tablesender/internal/models"
)

// AggregatedOrder is the client-derived, per-table merge of every matching
// order record into one flattened item list for display and billing.
type AggregatedOrder struct {
	OrderID string             `json:"orderId"`
	Table   int                `json:"table"`
	Items   []models.OrderItem `json:"items"`
}

// AggregatedOrder merges all order records for a table. Items are flattened
// in the order the records appear and never deduplicated: two records may
// legitimately carry same-id items added at different times. A table without
// orders yields an empty-items placeholder so callers render an empty state
// uniformly.
func (s *Store) AggregatedOrder(table int) AggregatedOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg := AggregatedOrder{Table: table, Items: []models.OrderItem{}}
	for _, order := range s.orders {
		if order.Table != table {
			continue
		}
		if agg.OrderID == "" {
			agg.OrderID = order.OrderID
		}
		for _, item := range order.Items {
			agg.Items = append(agg.Items, item.Clone())
		}
	}
	return agg
}

// OrderTotal sums the supplement-inclusive price of every item on the table,
// plus any positive per-item supplement surcharge. Missing prices count as
// zero.
func (s *Store) OrderTotal(table int) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total float64
	for _, order := range s.orders {
		if order.Table != table {
			continue
		}
		for _, item := range order.Items {
			total += item.Price
			if item.SupplementPrice > 0 {
				total += item.SupplementPrice
			}
		}
	}
	return total
}

// FindParentOrder resolves the flattened item index back to the order record
// that owns it, so a modify intent can carry the correct correlation
// timestamp. The walk uses the same flattening order as AggregatedOrder, so
// indices agree between the two calls.
func (s *Store) FindParentOrder(table, flatIndex int) (models.Order, bool) {
	if flatIndex < 0 {
		return models.Order{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	i := 0
	for _, order := range s.orders {
		if order.Table != table {
			continue
		}
		if flatIndex < i+len(order.Items) {
			return order.Clone(), true
		}
		i += len(order.Items)
	}
	return models.Order{}, false
}

// TablesWithOrders lists the tables that currently have at least one item,
// sorted ascending.
func (s *Store) TablesWithOrders() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int]bool)
	for _, order := range s.orders {
		if order.Table > 0 && len(order.Items) > 0 {
			seen[order.Table] = true
		}
	}

	tables := make([]int, 0, len(seen))
	for t := range seen {
		tables = append(tables, t)
	}
	sort.Ints(tables)
	return tables
}
