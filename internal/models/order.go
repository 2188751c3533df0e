package models

// Order represents a server-confirmed order record for a table. The backend
// never merges records: a table accumulates one Order per send, and the client
// aggregates them for display.
type Order struct {
	OrderID   string      `json:"orderId"`
	Table     int         `json:"table"`
	Timestamp int64       `json:"timestamp"`
	Items     []OrderItem `json:"items"`
}

// OrderItem represents a single line item inside an Order. Price is the final,
// supplement-inclusive amount confirmed by the server; the client never
// re-derives it for billing. Timestamp identifies this item instance for
// modification targeting.
type OrderItem struct {
	ID                 string            `json:"id"`
	Name               map[string]string `json:"name"`
	Price              float64           `json:"price"`
	Ingredients        []string          `json:"ingredients,omitempty"`
	IngredientsRemoved []string          `json:"ingredientsRemoved,omitempty"`
	IngredientsAdded   []string          `json:"ingredientsAdded,omitempty"`
	Supplements        []string          `json:"supplements,omitempty"`
	SupplementPrice    float64           `json:"supplementPrice,omitempty"`
	Timestamp          int64             `json:"timestamp,omitempty"`
}

// Clone returns a deep copy of the order, including every item.
func (o Order) Clone() Order {
	out := o
	if o.Items != nil {
		out.Items = make([]OrderItem, len(o.Items))
		for i, item := range o.Items {
			out.Items[i] = item.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the item.
func (it OrderItem) Clone() OrderItem {
	out := it
	out.Name = cloneStringMap(it.Name)
	out.Ingredients = cloneStrings(it.Ingredients)
	out.IngredientsRemoved = cloneStrings(it.IngredientsRemoved)
	out.IngredientsAdded = cloneStrings(it.IngredientsAdded)
	out.Supplements = cloneStrings(it.Supplements)
	return out
}

// CloneOrders deep-copies a full order collection.
func CloneOrders(orders []Order) []Order {
	if orders == nil {
		return nil
	}
	out := make([]Order, len(orders))
	for i, o := range orders {
		out[i] = o.Clone()
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
