package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"tablesender/internal/models"
)

// Sender transmits an encoded message. Send reports whether transmission was
// attempted, never whether the server accepted it; acknowledgement arrives
// asynchronously as a fresh snapshot.
type Sender interface {
	Send(v any) bool
}

// Encoder builds outbound intent messages from UI-level intents plus the
// current timestamp and hands them to the connection manager.
type Encoder struct {
	sender Sender
	now    func() int64
}

// NewEncoder creates an encoder writing to the given sender.
func NewEncoder(sender Sender) *Encoder {
	return &Encoder{
		sender: sender,
		now: func() int64 {
			return time.Now().UnixMilli()
		},
	}
}

type itemPayload struct {
	ID          string            `json:"id"`
	Price       float64           `json:"price"`
	Name        map[string]string `json:"name"`
	Ingredients []string          `json:"ingredients,omitempty"`
	Supplements []string          `json:"supplements,omitempty"`
}

type addRemovePayload struct {
	Table     int         `json:"table"`
	Timestamp int64       `json:"timestamp"`
	Action    string      `json:"action,omitempty"`
	Item      itemPayload `json:"item"`
}

type modifyPayload struct {
	Action             string      `json:"action"`
	OriginalTimestamp  int64       `json:"originalTimestamp"`
	Timestamp          int64       `json:"timestamp"`
	Item               itemPayload `json:"item"`
	IngredientsRemoved []string    `json:"ingredientsRemoved"`
	IngredientsAdded   []string    `json:"ingredientsAdded"`
	Supplements        []string    `json:"supplements"`
}

type requestPayload struct {
	Action    string `json:"action"`
	Timestamp int64  `json:"timestamp"`
}

// AddItem sends an add-item intent for a table.
func (e *Encoder) AddItem(table int, item models.OrderItem) bool {
	return e.sender.Send(addRemovePayload{
		Table:     table,
		Timestamp: e.now(),
		Item: itemPayload{
			ID:          item.ID,
			Price:       item.Price,
			Name:        item.Name,
			Ingredients: item.Ingredients,
			Supplements: item.Supplements,
		},
	})
}

// RemoveItem sends a remove-item intent for a table.
func (e *Encoder) RemoveItem(table int, item models.OrderItem) bool {
	return e.sender.Send(addRemovePayload{
		Table:     table,
		Timestamp: e.now(),
		Action:    "remove",
		Item: itemPayload{
			ID:          item.ID,
			Price:       item.Price,
			Name:        item.Name,
			Ingredients: item.Ingredients,
			Supplements: item.Supplements,
		},
	})
}

// ModifyItem sends a modify-item intent addressed at the order that owns the
// item. The correlation timestamp is the owning order's timestamp, or, when
// absent, the numeric suffix of its order id. When neither resolves, nothing
// is sent and the error describes why: emitting a malformed correlation id
// would silently target the wrong order.
func (e *Encoder) ModifyItem(order models.Order, item models.OrderItem, removed, added, supplements []string) (bool, error) {
	original, err := correlationTimestamp(order)
	if err != nil {
		return false, err
	}

	sent := e.sender.Send(modifyPayload{
		Action:            "modify",
		OriginalTimestamp: original,
		Timestamp:         e.now(),
		Item: itemPayload{
			ID:    item.ID,
			Price: item.Price,
			Name:  item.Name,
		},
		IngredientsRemoved: emptyIfNil(removed),
		IngredientsAdded:   emptyIfNil(added),
		Supplements:        emptyIfNil(supplements),
	})
	return sent, nil
}

// RequestState asks the backend for a full order snapshot.
func (e *Encoder) RequestState() bool {
	return e.request("getState")
}

// RequestMenu asks the backend for the menu catalog.
func (e *Encoder) RequestMenu() bool {
	return e.request("getMenu")
}

// RequestIngredients asks the backend for the ingredient catalog.
func (e *Encoder) RequestIngredients() bool {
	return e.request("getIngredients")
}

func (e *Encoder) request(action string) bool {
	return e.sender.Send(requestPayload{Action: action, Timestamp: e.now()})
}

func correlationTimestamp(order models.Order) (int64, error) {
	if order.Timestamp != 0 {
		return order.Timestamp, nil
	}
	// Fall back to the order id suffix: ids of the form "order-<millis>".
	if i := strings.LastIndex(order.OrderID, "-"); i >= 0 {
		if ts, err := strconv.ParseInt(order.OrderID[i+1:], 10, 64); err == nil && ts > 0 {
			return ts, nil
		}
	}
	return 0, fmt.Errorf("cannot resolve correlation timestamp for order %q", order.OrderID)
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
