package protocol

import (
	"encoding/json"
	"log"

	"tablesender/internal/models"
	"tablesender/internal/monitoring"
)

// Handlers receives classified inbound frames. Nil entries are skipped.
type Handlers struct {
	// Error receives the message of an application-level error frame.
	Error func(message string)
	// Menu receives a full menu snapshot.
	Menu func(items []models.MenuItem)
	// Ingredients receives a full ingredient catalog.
	Ingredients func(list []models.Ingredient)
	// Orders receives a full order snapshot. totalTables is non-nil when the
	// frame carried a table-count update.
	Orders func(orders []models.Order, totalTables *int)
	// Unclassified receives well-formed frames matching no known shape.
	Unclassified func(frame map[string]json.RawMessage)
}

// Router classifies inbound frames by shape. The wire protocol carries no
// discriminator field, only the presence of different payload keys, so frames
// are matched by precedence-ordered key checks: error, menu, ingredients,
// orders, then unclassified. Malformed frames are logged and dropped.
type Router struct {
	handlers Handlers
	metrics  *monitoring.Metrics
}

// NewRouter creates a router dispatching to the given handlers.
func NewRouter(handlers Handlers, metrics *monitoring.Metrics) *Router {
	return &Router{handlers: handlers, metrics: metrics}
}

// Route classifies a raw frame and dispatches it. It never panics on bad
// input; a frame that cannot be decoded produces no event.
func (r *Router) Route(frame []byte) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(frame, &fields); err != nil {
		log.Printf("protocol: dropping malformed frame: %v", err)
		r.metrics.CountFrame("malformed")
		return
	}

	switch {
	case hasKey(fields, "error"):
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(frame, &payload); err != nil {
			log.Printf("protocol: dropping bad error frame: %v", err)
			r.metrics.CountFrame("malformed")
			return
		}
		log.Printf("protocol: server error: %s", payload.Error)
		r.metrics.CountFrame("error")
		if r.handlers.Error != nil {
			r.handlers.Error(payload.Error)
		}

	case hasKey(fields, "menu"):
		var payload struct {
			Menu []models.MenuItem `json:"menu"`
		}
		if err := json.Unmarshal(frame, &payload); err != nil {
			log.Printf("protocol: dropping bad menu frame: %v", err)
			r.metrics.CountFrame("malformed")
			return
		}
		r.metrics.CountFrame("menu")
		if r.handlers.Menu != nil {
			r.handlers.Menu(payload.Menu)
		}

	case hasKey(fields, "ingredients"):
		var payload struct {
			Ingredients []models.Ingredient `json:"ingredients"`
		}
		if err := json.Unmarshal(frame, &payload); err != nil {
			log.Printf("protocol: dropping bad ingredients frame: %v", err)
			r.metrics.CountFrame("malformed")
			return
		}
		r.metrics.CountFrame("ingredients")
		if r.handlers.Ingredients != nil {
			r.handlers.Ingredients(payload.Ingredients)
		}

	case hasKey(fields, "orders"):
		var payload struct {
			Orders      []models.Order `json:"orders"`
			TotalTables *int           `json:"totalTables"`
		}
		if err := json.Unmarshal(frame, &payload); err != nil {
			log.Printf("protocol: dropping bad orders frame: %v", err)
			r.metrics.CountFrame("malformed")
			return
		}
		r.metrics.CountFrame("orders")
		if r.handlers.Orders != nil {
			r.handlers.Orders(payload.Orders, payload.TotalTables)
		}

	default:
		r.metrics.CountFrame("unclassified")
		if r.handlers.Unclassified != nil {
			r.handlers.Unclassified(fields)
		}
	}
}

func hasKey(fields map[string]json.RawMessage, key string) bool {
	_, ok := fields[key]
	return ok
}
