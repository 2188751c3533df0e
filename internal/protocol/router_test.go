package protocol

import (
	"encoding/json"
	"testing"

	"tablesender/internal/models"
)

type routeRecorder struct {
	errors       []string
	menus        [][]models.MenuItem
	ingredients  [][]models.Ingredient
	orders       [][]models.Order
	totals       []*int
	unclassified []map[string]json.RawMessage
}

func (r *routeRecorder) handlers() Handlers {
	return Handlers{
		Error: func(msg string) { r.errors = append(r.errors, msg) },
		Menu:  func(items []models.MenuItem) { r.menus = append(r.menus, items) },
		Ingredients: func(list []models.Ingredient) {
			r.ingredients = append(r.ingredients, list)
		},
		Orders: func(orders []models.Order, totalTables *int) {
			r.orders = append(r.orders, orders)
			r.totals = append(r.totals, totalTables)
		},
		Unclassified: func(frame map[string]json.RawMessage) {
			r.unclassified = append(r.unclassified, frame)
		},
	}
}

func TestRouteOrdersWithTotalTables(t *testing.T) {
	rec := &routeRecorder{}
	router := NewRouter(rec.handlers(), nil)

	router.Route([]byte(`{"orders":[{"orderId":"order-1","table":2,"timestamp":1700000000000,"items":[]}],"totalTables":6}`))

	if len(rec.orders) != 1 {
		t.Fatalf("got %d order events, want 1", len(rec.orders))
	}
	if rec.orders[0][0].OrderID != "order-1" || rec.orders[0][0].Table != 2 {
		t.Errorf("order payload mangled: %+v", rec.orders[0][0])
	}
	if rec.totals[0] == nil || *rec.totals[0] != 6 {
		t.Errorf("totalTables = %v, want 6", rec.totals[0])
	}
}

func TestRouteOrdersWithoutTotalTables(t *testing.T) {
	rec := &routeRecorder{}
	router := NewRouter(rec.handlers(), nil)

	router.Route([]byte(`{"orders":[]}`))

	if len(rec.orders) != 1 {
		t.Fatalf("got %d order events, want 1", len(rec.orders))
	}
	if rec.totals[0] != nil {
		t.Errorf("totalTables should be nil when absent, got %d", *rec.totals[0])
	}
}

func TestRouteMenuNeverHitsOrdersPath(t *testing.T) {
	rec := &routeRecorder{}
	router := NewRouter(rec.handlers(), nil)

	router.Route([]byte(`{"menu":[{"id":"cafe","price":40,"name":{"fr":"Café","th":"กาแฟ"}}]}`))

	if len(rec.menus) != 1 {
		t.Fatalf("got %d menu events, want 1", len(rec.menus))
	}
	if len(rec.orders) != 0 {
		t.Errorf("menu frame must not trigger the order-snapshot path")
	}
	if rec.menus[0][0].Name["fr"] != "Café" {
		t.Errorf("localized name mangled: %+v", rec.menus[0][0].Name)
	}
}

func TestRoutePrecedenceErrorFirst(t *testing.T) {
	rec := &routeRecorder{}
	router := NewRouter(rec.handlers(), nil)

	// A frame carrying both error and menu keys classifies as an error.
	router.Route([]byte(`{"error":"kitchen on fire","menu":[]}`))

	if len(rec.errors) != 1 || rec.errors[0] != "kitchen on fire" {
		t.Fatalf("error event = %v", rec.errors)
	}
	if len(rec.menus) != 0 {
		t.Error("error frames must not also dispatch as menu snapshots")
	}
}

func TestRoutePrecedenceMenuOverOrders(t *testing.T) {
	rec := &routeRecorder{}
	router := NewRouter(rec.handlers(), nil)

	router.Route([]byte(`{"menu":[],"orders":[]}`))

	if len(rec.menus) != 1 || len(rec.orders) != 0 {
		t.Errorf("menu must win over orders: menus=%d orders=%d", len(rec.menus), len(rec.orders))
	}
}

func TestRouteIngredients(t *testing.T) {
	rec := &routeRecorder{}
	router := NewRouter(rec.handlers(), nil)

	router.Route([]byte(`{"ingredients":[{"id":"ham","name":{"fr":"Jambon"}}]}`))

	if len(rec.ingredients) != 1 {
		t.Fatalf("got %d ingredient events, want 1", len(rec.ingredients))
	}
	if rec.ingredients[0][0].ID != "ham" {
		t.Errorf("ingredient payload mangled: %+v", rec.ingredients[0][0])
	}
}

func TestRouteUnclassified(t *testing.T) {
	rec := &routeRecorder{}
	router := NewRouter(rec.handlers(), nil)

	router.Route([]byte(`{"hello":"world"}`))

	if len(rec.unclassified) != 1 {
		t.Fatalf("got %d unclassified events, want 1", len(rec.unclassified))
	}
	if _, ok := rec.unclassified[0]["hello"]; !ok {
		t.Error("unclassified frame should carry the raw payload")
	}
}

func TestRouteMalformedFrameDropped(t *testing.T) {
	rec := &routeRecorder{}
	router := NewRouter(rec.handlers(), nil)

	router.Route([]byte(`{not json`))
	router.Route([]byte(``))
	router.Route([]byte(`{"orders":"not-an-array"}`))

	if len(rec.orders)+len(rec.menus)+len(rec.errors)+len(rec.unclassified) != 0 {
		t.Error("malformed frames must produce no events")
	}
}

func TestRouteNilHandlers(t *testing.T) {
	router := NewRouter(Handlers{}, nil)

	// None of these may panic with no handlers registered.
	router.Route([]byte(`{"error":"x"}`))
	router.Route([]byte(`{"menu":[]}`))
	router.Route([]byte(`{"ingredients":[]}`))
	router.Route([]byte(`{"orders":[]}`))
	router.Route([]byte(`{"other":1}`))
}
