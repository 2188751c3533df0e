package state

import (
	"sync"

	"tablesender/internal/models"
	"tablesender/internal/monitoring"
)

// defaultTableCount is used until the backend announces totalTables.
const defaultTableCount = 8

// Store holds the latest known menu, ingredient catalog and order collection.
// The backend is authoritative: every replace swaps a collection wholesale,
// never patches it. Collections are deep-copied on write and on read so
// presentation code can never mutate server-sourced data in place.
type Store struct {
	mu          sync.RWMutex
	orders      []models.Order
	menu        []models.MenuItem
	ingredients []models.Ingredient
	totalTables int

	cache   *Cache
	metrics *monitoring.Metrics
}

// NewStore creates a store, seeding each collection from the snapshot cache
// when one is supplied. Cache misses leave the collection empty.
func NewStore(cache *Cache, metrics *monitoring.Metrics) *Store {
	s := &Store{
		totalTables: defaultTableCount,
		cache:       cache,
		metrics:     metrics,
	}
	if cache != nil {
		cache.Load(cacheKeyOrders, &s.orders)
		cache.Load(cacheKeyMenu, &s.menu)
		cache.Load(cacheKeyIngredients, &s.ingredients)
		var n int
		if cache.Load(cacheKeyTotalTables, &n) && n > 0 {
			s.totalTables = n
		}
	}
	return s
}

// ReplaceOrders swaps the order collection for a fresh snapshot.
func (s *Store) ReplaceOrders(orders []models.Order) {
	copied := models.CloneOrders(orders)
	s.mu.Lock()
	s.orders = copied
	s.mu.Unlock()

	s.metrics.CountSnapshot("orders")
	if s.cache != nil {
		s.cache.Save(cacheKeyOrders, copied)
	}
}

// ReplaceMenu swaps the menu catalog for a fresh snapshot.
func (s *Store) ReplaceMenu(items []models.MenuItem) {
	copied := models.CloneMenu(items)
	s.mu.Lock()
	s.menu = copied
	s.mu.Unlock()

	s.metrics.CountSnapshot("menu")
	if s.cache != nil {
		s.cache.Save(cacheKeyMenu, copied)
	}
}

// ReplaceIngredients swaps the ingredient catalog for a fresh snapshot.
func (s *Store) ReplaceIngredients(list []models.Ingredient) {
	copied := models.CloneIngredients(list)
	s.mu.Lock()
	s.ingredients = copied
	s.mu.Unlock()

	s.metrics.CountSnapshot("ingredients")
	if s.cache != nil {
		s.cache.Save(cacheKeyIngredients, copied)
	}
}

// SetTableCount records the backend's table-count configuration.
func (s *Store) SetTableCount(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.totalTables = n
	s.mu.Unlock()

	if s.cache != nil {
		s.cache.Save(cacheKeyTotalTables, n)
	}
}

// Orders returns a deep copy of the current order collection.
func (s *Store) Orders() []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneOrders(s.orders)
}

// Menu returns a deep copy of the current menu catalog.
func (s *Store) Menu() []models.MenuItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneMenu(s.menu)
}

// MenuItem looks up a menu item by id.
func (s *Store) MenuItem(id string) (models.MenuItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.menu {
		if item.ID == id {
			return item.Clone(), true
		}
	}
	return models.MenuItem{}, false
}

// Ingredients returns a deep copy of the current ingredient catalog.
func (s *Store) Ingredients() []models.Ingredient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneIngredients(s.ingredients)
}

// TableCount returns the configured number of tables.
func (s *Store) TableCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalTables
}
