package state

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Snapshot-cache keys. Each key stores the JSON-serialized last-known
// snapshot of one collection.
const (
	cacheKeyOrders      = "orders"
	cacheKeyMenu        = "menu"
	cacheKeyIngredients = "ingredients"
	cacheKeyTotalTables = "totalTables"
)

// Snapshot is a persisted key-value row holding one serialized collection.
type Snapshot struct {
	Key       string `gorm:"primary_key"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// Cache is the best-effort local snapshot cache. It seeds the store at
// startup and records every replace, so the client can show the last known
// state while the backend is unreachable. Every failure is logged and
// swallowed; a missing or corrupt entry falls back to an empty collection.
type Cache struct {
	db *gorm.DB
}

// OpenCache opens (and migrates) the snapshot database at path.
func OpenCache(path string) (*Cache, error) {
	db, err := gorm.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot cache: %w", err)
	}
	if err := db.AutoMigrate(&Snapshot{}).Error; err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate snapshot cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Save serializes v under key. Failures are logged and swallowed.
func (c *Cache) Save(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("cache: failed to serialize %q: %v", key, err)
		return
	}

	snap := Snapshot{Key: key}
	err = c.db.Where(Snapshot{Key: key}).
		Assign(map[string]any{"value": string(data)}).
		FirstOrCreate(&snap).Error
	if err != nil {
		log.Printf("cache: failed to save %q: %v", key, err)
	}
}

// Load deserializes the entry under key into out. It reports whether out was
// populated; absence or corruption of the entry is a normal miss.
func (c *Cache) Load(key string, out any) bool {
	var snap Snapshot
	if err := c.db.Where("key = ?", key).First(&snap).Error; err != nil {
		if !gorm.IsRecordNotFoundError(err) {
			log.Printf("cache: failed to load %q: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(snap.Value), out); err != nil {
		log.Printf("cache: discarding corrupt entry %q: %v", key, err)
		return false
	}
	return true
}
