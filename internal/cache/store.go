// Package cache implements time-bounded result memoization. A ResultCache
// encodes values as JSON and keeps them in a Store, either a bounded
// in-memory LRU or the sqlite record store.
package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codyseavey/cardprice/internal/models"
)

// Entry is one stored payload and the time it was written.
type Entry struct {
	Payload  []byte
	StoredAt time.Time
}

// Store persists cache entries. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, namespace, key string, e Entry) error
	Delete(ctx context.Context, key string) error
	// Sweep removes entries of namespace stored before cutoff.
	Sweep(ctx context.Context, namespace string, cutoff time.Time) (int, error)
}

type memoryEntry struct {
	namespace string
	entry     Entry
}

// MemoryStore keeps the most recently used entries in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	items *lru.Cache[string, memoryEntry]
}

// NewMemoryStore creates a store holding at most size entries.
func NewMemoryStore(size int) (*MemoryStore, error) {
	if size <= 0 {
		size = 2048
	}
	items, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{items: items}, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	e, ok := s.items.Get(key)
	if !ok {
		return Entry{}, false, nil
	}
	return e.entry, true, nil
}

func (s *MemoryStore) Set(_ context.Context, namespace, key string, e Entry) error {
	s.items.Add(key, memoryEntry{namespace: namespace, entry: e})
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.items.Remove(key)
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context, namespace string, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, key := range s.items.Keys() {
		e, ok := s.items.Peek(key)
		if !ok || e.namespace != namespace {
			continue
		}
		if e.entry.StoredAt.Before(cutoff) {
			s.items.Remove(key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of entries held.
func (s *MemoryStore) Len() int {
	return s.items.Len()
}

// GormStore keeps entries in the cache_entries table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	var row models.CacheEntry
	result := s.db.WithContext(ctx).Where("cache_key = ?", key).Limit(1).Find(&row)
	if result.Error != nil {
		return Entry{}, false, result.Error
	}
	if result.RowsAffected == 0 {
		return Entry{}, false, nil
	}
	return Entry{Payload: row.Payload, StoredAt: row.StoredAt}, true, nil
}

func (s *GormStore) Set(ctx context.Context, namespace, key string, e Entry) error {
	row := models.CacheEntry{
		Key:       key,
		Namespace: namespace,
		Payload:   e.Payload,
		StoredAt:  e.StoredAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"namespace", "payload", "stored_at"}),
	}).Create(&row).Error
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("cache_key = ?", key).Delete(&models.CacheEntry{}).Error
}

func (s *GormStore) Sweep(ctx context.Context, namespace string, cutoff time.Time) (int, error) {
	result := s.db.WithContext(ctx).
		Where("namespace = ? AND stored_at < ?", namespace, cutoff).
		Delete(&models.CacheEntry{})
	return int(result.RowsAffected), result.Error
}
