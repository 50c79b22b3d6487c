// Package dedup implements session-scoped once-only markers. A marker key is
// claimed with an atomic check-and-set against a Store; when the store
// fails the Claimer falls back to an in-memory flag so tracking continues.
package dedup

import (
	"strings"
	"sync"

	"ga4skill/internal/contract"
	"ga4skill/internal/logging"

	"go.uber.org/zap"
)

// Event kinds that are deduplicated per navigation.
const (
	KindChapterView     = contract.EventChapterView
	KindChapterComplete = contract.EventChapterComplete
)

// Key returns the marker key for kind on path:
// <namespace>:<version>:<kind>:<path>.
func Key(kind, path string) string {
	return strings.Join([]string{contract.DedupNamespace, contract.SchemaVersion, kind, path}, ":")
}

// Store is a session-scoped check-and-set primitive.
type Store interface {
	// CheckAndSet records key and reports whether this call set it. A key
	// already present yields false.
	CheckAndSet(key string) (bool, error)
}

// MemoryStore is a Store that lives as long as the process.
type MemoryStore struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]struct{})}
}

// CheckAndSet implements Store.
func (s *MemoryStore) CheckAndSet(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = struct{}{}
	return true, nil
}

// Claimer claims markers against a Store with an in-memory fallback.
type Claimer struct {
	store    Store
	logger   *zap.Logger
	mu       sync.Mutex
	fallback map[string]bool
}

// NewClaimer wraps store. A nil store behaves as one that always fails, so
// every claim goes to the fallback flags.
func NewClaimer(store Store) *Claimer {
	return &Claimer{
		store:    store,
		logger:   logging.Get(logging.CategoryDedup),
		fallback: make(map[string]bool),
	}
}

// Claim marks kind on path and reports whether this call was the first.
// It never returns an error: store failures are recovered with the fallback.
func (c *Claimer) Claim(kind, path string) bool {
	key := Key(kind, path)

	if c.store != nil {
		claimed, err := c.store.CheckAndSet(key)
		if err == nil {
			return claimed
		}
		c.logger.Debug("dedup store unavailable, using fallback flag",
			zap.String("key", key), zap.Error(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fallback[key] {
		return false
	}
	c.fallback[key] = true
	return true
}
