package match

import (
	"fmt"
	"sync"
)

// MemoryCollection is an in-process Collection. Ids start at 1 and are
// not reused after Clear.
type MemoryCollection struct {
	mu      sync.RWMutex
	records []Record
	nextID  int64
	closed  bool
}

// NewMemoryCollection returns an empty collection.
func NewMemoryCollection() *MemoryCollection {
	return &MemoryCollection{nextID: 1}
}

// Ready implements Collection.
func (c *MemoryCollection) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// Count implements Collection.
func (c *MemoryCollection) Count() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return 0, ErrNotReady
	}
	return len(c.records), nil
}

// All implements Collection.
func (c *MemoryCollection) All() ([]Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrNotReady
	}
	out := make([]Record, len(c.records))
	for i, r := range c.records {
		out[i] = Record{ID: r.ID, Feature: append(Feature(nil), r.Feature...)}
	}
	return out, nil
}

// Insert implements Collection.
func (c *MemoryCollection) Insert(f Feature) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrNotReady
	}
	if len(f) == 0 {
		return 0, ErrEmptyFeature
	}
	if len(c.records) > 0 && len(c.records[0].Feature) != len(f) {
		return 0, fmt.Errorf("%w: have %d, got %d", ErrDimensionMismatch, len(c.records[0].Feature), len(f))
	}
	id := c.nextID
	c.nextID++
	c.records = append(c.records, Record{ID: id, Feature: append(Feature(nil), f...)})
	return id, nil
}

// Clear implements Collection.
func (c *MemoryCollection) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrNotReady
	}
	c.records = nil
	return nil
}

// Close marks the collection as not ready.
func (c *MemoryCollection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
