package catalog

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is the read-through store behind catalog lookups. Implementations
// must be safe for concurrent use.
type Cache[V any] interface {
	Get(key string) (V, bool)
	Add(key string, value V)
	Remove(key string)
	Purge()
	Len() int
}

type lruCache[V any] struct {
	c *lru.Cache[string, V]
}

// NewLRUCache returns a bounded LRU cache. size <= 0 falls back to 128.
func NewLRUCache[V any](size int) (Cache[V], error) {
	if size <= 0 {
		size = 128
	}
	c, err := lru.New[string, V](size)
	if err != nil {
		return nil, err
	}
	return &lruCache[V]{c: c}, nil
}

func (l *lruCache[V]) Get(key string) (V, bool) { return l.c.Get(key) }
func (l *lruCache[V]) Add(key string, value V)  { l.c.Add(key, value) }
func (l *lruCache[V]) Remove(key string)        { l.c.Remove(key) }
func (l *lruCache[V]) Purge()                   { l.c.Purge() }
func (l *lruCache[V]) Len() int                 { return l.c.Len() }
