package weather

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/urbantwin/flood-risk-service/internal/domain"
	"github.com/urbantwin/flood-risk-service/internal/observability"
)

// cacheWindow buckets cache keys in time so a stale observation set is never
// served past the provider's refresh cadence.
const cacheWindow = 10 * time.Minute

// CachedSource wraps a Source with an in-memory LRU cache keyed by
// coordinate and time window.
type CachedSource struct {
	inner   Source
	cache   *lruCache
	clock   clockwork.Clock
	metrics *observability.Metrics
}

// NewCachedSource creates a cache decorator around a weather source.
func NewCachedSource(inner Source, maxEntries int, metrics *observability.Metrics) *CachedSource {
	return &CachedSource{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		clock:   clockwork.NewRealClock(),
		metrics: metrics,
	}
}

// SetClock replaces the clock. Test use only.
func (c *CachedSource) SetClock(clock clockwork.Clock) { c.clock = clock }

func (c *CachedSource) FetchRainfallEvent(ctx context.Context, lat, lon float64) (domain.RainfallEvent, error) {
	bucket := c.clock.Now().UTC().Truncate(cacheWindow).Unix()
	key := fmt.Sprintf("%.4f,%.4f|%d", lat, lon, bucket)
	if event, ok := c.cache.get(key); ok {
		c.observeCache("hit")
		return event, nil
	}
	c.observeCache("miss")

	event, err := c.inner.FetchRainfallEvent(ctx, lat, lon)
	if err != nil {
		return event, err
	}
	c.cache.put(key, event)
	return event, nil
}

func (c *CachedSource) observeCache(result string) {
	if c.metrics != nil {
		c.metrics.WeatherCacheHits.WithLabelValues(result).Inc()
	}
}

// lruCache is a simple thread-safe LRU cache for rainfall events.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value domain.RainfallEvent
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (domain.RainfallEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.RainfallEvent{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.RainfallEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
