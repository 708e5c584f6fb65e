package stalecache

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/dwarvesf/onchain-tracker/internal/monitoring"
)

// Cache keeps the last good response per key so a read endpoint can keep
// serving when storage fails.
type Cache struct {
	name    string
	items   *cache.Cache
	metrics *monitoring.QueryMetricsRecorder
}

func New(name string, retention time.Duration, metrics *monitoring.QueryMetricsRecorder) *Cache {
	return &Cache{
		name:    name,
		items:   cache.New(retention, retention/4),
		metrics: metrics,
	}
}

func (c *Cache) Store(key string, value any) {
	c.items.SetDefault(key, value)
	c.metrics.RecordCacheOperation(c.name, "store")
}

// Stale returns the last stored value for key, if it is still retained.
func (c *Cache) Stale(key string) (any, bool) {
	v, ok := c.items.Get(key)
	if ok {
		c.metrics.RecordCacheOperation(c.name, "stale_hit")
	} else {
		c.metrics.RecordCacheOperation(c.name, "miss")
	}
	return v, ok
}
