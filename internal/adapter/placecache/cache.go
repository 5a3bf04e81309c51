// Package placecache memoizes nearest-place lookups.
package placecache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
	"github.com/couchcryptid/wildfire-etl/internal/observability"
)

// CachedResolver wraps a PlaceResolver with an in-memory LRU cache keyed by
// the coordinate rounded to three decimals (roughly 100 m).
type CachedResolver struct {
	inner   domain.PlaceResolver
	cache   *lru.Cache[string, domain.Place]
	metrics *observability.Metrics
}

// NewCachedResolver creates a cache decorator around a resolver.
func NewCachedResolver(inner domain.PlaceResolver, maxEntries int, metrics *observability.Metrics) (*CachedResolver, error) {
	cache, err := lru.New[string, domain.Place](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create place cache: %w", err)
	}
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	return &CachedResolver{inner: inner, cache: cache, metrics: metrics}, nil
}

func (c *CachedResolver) NearestPlace(ctx context.Context, lat, lon float64) (domain.Place, error) {
	key := cacheKey(lat, lon)
	if place, ok := c.cache.Get(key); ok {
		c.metrics.PlaceCache.WithLabelValues("hit").Inc()
		return place, nil
	}
	c.metrics.PlaceCache.WithLabelValues("miss").Inc()

	place, err := c.inner.NearestPlace(ctx, lat, lon)
	if err != nil {
		return place, err
	}
	// Only cache non-empty results so transient "not found" responses can be retried.
	if place.Name != "" {
		c.cache.Add(key, place)
	}
	return place, nil
}

// Len reports the number of cached places.
func (c *CachedResolver) Len() int { return c.cache.Len() }

func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.3f,%.3f", lat, lon)
}
