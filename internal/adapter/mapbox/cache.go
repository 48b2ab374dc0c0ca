package mapbox

import (
	"context"
	"fmt"

	"github.com/couchcryptid/coastal-alert-service/internal/cache"
	"github.com/couchcryptid/coastal-alert-service/internal/domain"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU keyed by coordinates
// rounded to six decimals.
type CachedGeocoder struct {
	inner domain.Geocoder
	cache *cache.LRU[string, domain.GeocodingResult]
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int) *CachedGeocoder {
	return &CachedGeocoder{
		inner: inner,
		cache: cache.NewLRU[string, domain.GeocodingResult](maxEntries),
	}
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := fmt.Sprintf("%.6f,%.6f", lat, lon)
	if result, ok := c.cache.Get(key); ok {
		return result, nil
	}
	result, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return result, err
	}
	// Only cache non-empty results so transient "not found" responses can be retried.
	if result.FormattedAddress != "" {
		c.cache.Put(key, result)
	}
	return result, nil
}
