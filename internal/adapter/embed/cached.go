package embed

import (
	"context"

	"github.com/couchcryptid/coastal-alert-service/internal/cache"
	"github.com/couchcryptid/coastal-alert-service/internal/domain"
	"github.com/couchcryptid/coastal-alert-service/internal/observability"
)

// CachedEmbedder memoizes embeddings by exact text.
type CachedEmbedder struct {
	inner   domain.Embedder
	cache   *cache.LRU[string, []float32]
	metrics *observability.Metrics
}

// NewCachedEmbedder wraps inner with an LRU of maxEntries vectors.
func NewCachedEmbedder(inner domain.Embedder, maxEntries int, metrics *observability.Metrics) *CachedEmbedder {
	return &CachedEmbedder{
		inner:   inner,
		cache:   cache.NewLRU[string, []float32](maxEntries),
		metrics: metrics,
	}
}

// Embed returns the cached vector for text or fetches and stores it.
// Callers must not modify the returned slice.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.cache.Get(text); ok {
		c.metrics.EmbedCache.WithLabelValues("hit").Inc()
		return vec, nil
	}
	c.metrics.EmbedCache.WithLabelValues("miss").Inc()

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Put(text, vec)
	return vec, nil
}
