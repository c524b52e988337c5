package similarity

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedProvider memoizes embeddings in an LRU cache keyed by the exact input
// text. Retrieval queries repeat often within a conversation; caching them
// avoids a network round trip per repeated query.
type CachedProvider struct {
	inner Provider
	cache *lru.Cache[string, []float32]
}

// NewCachedProvider wraps inner with an LRU cache of the given size.
func NewCachedProvider(inner Provider, size int) (*CachedProvider, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedProvider{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector when present, otherwise delegates to the
// wrapped provider and caches the result. Errors are never cached.
func (p *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := p.cache.Get(text); ok {
		return vec, nil
	}
	vec, err := p.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	p.cache.Add(text, vec)
	return vec, nil
}

// Len returns the number of cached embeddings.
func (p *CachedProvider) Len() int {
	return p.cache.Len()
}
