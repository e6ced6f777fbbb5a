package creatures

import (
	"context"
	"time"

	"pokaimon_back/cache"
)

const (
	GalleryCacheKey   = "gallery:all"
	defaultGalleryTTL = 300 * time.Second
)

// Gallery is the cache-aside view of all creatures. A disabled or unreachable
// cache turns every read into a store read. Concurrent misses each reload the
// list; whichever write lands last is equivalent to the others.
type Gallery struct {
	repo  Repository
	cache *cache.Store
	ttl   time.Duration
}

func NewGallery(repo Repository, store *cache.Store, ttl time.Duration) *Gallery {
	if ttl <= 0 {
		ttl = defaultGalleryTTL
	}
	return &Gallery{repo: repo, cache: store, ttl: ttl}
}

func (g *Gallery) List(ctx context.Context) ([]Creature, error) {
	return cache.GetOrSet(ctx, g.cache, GalleryCacheKey, g.ttl, g.repo.ListNewestFirst)
}

func (g *Gallery) Invalidate(ctx context.Context) {
	g.cache.Delete(ctx, GalleryCacheKey)
}
