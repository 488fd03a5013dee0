package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/user/sermon-catalog-go/internal/cache"
	"github.com/user/sermon-catalog-go/internal/model"
	"github.com/user/sermon-catalog-go/internal/query"
	"golang.org/x/sync/singleflight"
)

const (
	keyLanguages  = "languages"
	keyCategories = "categories"
	keyPreachers  = "preachers"
	keyCountPfx   = "count:"
	keyCountGen   = "count:gen"

	// minGenTTL keeps the generation alive well past any count written under it
	minGenTTL = 24 * time.Hour
)

// Cached serves counts and index lookups from a cache. Concurrent misses
// on the same key share one store call.
type Cached struct {
	Store
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group
}

// NewCached wraps inner with c
func NewCached(inner Store, c cache.Cache, ttl time.Duration) *Cached {
	return &Cached{Store: inner, cache: c, ttl: ttl}
}

// through loads key from the cache or fills it with load
func through[T any](ctx context.Context, c *Cached, key string, load func(context.Context) (T, error)) (T, error) {
	var out T
	if data, ok := c.cache.Get(ctx, key); ok {
		if err := json.Unmarshal(data, &out); err == nil {
			return out, nil
		}
		log.Warn().Str("key", key).Msg("Discarding undecodable cache entry")
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		val, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(val); err == nil {
			c.cache.Set(ctx, key, data, c.ttl)
		}
		return val, nil
	})
	if err != nil {
		return out, err
	}
	return v.(T), nil
}

// countKey scopes a filter's total to the current count generation
func (c *Cached) countKey(ctx context.Context, q query.Query) string {
	gen := "0"
	if data, ok := c.cache.Get(ctx, keyCountGen); ok && len(data) > 0 {
		gen = string(data)
	}
	return keyCountPfx + gen + ":" + q.FilterKey()
}

func (c *Cached) bumpCountGen(ctx context.Context) {
	ttl := 2 * c.ttl
	if ttl < minGenTTL {
		ttl = minGenTTL
	}
	gen := strconv.FormatInt(time.Now().UnixNano(), 36)
	c.cache.Set(ctx, keyCountGen, []byte(gen), ttl)
}

// CountVideos caches totals per filter
func (c *Cached) CountVideos(ctx context.Context, q query.Query) (int64, error) {
	return through(ctx, c, c.countKey(ctx, q), func(ctx context.Context) (int64, error) {
		return c.Store.CountVideos(ctx, q)
	})
}

// DistinctLanguages caches the language index
func (c *Cached) DistinctLanguages(ctx context.Context) ([]string, error) {
	return through(ctx, c, keyLanguages, c.Store.DistinctLanguages)
}

// Categories caches the category index
func (c *Cached) Categories(ctx context.Context) ([]model.CategorySummary, error) {
	return through(ctx, c, keyCategories, c.Store.Categories)
}

// Preachers caches the preacher index
func (c *Cached) Preachers(ctx context.Context) ([]model.PreacherSummary, error) {
	return through(ctx, c, keyPreachers, c.Store.Preachers)
}

// SaveVideos drops the index entries and starts a new count generation
// when rows were added
func (c *Cached) SaveVideos(ctx context.Context, videos []*model.Video) (int, int, error) {
	saved, dups, err := c.Store.SaveVideos(ctx, videos)
	if err == nil && saved > 0 {
		c.bumpCountGen(ctx)
		c.cache.Delete(ctx, keyLanguages, keyCategories, keyPreachers)
	}
	return saved, dups, err
}

var _ Store = (*Cached)(nil)
