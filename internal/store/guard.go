package store

import (
	"context"
	"errors"
	"time"

	"github.com/user/sermon-catalog-go/internal/model"
	"github.com/user/sermon-catalog-go/internal/query"
	"golang.org/x/sync/semaphore"
)

// Guard admits at most size concurrent operations into the wrapped Store.
// Callers beyond that fail immediately with ErrPoolExhausted instead of
// queueing. Listing, counting and search run under the query timeout.
type Guard struct {
	inner   Store
	sem     *semaphore.Weighted
	timeout time.Duration
}

// NewGuard wraps inner with a pool of size slots
func NewGuard(inner Store, size int, timeout time.Duration) *Guard {
	if size <= 0 {
		size = 1
	}
	return &Guard{inner: inner, sem: semaphore.NewWeighted(int64(size)), timeout: timeout}
}

func (g *Guard) admit() (func(), error) {
	if !g.sem.TryAcquire(1) {
		return nil, ErrPoolExhausted
	}
	return func() { g.sem.Release(1) }, nil
}

// bounded runs fn with a slot and the query timeout applied
func bounded[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	release, err := g.admit()
	if err != nil {
		return zero, err
	}
	defer release()

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	v, err := fn(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, ErrQueryTimeout
		}
		return zero, err
	}
	return v, nil
}

// admitted runs fn with a slot and no extra timeout
func admitted[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	release, err := g.admit()
	if err != nil {
		return zero, err
	}
	defer release()
	return fn(ctx)
}

func (g *Guard) ListVideos(ctx context.Context, q query.Query) ([]*model.Video, error) {
	return bounded(ctx, g, func(ctx context.Context) ([]*model.Video, error) { return g.inner.ListVideos(ctx, q) })
}

func (g *Guard) CountVideos(ctx context.Context, q query.Query) (int64, error) {
	return bounded(ctx, g, func(ctx context.Context) (int64, error) { return g.inner.CountVideos(ctx, q) })
}

func (g *Guard) SearchCatalog(ctx context.Context, q query.Query) ([]*model.Video, error) {
	return bounded(ctx, g, func(ctx context.Context) ([]*model.Video, error) { return g.inner.SearchCatalog(ctx, q) })
}

func (g *Guard) FindByMediaPaths(ctx context.Context, paths []string) ([]*model.Video, error) {
	return bounded(ctx, g, func(ctx context.Context) ([]*model.Video, error) { return g.inner.FindByMediaPaths(ctx, paths) })
}

func (g *Guard) GetVideo(ctx context.Context, id uint) (*model.Video, error) {
	return admitted(ctx, g, func(ctx context.Context) (*model.Video, error) { return g.inner.GetVideo(ctx, id) })
}

func (g *Guard) IncrementClicks(ctx context.Context, id uint) error {
	_, err := admitted(ctx, g, func(ctx context.Context) (struct{}, error) { return struct{}{}, g.inner.IncrementClicks(ctx, id) })
	return err
}

func (g *Guard) Recommendations(ctx context.Context, seed *model.Video, limit int) ([]*model.Video, error) {
	return bounded(ctx, g, func(ctx context.Context) ([]*model.Video, error) { return g.inner.Recommendations(ctx, seed, limit) })
}

func (g *Guard) DistinctLanguages(ctx context.Context) ([]string, error) {
	return bounded(ctx, g, g.inner.DistinctLanguages)
}

func (g *Guard) Categories(ctx context.Context) ([]model.CategorySummary, error) {
	return bounded(ctx, g, g.inner.Categories)
}

func (g *Guard) Preachers(ctx context.Context) ([]model.PreacherSummary, error) {
	return bounded(ctx, g, g.inner.Preachers)
}

func (g *Guard) ExportVideos(ctx context.Context, f ExportFilter) ([]*model.Video, error) {
	return bounded(ctx, g, func(ctx context.Context) ([]*model.Video, error) { return g.inner.ExportVideos(ctx, f) })
}

func (g *Guard) Stats(ctx context.Context) (model.CatalogStats, error) {
	return admitted(ctx, g, g.inner.Stats)
}

// SaveVideos is used by ingest only and is not bounded by the query timeout
func (g *Guard) SaveVideos(ctx context.Context, videos []*model.Video) (int, int, error) {
	release, err := g.admit()
	if err != nil {
		return 0, 0, err
	}
	defer release()
	return g.inner.SaveVideos(ctx, videos)
}

// Ping bypasses admission so health checks work under load
func (g *Guard) Ping(ctx context.Context) error {
	return g.inner.Ping(ctx)
}

func (g *Guard) Close() error {
	return g.inner.Close()
}

var _ Store = (*Guard)(nil)
