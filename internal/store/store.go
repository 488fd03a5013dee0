package store

import (
	"context"
	"errors"
	"time"

	"github.com/user/sermon-catalog-go/internal/model"
	"github.com/user/sermon-catalog-go/internal/query"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("not found")
	// ErrPoolExhausted is returned when no connection slot is free
	ErrPoolExhausted = errors.New("database busy")
	// ErrQueryTimeout is returned when a query exceeds its time budget
	ErrQueryTimeout = errors.New("query timed out")
)

// MatchBatchSize bounds the number of paths per FindByMediaPaths query
const MatchBatchSize = 50

// ExportFilter selects rows for incremental mirror export
type ExportFilter struct {
	Since   *time.Time
	AfterID uint
	Limit   int
}

// Store defines the interface for catalog persistence
type Store interface {
	// Listing
	ListVideos(ctx context.Context, q query.Query) ([]*model.Video, error)
	CountVideos(ctx context.Context, q query.Query) (int64, error)
	SearchCatalog(ctx context.Context, q query.Query) ([]*model.Video, error)

	// Detail
	GetVideo(ctx context.Context, id uint) (*model.Video, error)
	IncrementClicks(ctx context.Context, id uint) error
	Recommendations(ctx context.Context, seed *model.Video, limit int) ([]*model.Video, error)

	// Indexes
	DistinctLanguages(ctx context.Context) ([]string, error)
	Categories(ctx context.Context) ([]model.CategorySummary, error)
	Preachers(ctx context.Context) ([]model.PreacherSummary, error)

	// FindByMediaPaths returns rows whose media path equals, or ends with
	// "/" followed by, one of paths
	FindByMediaPaths(ctx context.Context, paths []string) ([]*model.Video, error)

	// Export and ingest
	ExportVideos(ctx context.Context, f ExportFilter) ([]*model.Video, error)
	SaveVideos(ctx context.Context, videos []*model.Video) (saved int, duplicates int, err error)
	Stats(ctx context.Context) (model.CatalogStats, error)

	// Health check
	Ping(ctx context.Context) error
	Close() error
}

// MatchesMediaPath reports whether stored satisfies the exact-or-suffix rule
func MatchesMediaPath(stored, p string) bool {
	if p == "" {
		return false
	}
	if stored == p {
		return true
	}
	return len(stored) > len(p) && stored[len(stored)-len(p)-1] == '/' && stored[len(stored)-len(p):] == p
}
