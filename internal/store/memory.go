package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/user/sermon-catalog-go/internal/model"
	"github.com/user/sermon-catalog-go/internal/query"
)

// MemoryStore is an in-process fixture Store. It evaluates the same
// structured predicates the SQL store renders, so handlers behave alike
// on both.
type MemoryStore struct {
	mu     sync.RWMutex
	videos []*model.Video
	byPath map[string]*model.Video
	nextID uint
}

// NewMemoryStore creates a fixture store holding videos. Rows without an id
// are assigned one.
func NewMemoryStore(videos ...*model.Video) *MemoryStore {
	s := &MemoryStore{byPath: make(map[string]*model.Video), nextID: 1}
	for _, v := range videos {
		s.insert(clone(v))
	}
	return s
}

// LoadMemoryStore reads a JSON array of videos from path
func LoadMemoryStore(path string) (*MemoryStore, error) {
	if path == "" {
		return NewMemoryStore(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	var videos []*model.Video
	if err := json.Unmarshal(data, &videos); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	return NewMemoryStore(videos...), nil
}

func (s *MemoryStore) insert(v *model.Video) bool {
	if _, ok := s.byPath[v.MediaPath]; ok {
		return false
	}
	if v.ID == 0 {
		v.ID = s.nextID
	}
	if v.ID >= s.nextID {
		s.nextID = v.ID + 1
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	s.videos = append(s.videos, v)
	s.byPath[v.MediaPath] = v
	return true
}

func clone(v *model.Video) *model.Video {
	c := *v
	return &c
}

func (s *MemoryStore) match(ctx context.Context, q query.Query) ([]*model.Video, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*model.Video
	for _, v := range s.videos {
		if q.Matches(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// ListVideos returns one page of rows matching q
func (s *MemoryStore) ListVideos(ctx context.Context, q query.Query) ([]*model.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.match(ctx, q)
	if err != nil {
		return nil, err
	}
	sortVideos(rows, q.Sort)
	return window(rows, q.Offset, q.Limit), nil
}

// CountVideos counts rows matching q
func (s *MemoryStore) CountVideos(ctx context.Context, q query.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.match(ctx, q)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// SearchCatalog runs a substring search built by query.Search
func (s *MemoryStore) SearchCatalog(ctx context.Context, q query.Query) ([]*model.Video, error) {
	return s.ListVideos(ctx, q)
}

// GetVideo retrieves a video by id
func (s *MemoryStore) GetVideo(_ context.Context, id uint) (*model.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.videos {
		if v.ID == id {
			return clone(v), nil
		}
	}
	return nil, ErrNotFound
}

// IncrementClicks bumps the view counter
func (s *MemoryStore) IncrementClicks(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.videos {
		if v.ID == id {
			v.Clicks++
			return nil
		}
	}
	return nil
}

// Recommendations returns other rows by the seed's preacher, newest first
func (s *MemoryStore) Recommendations(_ context.Context, seed *model.Video, limit int) ([]*model.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []*model.Video
	for _, v := range s.videos {
		if v.Preacher == seed.Preacher && v.ID != seed.ID {
			rows = append(rows, v)
		}
	}
	sortVideos(rows, query.SortDate)
	return window(rows, 0, limit), nil
}

// DistinctLanguages returns the sorted distinct language codes
func (s *MemoryStore) DistinctLanguages(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw := make([]string, 0, len(s.videos))
	for _, v := range s.videos {
		raw = append(raw, v.Language)
	}
	return normalizeLanguages(raw), nil
}

// Categories summarizes rows per category
func (s *MemoryStore) Categories(_ context.Context) ([]model.CategorySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := make(map[string]*model.CategorySummary)
	names := make(map[string]string)
	for _, v := range s.videos {
		c, ok := idx[v.Category]
		if !ok {
			c = &model.CategorySummary{Slug: v.Category}
			idx[v.Category] = c
		}
		c.Count++
		if v.SearchCategory > names[v.Category] {
			names[v.Category] = v.SearchCategory
		}
	}

	out := make([]model.CategorySummary, 0, len(idx))
	for slug, c := range idx {
		c.Name = names[slug]
		if c.Name == "" {
			c.Name = slug
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

// Preachers summarizes rows per preacher
func (s *MemoryStore) Preachers(_ context.Context) ([]model.PreacherSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := make(map[string]*model.PreacherSummary)
	for _, v := range s.videos {
		p, ok := idx[v.Preacher]
		if !ok {
			p = &model.PreacherSummary{Slug: query.Slugify(v.Preacher), Name: v.Preacher}
			idx[v.Preacher] = p
		}
		p.Count++
		if v.Date != nil && (p.LatestDate == nil || v.Date.After(*p.LatestDate)) {
			d := *v.Date
			p.LatestDate = &d
		}
	}

	out := make([]model.PreacherSummary, 0, len(idx))
	for _, p := range idx {
		out = append(out, *p)
	}
	orderPreachers(out)
	return out, nil
}

// FindByMediaPaths matches paths exactly or as a trailing path suffix
func (s *MemoryStore) FindByMediaPaths(_ context.Context, paths []string) ([]*model.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Video
	for _, v := range s.videos {
		for _, p := range paths {
			if MatchesMediaPath(v.MediaPath, p) {
				out = append(out, clone(v))
				break
			}
		}
	}
	return out, nil
}

// ExportVideos returns rows for mirror synchronization in id order
func (s *MemoryStore) ExportVideos(_ context.Context, f ExportFilter) ([]*model.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []*model.Video
	for _, v := range s.videos {
		if v.ID <= f.AfterID {
			continue
		}
		if f.Since != nil && v.CreatedAt.Before(*f.Since) {
			continue
		}
		rows = append(rows, clone(v))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return window(rows, 0, f.Limit), nil
}

// SaveVideos inserts rows whose media path is not yet present
func (s *MemoryStore) SaveVideos(_ context.Context, videos []*model.Video) (saved int, duplicates int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range videos {
		c := clone(v)
		c.ID = 0
		if s.insert(c) {
			v.ID = c.ID
			saved++
		} else {
			duplicates++
		}
	}
	return saved, duplicates, nil
}

// Stats summarizes the catalog
func (s *MemoryStore) Stats(_ context.Context) (model.CatalogStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st model.CatalogStats
	for _, v := range s.videos {
		st.Total++
		if v.ID > st.MaxID {
			st.MaxID = v.ID
		}
		if st.LastCreatedAt == nil || v.CreatedAt.After(*st.LastCreatedAt) {
			t := v.CreatedAt
			st.LastCreatedAt = &t
		}
	}
	return st, nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }

// sortVideos orders rows like query.OrderDate / query.OrderClicks. Rows
// without a date sort last, as NULLs do in a descending MySQL sort.
func sortVideos(rows []*model.Video, by query.Sort) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if by == query.SortClicks {
			if a.Clicks != b.Clicks {
				return a.Clicks > b.Clicks
			}
			return a.ID > b.ID
		}
		switch {
		case a.Date == nil && b.Date == nil:
		case a.Date == nil:
			return false
		case b.Date == nil:
			return true
		case !a.Date.Equal(*b.Date):
			return a.Date.After(*b.Date)
		}
		return a.ID > b.ID
	})
}

func window(rows []*model.Video, offset, limit int) []*model.Video {
	if offset >= len(rows) {
		return []*model.Video{}
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	out := make([]*model.Video, len(rows))
	for i, v := range rows {
		out[i] = clone(v)
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
