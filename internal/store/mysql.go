package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/user/sermon-catalog-go/internal/config"
	"github.com/user/sermon-catalog-go/internal/model"
	"github.com/user/sermon-catalog-go/internal/query"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// MySQLStore implements Store using MySQL through gorm
type MySQLStore struct {
	db *gorm.DB
}

// NewMySQLStore opens the database, sizes the pool and migrates the schema
func NewMySQLStore(cfg *config.DBConfig) (*MySQLStore, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	sqlDB.SetMaxIdleConns(cfg.MaxConns / 2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&model.Video{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &MySQLStore{db: db}, nil
}

// filtered applies the composed predicate of q
func (s *MySQLStore) filtered(ctx context.Context, q query.Query) *gorm.DB {
	tx := s.db.WithContext(ctx).Model(&model.Video{})
	if q.Where != "" {
		tx = tx.Where(q.Where, q.Args...)
	}
	return tx
}

// ListVideos returns one page of rows matching q
func (s *MySQLStore) ListVideos(ctx context.Context, q query.Query) ([]*model.Video, error) {
	var videos []*model.Video
	result := s.filtered(ctx, q).
		Order(q.Order).
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&videos)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to list videos: %w", result.Error)
	}
	return videos, nil
}

// CountVideos counts rows matching q, ignoring its window
func (s *MySQLStore) CountVideos(ctx context.Context, q query.Query) (int64, error) {
	var count int64
	if err := s.filtered(ctx, q).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count videos: %w", err)
	}
	return count, nil
}

// SearchCatalog runs a substring search built by query.Search
func (s *MySQLStore) SearchCatalog(ctx context.Context, q query.Query) ([]*model.Video, error) {
	videos, err := s.ListVideos(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to search videos: %w", err)
	}
	return videos, nil
}

// GetVideo retrieves a video by id
func (s *MySQLStore) GetVideo(ctx context.Context, id uint) (*model.Video, error) {
	var video model.Video
	result := s.db.WithContext(ctx).First(&video, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get video: %w", result.Error)
	}
	return &video, nil
}

// IncrementClicks bumps the view counter in place
func (s *MySQLStore) IncrementClicks(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).
		Model(&model.Video{}).
		Where("id = ?", id).
		UpdateColumn("clicks", gorm.Expr("clicks + ?", 1))

	if result.Error != nil {
		return fmt.Errorf("failed to increment clicks: %w", result.Error)
	}
	return nil
}

// Recommendations returns other rows by the seed's preacher, newest first
func (s *MySQLStore) Recommendations(ctx context.Context, seed *model.Video, limit int) ([]*model.Video, error) {
	var videos []*model.Video
	result := s.db.WithContext(ctx).
		Where("preacher = ? AND id <> ?", seed.Preacher, seed.ID).
		Order(query.OrderDate).
		Limit(limit).
		Find(&videos)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to get recommendations: %w", result.Error)
	}
	return videos, nil
}

// DistinctLanguages returns the sorted distinct language codes
func (s *MySQLStore) DistinctLanguages(ctx context.Context) ([]string, error) {
	var raw []string
	result := s.db.WithContext(ctx).
		Model(&model.Video{}).
		Where("language IS NOT NULL AND language <> ''").
		Distinct().
		Pluck("language", &raw)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to get languages: %w", result.Error)
	}
	return normalizeLanguages(raw), nil
}

// Categories summarizes rows per category
func (s *MySQLStore) Categories(ctx context.Context) ([]model.CategorySummary, error) {
	var rows []struct {
		Category string
		Name     string
		Count    int64
	}
	result := s.db.WithContext(ctx).
		Model(&model.Video{}).
		Select("category, COALESCE(MAX(search_category), '') AS name, COUNT(*) AS count").
		Group("category").
		Order("category").
		Scan(&rows)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to get categories: %w", result.Error)
	}

	out := make([]model.CategorySummary, 0, len(rows))
	for _, r := range rows {
		name := r.Name
		if name == "" {
			name = r.Category
		}
		out = append(out, model.CategorySummary{Slug: r.Category, Name: name, Count: r.Count})
	}
	return out, nil
}

// Preachers summarizes rows per preacher
func (s *MySQLStore) Preachers(ctx context.Context) ([]model.PreacherSummary, error) {
	var rows []struct {
		Preacher   string
		Count      int64
		LatestDate *time.Time
	}
	result := s.db.WithContext(ctx).
		Model(&model.Video{}).
		Select("preacher, COUNT(*) AS count, MAX(date) AS latest_date").
		Group("preacher").
		Scan(&rows)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to get preachers: %w", result.Error)
	}

	out := make([]model.PreacherSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.PreacherSummary{
			Slug:       query.Slugify(r.Preacher),
			Name:       r.Preacher,
			Count:      r.Count,
			LatestDate: r.LatestDate,
		})
	}
	orderPreachers(out)
	return out, nil
}

// FindByMediaPaths matches paths exactly or as a trailing path suffix,
// MatchBatchSize paths per query
func (s *MySQLStore) FindByMediaPaths(ctx context.Context, paths []string) ([]*model.Video, error) {
	var out []*model.Video
	seen := make(map[uint]struct{})

	for start := 0; start < len(paths); start += MatchBatchSize {
		end := start + MatchBatchSize
		if end > len(paths) {
			end = len(paths)
		}
		batch := paths[start:end]

		conds := make([]string, 0, len(batch)+1)
		args := make([]any, 0, len(batch)+1)
		conds = append(conds, "media_path IN ?")
		args = append(args, batch)
		for _, p := range batch {
			conds = append(conds, "media_path LIKE ?")
			args = append(args, "%/"+query.EscapeLike(p))
		}

		var videos []*model.Video
		result := s.db.WithContext(ctx).
			Where(strings.Join(conds, " OR "), args...).
			Find(&videos)
		if result.Error != nil {
			return nil, fmt.Errorf("failed to match media paths: %w", result.Error)
		}
		for _, v := range videos {
			if _, ok := seen[v.ID]; ok {
				continue
			}
			seen[v.ID] = struct{}{}
			out = append(out, v)
		}
	}
	return out, nil
}

// ExportVideos returns rows for mirror synchronization in id order
func (s *MySQLStore) ExportVideos(ctx context.Context, f ExportFilter) ([]*model.Video, error) {
	tx := s.db.WithContext(ctx).Where("id > ?", f.AfterID)
	if f.Since != nil {
		tx = tx.Where("created_at >= ?", *f.Since)
	}

	var videos []*model.Video
	if err := tx.Order("id ASC").Limit(f.Limit).Find(&videos).Error; err != nil {
		return nil, fmt.Errorf("failed to export videos: %w", err)
	}
	return videos, nil
}

// SaveVideos inserts new rows in batch; rows whose media path already
// exists are skipped
func (s *MySQLStore) SaveVideos(ctx context.Context, videos []*model.Video) (saved int, duplicates int, err error) {
	if len(videos) == 0 {
		return 0, 0, nil
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "media_path"}},
		DoNothing: true,
	}).CreateInBatches(videos, 100)

	if result.Error != nil {
		return 0, 0, fmt.Errorf("failed to save videos: %w", result.Error)
	}

	saved = int(result.RowsAffected)
	duplicates = len(videos) - saved
	return saved, duplicates, nil
}

// Stats summarizes the catalog
func (s *MySQLStore) Stats(ctx context.Context) (model.CatalogStats, error) {
	var row struct {
		Total         int64
		MaxID         uint
		LastCreatedAt *time.Time
	}
	result := s.db.WithContext(ctx).
		Model(&model.Video{}).
		Select("COUNT(*) AS total, COALESCE(MAX(id), 0) AS max_id, MAX(created_at) AS last_created_at").
		Scan(&row)

	if result.Error != nil {
		return model.CatalogStats{}, fmt.Errorf("failed to get stats: %w", result.Error)
	}
	return model.CatalogStats{Total: row.Total, MaxID: row.MaxID, LastCreatedAt: row.LastCreatedAt}, nil
}

// Ping checks database connectivity
func (s *MySQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// DB returns the underlying gorm.DB instance (for testing)
func (s *MySQLStore) DB() *gorm.DB {
	return s.db
}

func normalizeLanguages(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// orderPreachers sorts by slug then name. Names that fold to the same slug
// get a numeric suffix in name order, so every preacher has its own slug.
func orderPreachers(ps []model.PreacherSummary) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Slug != ps[j].Slug {
			return ps[i].Slug < ps[j].Slug
		}
		return ps[i].Name < ps[j].Name
	})

	taken := make(map[string]bool, len(ps))
	for _, p := range ps {
		taken[p.Slug] = true
	}
	next := make(map[string]int, len(ps))
	for i := range ps {
		base := ps[i].Slug
		n, dup := next[base]
		if !dup {
			next[base] = 2
			continue
		}
		slug := fmt.Sprintf("%s-%d", base, n)
		for taken[slug] {
			n++
			slug = fmt.Sprintf("%s-%d", base, n)
		}
		next[base] = n + 1
		taken[slug] = true
		ps[i].Slug = slug
	}
}

var _ Store = (*MySQLStore)(nil)
