package ingest

import (
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/user/sermon-catalog-go/internal/model"
	"github.com/user/sermon-catalog-go/internal/query"
)

var (
	// 2024-01-07 Title
	leadingDatePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})[\s_-]+(.+)$`)
	// Title (2024-01-07)
	trailingDatePattern = regexp.MustCompile(`^(.+?)\s*\((\d{4}-\d{2}-\d{2})\)$`)
	// 20240107_Title
	compactDatePattern = regexp.MustCompile(`^(\d{8})_(.+)$`)
)

// MediaExts are the file extensions treated as primary media
var MediaExts = []string{".mp4", ".m4v", ".mov", ".webm"}

// Defaults fill fields a path does not carry
type Defaults struct {
	Category string
	Language string
}

// IsMedia reports whether name has a primary media extension
func IsMedia(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range MediaExts {
		if ext == e {
			return true
		}
	}
	return false
}

// ParseMediaPath derives a catalog row from a media path relative to the
// origin root: the first segment is the preacher, a second directory level
// is the category, and the filename carries title and date.
func ParseMediaPath(rel string, d Defaults) (*model.Video, bool) {
	rel = strings.Trim(rel, "/")
	if rel == "" || !IsMedia(rel) {
		return nil, false
	}

	segs := strings.Split(rel, "/")
	if len(segs) < 2 {
		return nil, false
	}

	v := &model.Video{
		Preacher:  strings.TrimSpace(segs[0]),
		Category:  query.Slugify(d.Category),
		Language:  query.NormalizeLanguage(d.Language),
		MediaPath: rel,
	}
	if v.Preacher == "" {
		return nil, false
	}
	if len(segs) >= 3 {
		display := strings.TrimSpace(segs[1])
		if slug := query.Slugify(display); slug != "" {
			v.Category = slug
			v.SearchCategory = display
		}
	}
	if v.Category == "" {
		v.Category = "uncategorized"
	}

	file := segs[len(segs)-1]
	stem := strings.TrimSuffix(file, path.Ext(file))
	v.Name = stem
	v.Title, v.Date = ParseTitle(stem)
	return v, true
}

// ParseTitle splits a filename stem into title and optional date
func ParseTitle(stem string) (string, *time.Time) {
	stem = strings.TrimSpace(stem)

	if m := leadingDatePattern.FindStringSubmatch(stem); m != nil {
		if t, err := time.Parse("2006-01-02", m[1]); err == nil {
			return cleanTitle(m[2]), &t
		}
	}
	if m := trailingDatePattern.FindStringSubmatch(stem); m != nil {
		if t, err := time.Parse("2006-01-02", m[2]); err == nil {
			return cleanTitle(m[1]), &t
		}
	}
	if m := compactDatePattern.FindStringSubmatch(stem); m != nil {
		if t, err := time.Parse("20060102", m[1]); err == nil {
			return cleanTitle(m[2]), &t
		}
	}
	return cleanTitle(stem), nil
}

func cleanTitle(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}
