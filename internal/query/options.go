package query

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Length buckets recordings by runtime
type Length string

const (
	LengthAny   Length = ""
	LengthShort Length = "short"
	LengthLong  Length = "long"
)

// Sort is an honored sort key
type Sort string

const (
	SortDate   Sort = "date"
	SortClicks Sort = "clicks"
)

// MaxPage bounds the page number so offsets cannot overflow
const MaxPage = 1_000_000

var languagePattern = regexp.MustCompile(`^[a-z]{2}$`)

// Options are the normalized listing inputs. Every field is optional; the
// zero value of a filter means "no filter".
type Options struct {
	Preacher       string
	Category       string
	SearchCategory string
	Language       string
	Length         Length
	Page           int
	Limit          int
	Sort           Sort
}

// LimitPolicy is the page-size allow-list with its legacy aliases
type LimitPolicy struct {
	Allowed []int
	Legacy  map[int]int
}

// ListingLimits is the page-size policy of listing endpoints
var ListingLimits = LimitPolicy{
	Allowed: []int{24, 48, 96},
	Legacy:  map[int]int{25: 24, 50: 48, 100: 96},
}

// Default returns the first allowed page size
func (p LimitPolicy) Default() int {
	if len(p.Allowed) == 0 {
		return 24
	}
	return p.Allowed[0]
}

// Normalize maps a requested page size onto the allow-list
func (p LimitPolicy) Normalize(n int) int {
	for _, a := range p.Allowed {
		if n == a {
			return n
		}
	}
	if mapped, ok := p.Legacy[n]; ok {
		return mapped
	}
	return p.Default()
}

// ParseOptions normalizes raw query parameters. Unrecognized or invalid
// values are dropped silently, never reported as errors.
func ParseOptions(values url.Values, limits LimitPolicy) Options {
	opts := Options{
		Preacher:       strings.TrimSpace(values.Get("preacher")),
		Category:       strings.TrimSpace(values.Get("category")),
		SearchCategory: strings.TrimSpace(first(values, "search_category", "searchCategory")),
		Language:       NormalizeLanguage(values.Get("language")),
		Length:         parseLength(values.Get("length")),
		Page:           parsePage(values.Get("page")),
		Limit:          limits.Normalize(atoi(values.Get("limit"))),
		Sort:           parseSort(values.Get("sort")),
	}
	return opts
}

// NormalizeLanguage lowercases a language code and drops anything that is
// not two ASCII letters.
func NormalizeLanguage(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if !languagePattern.MatchString(s) {
		return ""
	}
	return s
}

// Offset is the row offset of the requested page
func (o Options) Offset() int {
	return (o.Page - 1) * o.Limit
}

// BoundedInt parses raw and clamps it to [min, max]; unparseable values
// yield def.
func BoundedInt(raw string, def, min, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	if n < min {
		if def < min {
			return min
		}
		return def
	}
	if n > max {
		return max
	}
	return n
}

func parseLength(s string) Length {
	switch l := Length(strings.ToLower(strings.TrimSpace(s))); l {
	case LengthShort, LengthLong:
		return l
	}
	return LengthAny
}

func parseSort(s string) Sort {
	if Sort(strings.ToLower(strings.TrimSpace(s))) == SortClicks {
		return SortClicks
	}
	return SortDate
}

func parsePage(s string) int {
	n := atoi(s)
	if n < 1 {
		return 1
	}
	if n > MaxPage {
		return MaxPage
	}
	return n
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func first(values url.Values, keys ...string) string {
	for _, k := range keys {
		if v := values.Get(k); v != "" {
			return v
		}
	}
	return ""
}
