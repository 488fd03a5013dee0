package ingest

import (
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

// Entry is one link of a directory listing
type Entry struct {
	Name string
	URL  *url.URL
	Dir  bool
}

// Parser extracts entries from file-server directory listings
type Parser struct{}

// NewParser creates a new Parser instance
func NewParser() *Parser {
	return &Parser{}
}

// ParseListing returns the entries of a listing page. Only links that stay
// below page are kept; parent, sort and external links are dropped.
func (p *Parser) ParseListing(html string, page *url.URL) ([]Entry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	// Caddy browse pages mark rows with tr.file; other servers get a plain link scan
	selectors := []string{
		"tr.file a[href]",
		"table a[href]",
		"pre a[href]",
		"a[href]",
	}

	var links *goquery.Selection
	for _, selector := range selectors {
		found := doc.Find(selector)
		if found.Length() > 0 {
			log.Debug().Str("selector", selector).Int("count", found.Length()).Msg("Found listing links")
			links = found
			break
		}
	}
	if links == nil {
		return nil, nil
	}

	base := dirURL(page)
	seen := make(map[string]struct{})
	var entries []Entry

	links.Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		e, ok := p.entry(base, href)
		if !ok {
			return
		}
		key := e.URL.String()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		entries = append(entries, e)
	})

	return entries, nil
}

func (p *Parser) entry(base *url.URL, href string) (Entry, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "?") {
		return Entry{}, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return Entry{}, false
	}
	u := base.ResolveReference(ref)
	u.Fragment = ""
	if u.RawQuery != "" {
		return Entry{}, false
	}

	if u.Scheme != base.Scheme || u.Host != base.Host {
		return Entry{}, false
	}
	// children only
	if !strings.HasPrefix(u.Path, base.Path) || len(u.Path) <= len(base.Path) {
		return Entry{}, false
	}

	dir := strings.HasSuffix(u.Path, "/")
	name := path.Base(strings.TrimSuffix(u.Path, "/"))
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return Entry{}, false
	}
	return Entry{Name: name, URL: u, Dir: dir}, true
}

// dirURL makes sure relative links resolve inside the listed directory
func dirURL(u *url.URL) *url.URL {
	c := *u
	c.RawQuery = ""
	c.Fragment = ""
	if !strings.HasSuffix(c.Path, "/") {
		c.Path += "/"
		c.RawPath = ""
	}
	return &c
}
