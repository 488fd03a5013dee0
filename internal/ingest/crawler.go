// Package ingest discovers new recordings on the media origin and adds them
// to the catalog.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/user/sermon-catalog-go/internal/config"
	"github.com/user/sermon-catalog-go/internal/model"
	"golang.org/x/time/rate"
)

// Crawler discovers catalog rows on the media origin
type Crawler interface {
	// Crawl walks the origin and returns one row per media file found
	Crawl(ctx context.Context) ([]*model.Video, error)

	// Close releases crawler resources
	Close() error
}

const userAgent = "sermon-catalog-ingest/1.0"

// sidecar extensions by the column they fill
var (
	audioExts     = []string{".mp3", ".m4a"}
	subtitleExts  = []string{".vtt"}
	thumbnailExts = []string{".jpg", ".jpeg", ".png", ".webp"}
)

// HTTPCrawler walks file-server directory listings over HTTP
type HTTPCrawler struct {
	client  *http.Client
	limiter *rate.Limiter
	config  *config.IngestConfig
	parser  *Parser
	root    *url.URL
	backoff time.Duration
}

// NewHTTPCrawler creates a crawler rooted at cfg.RootURL
func NewHTTPCrawler(cfg *config.IngestConfig) (*HTTPCrawler, error) {
	if cfg == nil {
		return nil, errors.New("ingest config is required")
	}

	root, err := url.Parse(strings.TrimSpace(cfg.RootURL))
	if err != nil || (root.Scheme != "http" && root.Scheme != "https") || root.Host == "" {
		return nil, fmt.Errorf("invalid ingest root URL %q", cfg.RootURL)
	}
	root = dirURL(root)

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// token bucket, one request at a time
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)

	return &HTTPCrawler{
		client:  &http.Client{Transport: transport, Timeout: timeout},
		limiter: limiter,
		config:  cfg,
		parser:  NewParser(),
		root:    root,
		backoff: time.Second,
	}, nil
}

// Crawl walks the listing tree up to MaxDepth directory levels
func (c *HTTPCrawler) Crawl(ctx context.Context) ([]*model.Video, error) {
	defaults := Defaults{Category: c.config.DefaultCategory, Language: c.config.DefaultLanguage}

	var videos []*model.Video
	var walk func(dir *url.URL, depth int) error
	walk = func(dir *url.URL, depth int) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		html, err := c.fetchWithRetry(ctx, dir.String())
		if err != nil {
			return err
		}
		entries, err := c.parser.ParseListing(html, dir)
		if err != nil {
			return fmt.Errorf("parse listing %s: %w", dir, err)
		}

		log.Debug().Str("url", dir.String()).Int("entries", len(entries)).Msg("Parsed listing")

		videos = append(videos, c.collect(entries, defaults)...)

		if depth >= c.maxDepth() {
			return nil
		}
		for _, e := range entries {
			if !e.Dir {
				continue
			}
			if err := walk(e.URL, depth+1); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn().Err(err).Str("url", e.URL.String()).Msg("Skipping unreadable directory")
			}
		}
		return nil
	}

	if err := walk(c.root, 0); err != nil {
		return videos, err
	}
	return videos, nil
}

func (c *HTTPCrawler) maxDepth() int {
	if c.config.MaxDepth <= 0 {
		return 3
	}
	return c.config.MaxDepth
}

// collect turns the media files of one listing into rows, attaching
// sidecar files that share a media file's stem.
func (c *HTTPCrawler) collect(entries []Entry, d Defaults) []*model.Video {
	files := make(map[string]string)
	for _, e := range entries {
		if !e.Dir {
			files[strings.ToLower(e.Name)] = c.relative(e.URL)
		}
	}

	var out []*model.Video
	for _, e := range entries {
		if e.Dir || !IsMedia(e.Name) {
			continue
		}
		v, ok := ParseMediaPath(c.relative(e.URL), d)
		if !ok {
			continue
		}
		stem := strings.ToLower(strings.TrimSuffix(e.Name, path.Ext(e.Name)))
		v.AudioPath = sidecar(files, stem, audioExts)
		v.SubtitlePath = sidecar(files, stem, subtitleExts)
		v.ThumbnailPath = sidecar(files, stem, thumbnailExts)
		out = append(out, v)
	}
	return out
}

func sidecar(files map[string]string, stem string, exts []string) string {
	for _, ext := range exts {
		if rel, ok := files[stem+ext]; ok {
			return rel
		}
	}
	return ""
}

// relative returns u's decoded path below the crawl root
func (c *HTTPCrawler) relative(u *url.URL) string {
	return strings.TrimPrefix(u.Path, c.root.Path)
}

// Close releases idle connections
func (c *HTTPCrawler) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// fetchWithRetry fetches a URL with rate limiting and exponential backoff retry
func (c *HTTPCrawler) fetchWithRetry(ctx context.Context, targetURL string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter error: %w", err)
		}

		html, err := c.fetch(ctx, targetURL)
		if err == nil {
			return html, nil
		}

		lastErr = err
		var se *statusError
		if errors.As(err, &se) && se.permanent() {
			break
		}

		if attempt < c.config.MaxRetries {
			// 1x, 2x, 4x the base backoff
			backoff := time.Duration(math.Pow(2, float64(attempt))) * c.backoff
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP status %d", e.code)
}

// 4xx other than 429 will not change on retry
func (e *statusError) permanent() bool {
	return e.code >= 400 && e.code < 500 && e.code != http.StatusTooManyRequests
}

// fetch performs a single HTTP request
func (c *HTTPCrawler) fetch(ctx context.Context, targetURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request error: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	log.Debug().
		Int("status", resp.StatusCode).
		Str("url", targetURL).
		Msg("HTTP response")

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("read body error: %w", err)
	}
	return string(body), nil
}

// GetLimiter returns the rate limiter for testing purposes
func (c *HTTPCrawler) GetLimiter() *rate.Limiter {
	return c.limiter
}

// GetRateLimit returns the configured rate limit
func (c *HTTPCrawler) GetRateLimit() float64 {
	return c.config.RateLimit
}
