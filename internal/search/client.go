package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrNotConfigured is returned when no search service URL is set
	ErrNotConfigured = errors.New("content search is not configured")
	// ErrUnavailable is returned when the search service cannot be reached
	ErrUnavailable = errors.New("content search service unavailable")
	// ErrUpstream is returned when the search service answers with an error
	ErrUpstream = errors.New("content search service error")
)

// Hit is one content-search result. Fields holds the service's JSON object
// verbatim; SubtitlePath is extracted from it.
type Hit struct {
	Fields       map[string]json.RawMessage
	SubtitlePath string
}

// subtitle path keys accepted from the service, in priority order
var pathKeys = []string{"subtitlePath", "subtitle_path", "path", "file", "filename"}

// Client calls the external subtitle-search service
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns nil when baseURL is empty
func NewClient(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Search queries {base}/search?query=…&categoryInfo=…&mode=subtitles
func (c *Client) Search(ctx context.Context, term, categoryInfo string) ([]Hit, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}

	params := url.Values{}
	params.Set("query", term)
	if categoryInfo != "" {
		params.Set("categoryInfo", categoryInfo)
	}
	params.Set("mode", "subtitles")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	hits, err := decodeHits(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return hits, nil
}

// decodeHits accepts {"results":[…]} or a bare array of hit objects
func decodeHits(body []byte) ([]Hit, error) {
	body = bytes.TrimSpace(body)
	var raw []map[string]json.RawMessage

	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode hits: %w", err)
		}
	} else {
		var envelope struct {
			Results []map[string]json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode hits: %w", err)
		}
		raw = envelope.Results
	}

	hits := make([]Hit, 0, len(raw))
	for _, fields := range raw {
		if fields == nil {
			continue
		}
		hits = append(hits, Hit{Fields: fields, SubtitlePath: subtitlePath(fields)})
	}
	return hits, nil
}

func subtitlePath(fields map[string]json.RawMessage) string {
	for _, k := range pathKeys {
		var s string
		if v, ok := fields[k]; ok && json.Unmarshal(v, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}
