// Package search routes search requests to the catalog or to the external
// subtitle-search service.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/user/sermon-catalog-go/internal/model"
	"github.com/user/sermon-catalog-go/internal/query"
	"github.com/user/sermon-catalog-go/internal/source"
	"github.com/user/sermon-catalog-go/internal/store"
)

// ErrMissingQuery is returned when neither q nor query is present
var ErrMissingQuery = errors.New("missing search query")

// Mode selects the search backend
type Mode string

const (
	ModeCatalog Mode = "catalog"
	ModeContent Mode = "subtitles"
)

// Catalog search paging bounds
const (
	DefaultLimit = 24
	MaxLimit     = 100
)

// Request is a parsed search request
type Request struct {
	Mode         Mode
	Term         string
	CategoryInfo string
	Limit        int
	Offset       int
}

// ParseRequest picks the mode in a fixed order:
//  1. query with mode=subtitles or an advanced flag: content search
//  2. q: catalog search
//  3. query: catalog search with that term
//  4. anything else: ErrMissingQuery
func ParseRequest(values url.Values) (Request, error) {
	req := Request{
		CategoryInfo: strings.TrimSpace(values.Get("categoryInfo")),
		Limit:        query.BoundedInt(values.Get("limit"), DefaultLimit, 1, MaxLimit),
		Offset:       query.BoundedInt(values.Get("offset"), 0, 0, query.MaxPage*MaxLimit),
	}

	q := strings.TrimSpace(values.Get("q"))
	content := strings.TrimSpace(values.Get("query"))

	switch {
	case content != "" && wantsContent(values):
		req.Mode, req.Term = ModeContent, content
	case q != "":
		req.Mode, req.Term = ModeCatalog, q
	case content != "":
		req.Mode, req.Term = ModeCatalog, content
	default:
		return Request{}, ErrMissingQuery
	}
	return req, nil
}

func wantsContent(values url.Values) bool {
	if strings.EqualFold(strings.TrimSpace(values.Get("mode")), string(ModeContent)) {
		return true
	}
	for _, key := range []string{"advanced-search", "advanced"} {
		if !values.Has(key) {
			continue
		}
		v := strings.TrimSpace(values.Get(key))
		if v == "" {
			return true
		}
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		return true
	}
	return false
}

// Response is the body returned for either mode
type Response struct {
	Mode    Mode              `json:"mode"`
	Query   string            `json:"query"`
	Videos  []model.VideoView `json:"videos,omitempty"`
	Results []Result          `json:"results,omitempty"`
	Limit   int               `json:"limit,omitempty"`
	Offset  int               `json:"offset"`
	Count   int               `json:"count"`
}

// Dispatcher runs search requests
type Dispatcher struct {
	store    store.Store
	resolver source.Resolver
	client   *Client
}

// NewDispatcher creates a dispatcher; client may be nil when content search
// is not configured.
func NewDispatcher(st store.Store, resolver source.Resolver, client *Client) *Dispatcher {
	return &Dispatcher{store: st, resolver: resolver, client: client}
}

// Dispatch runs req against the backend its mode selects
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Response, error) {
	if req.Mode == ModeContent {
		return d.content(ctx, req)
	}
	return d.catalog(ctx, req)
}

func (d *Dispatcher) catalog(ctx context.Context, req Request) (*Response, error) {
	videos, err := d.store.SearchCatalog(ctx, query.Search(req.Term, req.Limit, req.Offset))
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}

	views := make([]model.VideoView, 0, len(videos))
	for _, v := range videos {
		views = append(views, model.NewVideoView(v, source.DefaultPolicy.ResolvedURLs(v, d.resolver)))
	}
	return &Response{
		Mode:   ModeCatalog,
		Query:  req.Term,
		Videos: views,
		Limit:  req.Limit,
		Offset: req.Offset,
		Count:  len(views),
	}, nil
}

func (d *Dispatcher) content(ctx context.Context, req Request) (*Response, error) {
	if d.client == nil {
		return nil, ErrNotConfigured
	}

	hits, err := d.client.Search(ctx, req.Term, req.CategoryInfo)
	if err != nil {
		return nil, err
	}

	results, err := Reconcile(ctx, d.store, hits)
	if err != nil {
		return nil, err
	}

	matched := 0
	for _, r := range results {
		if r.VideoID != nil {
			matched++
		}
	}
	log.Debug().Str("query", req.Term).Int("hits", len(results)).Int("matched", matched).Msg("Content search reconciled")

	return &Response{
		Mode:    ModeContent,
		Query:   req.Term,
		Results: results,
		Count:   len(results),
	}, nil
}
