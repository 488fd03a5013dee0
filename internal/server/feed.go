package server

import (
	"bytes"
	"net/http"

	"github.com/user/sermon-catalog-go/internal/feed"
	"github.com/user/sermon-catalog-go/internal/query"
	"github.com/user/sermon-catalog-go/internal/source"
)

// handleFeed renders the newest rows matching the listing filters as RSS
func (s *Server) handleFeed(kind source.Kind) http.HandlerFunc {
	title := "Sermons"
	if kind == source.KindAudio {
		title = "Sermons (audio)"
	}

	return func(w http.ResponseWriter, r *http.Request) {
		opts := query.ParseOptions(r.URL.Query(), query.ListingLimits)
		opts.Page = 1
		opts.Limit = feed.MaxItems
		opts.Sort = query.SortDate

		videos, err := s.store.ListVideos(r.Context(), query.Build(opts))
		if err != nil {
			s.fail(w, r, err, "")
			return
		}

		rss := feed.Build(videos, feed.Options{
			Title:     title,
			Language:  opts.Language,
			BaseURL:   s.cfg.Server.PublicBaseURL,
			APIPrefix: s.prefix,
			Kind:      kind,
		})

		var buf bytes.Buffer
		if err := feed.Write(&buf, rss); err != nil {
			s.fail(w, r, err, "")
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	}
}
