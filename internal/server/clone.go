package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/user/sermon-catalog-go/internal/model"
	"github.com/user/sermon-catalog-go/internal/query"
	"github.com/user/sermon-catalog-go/internal/store"
)

// Export batch bounds
const (
	DefaultExportLimit = 500
	MaxExportLimit     = 5000
)

// CloneResponse is one batch of the mirror export
type CloneResponse struct {
	Videos      []*model.Video `json:"videos"`
	Count       int            `json:"count"`
	NextAfterID uint           `json:"nextAfterId"`
}

// handleCloneVideos exports raw rows in id order. Mirrors page with afterId
// and optionally restrict to rows created since a timestamp.
func (s *Server) handleCloneVideos(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()

	filter := store.ExportFilter{
		Limit: query.BoundedInt(values.Get("limit"), DefaultExportLimit, 1, MaxExportLimit),
	}

	if raw := strings.TrimSpace(values.Get("since")); raw != "" {
		since, err := parseSince(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since, expected RFC3339 or YYYY-MM-DD")
			return
		}
		filter.Since = &since
	}

	if raw := strings.TrimSpace(values.Get("afterId")); raw != "" {
		after, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid afterId")
			return
		}
		filter.AfterID = uint(after)
	}

	videos, err := s.store.ExportVideos(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	if videos == nil {
		videos = []*model.Video{}
	}

	next := filter.AfterID
	if n := len(videos); n > 0 {
		next = videos[n-1].ID
	}
	writeJSON(w, http.StatusOK, CloneResponse{Videos: videos, Count: len(videos), NextAfterID: next})
}

func (s *Server) handleCloneStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func parseSince(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
