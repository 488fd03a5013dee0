package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/user/sermon-catalog-go/internal/mediaproxy"
	"github.com/user/sermon-catalog-go/internal/model"
	"github.com/user/sermon-catalog-go/internal/query"
	"github.com/user/sermon-catalog-go/internal/source"
)

// Recommendation bounds
const (
	DefaultRecommendations = 8
	MaxRecommendations     = 24
)

// ListResponse is a page of decorated rows
type ListResponse struct {
	Videos     []model.VideoView `json:"videos"`
	Pagination query.Pagination  `json:"pagination"`
}

// view decorates v with proxy-relative media URLs
func (s *Server) view(v *model.Video) model.VideoView {
	base := fmt.Sprintf("%s/videos/%d/", s.prefix, v.ID)
	return model.NewVideoView(v, model.MediaURLs{
		Stream:    base + string(source.KindVideo),
		Audio:     base + string(source.KindAudio),
		Thumbnail: base + string(source.KindThumbnail),
		Subtitles: base + string(source.KindSubtitles),
	})
}

func (s *Server) views(videos []*model.Video) []model.VideoView {
	out := make([]model.VideoView, 0, len(videos))
	for _, v := range videos {
		out = append(out, s.view(v))
	}
	return out
}

// list runs the COUNT and the page query built from the same options
func (s *Server) list(ctx context.Context, opts query.Options) (*ListResponse, error) {
	q := query.Build(opts)

	total, err := s.store.CountVideos(ctx, q)
	if err != nil {
		return nil, err
	}

	var videos []*model.Video
	if total > int64(q.Offset) {
		videos, err = s.store.ListVideos(ctx, q)
		if err != nil {
			return nil, err
		}
	}

	page := q.Offset/q.Limit + 1
	return &ListResponse{
		Videos:     s.views(videos),
		Pagination: query.NewPagination(page, q.Limit, total),
	}, nil
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	opts := query.ParseOptions(r.URL.Query(), query.ListingLimits)
	resp, err := s.list(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	langs, err := s.store.DistinctLanguages(r.Context())
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	if langs == nil {
		langs = []string{}
	}
	writeJSON(w, http.StatusOK, langs)
}

// videoFromPath loads the row named by the {id} URL parameter
func (s *Server) videoFromPath(w http.ResponseWriter, r *http.Request) (*model.Video, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid video id")
		return nil, false
	}

	v, err := s.store.GetVideo(r.Context(), uint(id))
	if err != nil {
		s.fail(w, r, err, "video not found")
		return nil, false
	}
	return v, true
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	v, ok := s.videoFromPath(w, r)
	if !ok {
		return
	}

	s.countView(v.ID)
	writeJSON(w, http.StatusOK, s.view(v))
}

// countView bumps the view counter off the request path. Failures are only
// logged; the response never waits for it.
func (s *Server) countView(id uint) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()

		ctx, cancel := context.WithTimeout(context.Background(), viewCountTimeout)
		defer cancel()

		if err := s.store.IncrementClicks(ctx, id); err != nil {
			viewCountFailures.Inc()
			log.Warn().Err(err).Uint("id", id).Msg("Failed to increment view count")
		}
	}()
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	seed, ok := s.videoFromPath(w, r)
	if !ok {
		return
	}

	limit := query.BoundedInt(r.URL.Query().Get("limit"), DefaultRecommendations, 1, MaxRecommendations)
	videos, err := s.store.Recommendations(r.Context(), seed, limit)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, s.views(videos))
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	kind, err := source.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown media kind")
		return
	}

	v, ok := s.videoFromPath(w, r)
	if !ok {
		return
	}

	download := r.URL.Query().Get("download")
	req := mediaproxy.Request{
		Kind:                string(kind),
		Candidates:          source.DefaultPolicy.Candidates(v, kind, s.resolver),
		FallbackContentType: kind.ContentType(),
		FallbackFilename:    source.DownloadName(v, kind),
		Download:            download == "1" || download == "true",
	}

	res := s.proxy.Serve(w, r, req)
	zerolog.Ctx(r.Context()).Debug().
		Uint("id", v.ID).
		Str("kind", string(kind)).
		Str("outcome", res.Outcome).
		Int("attempts", res.Attempts).
		Int64("bytes", res.Bytes).
		Msg("Media proxied")
}
