package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/user/sermon-catalog-go/internal/model"
	"github.com/user/sermon-catalog-go/internal/query"
	"github.com/user/sermon-catalog-go/internal/search"
)

// CategoryResponse is one category page
type CategoryResponse struct {
	Category   model.CategorySummary `json:"category"`
	Videos     []model.VideoView     `json:"videos"`
	Pagination query.Pagination      `json:"pagination"`
}

// PreacherResponse is one preacher page
type PreacherResponse struct {
	Preacher   model.PreacherSummary `json:"preacher"`
	Videos     []model.VideoView     `json:"videos"`
	Pagination query.Pagination      `json:"pagination"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req, err := search.ParseRequest(r.URL.Query())
	if err != nil {
		s.fail(w, r, err, "")
		return
	}

	resp, err := s.search.Dispatch(r.Context(), req)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.store.Categories(r.Context())
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	if cats == nil {
		cats = []model.CategorySummary{}
	}
	writeJSON(w, http.StatusOK, cats)
}

// handleCategory lists one category. The path segment may be the slug or
// the display name.
func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))

	cats, err := s.store.Categories(r.Context())
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	var found *model.CategorySummary
	for i := range cats {
		if cats[i].Slug == name || strings.EqualFold(cats[i].Name, name) {
			found = &cats[i]
			break
		}
	}
	if found == nil {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}

	opts := query.ParseOptions(r.URL.Query(), query.ListingLimits)
	opts.Category = found.Slug
	list, err := s.list(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, CategoryResponse{
		Category:   *found,
		Videos:     list.Videos,
		Pagination: list.Pagination,
	})
}

func (s *Server) handlePreachers(w http.ResponseWriter, r *http.Request) {
	preachers, err := s.store.Preachers(r.Context())
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	if preachers == nil {
		preachers = []model.PreacherSummary{}
	}
	writeJSON(w, http.StatusOK, preachers)
}

func (s *Server) handlePreacher(w http.ResponseWriter, r *http.Request) {
	slug := query.Slugify(chi.URLParam(r, "slug"))

	preachers, err := s.store.Preachers(r.Context())
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	var found *model.PreacherSummary
	for i := range preachers {
		if preachers[i].Slug == slug {
			found = &preachers[i]
			break
		}
	}
	if found == nil || slug == "" {
		writeError(w, http.StatusNotFound, "preacher not found")
		return
	}

	opts := query.ParseOptions(r.URL.Query(), query.ListingLimits)
	opts.Preacher = found.Name
	list, err := s.list(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, PreacherResponse{
		Preacher:   *found,
		Videos:     list.Videos,
		Pagination: list.Pagination,
	})
}
