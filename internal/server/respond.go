package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/user/sermon-catalog-go/internal/search"
	"github.com/user/sermon-catalog-go/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// classify maps an error onto a status and a client-safe message
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, store.ErrPoolExhausted):
		return http.StatusServiceUnavailable, "database busy, try again"
	case errors.Is(err, store.ErrQueryTimeout):
		return http.StatusServiceUnavailable, "query timed out"
	case errors.Is(err, search.ErrMissingQuery):
		return http.StatusBadRequest, "missing search query"
	case errors.Is(err, search.ErrNotConfigured):
		return http.StatusServiceUnavailable, "content search not configured"
	case errors.Is(err, search.ErrUnavailable):
		return http.StatusServiceUnavailable, "content search unavailable"
	case errors.Is(err, search.ErrUpstream):
		return http.StatusBadGateway, "content search failed"
	}
	return http.StatusInternalServerError, "internal server error"
}

// fail writes the response for err. Internal details are shown only in
// development; a canceled request gets no body.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	logger := zerolog.Ctx(r.Context())

	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		logger.Debug().Err(err).Msg("Client went away")
		return
	}

	status, msg := classify(err)
	switch {
	case status == http.StatusNotFound && notFound != "":
		msg = notFound
	case status == http.StatusInternalServerError:
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		if s.cfg.Server.IsDevelopment() {
			msg = err.Error()
		}
	case status >= 500:
		logger.Warn().Err(err).Str("path", r.URL.Path).Msg("Request degraded")
	}
	writeError(w, status, msg)
}
