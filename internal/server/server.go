// Package server exposes the catalog over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/user/sermon-catalog-go/internal/config"
	"github.com/user/sermon-catalog-go/internal/mediaproxy"
	"github.com/user/sermon-catalog-go/internal/search"
	"github.com/user/sermon-catalog-go/internal/source"
	"github.com/user/sermon-catalog-go/internal/store"
)

const (
	// viewCountTimeout bounds the detached view-count update
	viewCountTimeout = 5 * time.Second
	healthTimeout    = 2 * time.Second
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Uptime   string `json:"uptime"`
}

// Deps are the collaborators the handlers use
type Deps struct {
	Store    store.Store
	Resolver source.Resolver
	Proxy    *mediaproxy.Proxy
	Search   *search.Dispatcher
}

// Server handles catalog, media, search and feed requests
type Server struct {
	cfg       *config.Config
	prefix    string
	store     store.Store
	resolver  source.Resolver
	proxy     *mediaproxy.Proxy
	search    *search.Dispatcher
	router    chi.Router
	server    *http.Server
	startTime time.Time
	// detached view-count updates
	background sync.WaitGroup
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:       cfg,
		prefix:    normalizePrefix(cfg.Server.APIPrefix),
		store:     deps.Store,
		resolver:  deps.Resolver,
		proxy:     deps.Proxy,
		search:    deps.Search,
		router:    chi.NewRouter(),
		startTime: time.Now(),
	}
	if s.proxy == nil {
		s.proxy = mediaproxy.New(mediaproxy.Options{})
	}
	if s.search == nil {
		s.search = search.NewDispatcher(s.store, s.resolver, nil)
	}

	s.setupRoutes()
	return s
}

func normalizePrefix(p string) string {
	p = "/" + strings.Trim(strings.TrimSpace(p), "/")
	if p == "/" {
		return ""
	}
	return p
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	r := s.router
	r.Use(requestLogger)
	r.Use(recoverer(s.cfg.Server.IsDevelopment()))
	r.Use(instrument)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	api := func(r chi.Router) {
		r.Use(cors(s.cfg.Server.AllowedOrigins))
		r.Use(rateLimit(s.cfg.Server.RateLimitMax, s.cfg.Server.RateLimitWindow))

		r.Route("/videos", func(r chi.Router) {
			r.Get("/", s.handleListVideos)
			r.Get("/languages", s.handleLanguages)
			r.Get("/{id}", s.handleVideo)
			r.Get("/{id}/recommendations", s.handleRecommendations)
			r.Get("/{id}/{kind}", s.handleMedia)
			r.Head("/{id}/{kind}", s.handleMedia)
		})

		r.Get("/search", s.handleSearch)

		r.Get("/categories", s.handleCategories)
		r.Get("/categories/{name}", s.handleCategory)
		r.Get("/preachers", s.handlePreachers)
		r.Get("/preachers/{slug}", s.handlePreacher)

		r.Get("/rss", s.handleFeed(source.KindVideo))
		r.Get("/rss/audio", s.handleFeed(source.KindAudio))

		r.Route("/clone", func(r chi.Router) {
			r.Use(requireAPIKey(s.cfg.Clone.APIKey))
			r.Get("/videos", s.handleCloneVideos)
			r.Get("/stats", s.handleCloneStats)
		})
	}

	mount := s.prefix
	if mount == "" {
		mount = "/"
	}
	r.Route(mount, api)
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening on the configured port
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// no write deadline: media streams run as long as the client reads
		IdleTimeout: 60 * time.Second,
	}

	log.Info().Int("port", s.cfg.Server.Port).Str("prefix", s.prefix).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server and waits for detached updates
func (s *Server) Stop(ctx context.Context) error {
	var err error
	if s.server != nil {
		log.Info().Msg("Stopping HTTP server")
		err = s.server.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Msg("Pending view-count updates abandoned")
	}
	return err
}

// handleHealth returns JSON with status, database connectivity and uptime
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	dbStatus := "healthy"
	if err := s.store.Ping(ctx); err != nil {
		dbStatus = fmt.Sprintf("unhealthy: %v", err)
	} else if stats, err := s.store.Stats(ctx); err == nil {
		UpdateVideoCount(stats.Total)
	}

	status := "healthy"
	if dbStatus != "healthy" {
		status = "unhealthy"
	}

	response := HealthResponse{
		Status:   status,
		Database: dbStatus,
		Uptime:   time.Since(s.startTime).Round(time.Second).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("Failed to encode health response")
	}
}
