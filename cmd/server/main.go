package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/user/sermon-catalog-go/internal/cache"
	"github.com/user/sermon-catalog-go/internal/config"
	"github.com/user/sermon-catalog-go/internal/ingest"
	"github.com/user/sermon-catalog-go/internal/mediaproxy"
	"github.com/user/sermon-catalog-go/internal/search"
	"github.com/user/sermon-catalog-go/internal/server"
	"github.com/user/sermon-catalog-go/internal/source"
	"github.com/user/sermon-catalog-go/internal/store"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 30 * time.Second
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Server.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Str("env", cfg.Server.Env).Str("db", cfg.DB.Driver).Str("media", cfg.Media.Backend).Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backing, err := openStore(&cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open catalog store")
	}

	resultCache, err := cache.New(&cfg.Cache)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create cache")
	}

	guarded := store.NewGuard(backing, cfg.DB.MaxConns, cfg.DB.QueryTimeout)
	catalog := store.NewCached(guarded, resultCache, cfg.Cache.TTL)

	resolver := source.New(&cfg.Media)
	proxy := mediaproxy.New(mediaproxy.Options{
		DialTimeout:   cfg.Media.DialTimeout,
		HeaderTimeout: cfg.Media.HeaderTimeout,
	})

	searchClient := search.NewClient(cfg.Search.ServiceURL, cfg.Search.Timeout)
	if searchClient == nil {
		log.Warn().Msg("SEARCH_SERVICE_URL not set, content search disabled")
	}

	httpServer := server.NewServer(cfg, server.Deps{
		Store:    catalog,
		Resolver: resolver,
		Proxy:    proxy,
		Search:   search.NewDispatcher(catalog, resolver, searchClient),
	})

	var (
		crawler *ingest.HTTPCrawler
		sched   *ingest.Scheduler
	)
	if cfg.Ingest.Enabled {
		crawler, err = ingest.NewHTTPCrawler(&cfg.Ingest)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create ingest crawler")
		}
		sched = ingest.NewScheduler(crawler, catalog, &cfg.Ingest)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpServer.Start(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	if sched != nil {
		sched.Start(ctx)
		log.Info().Dur("interval", cfg.Ingest.Interval).Str("root", cfg.Ingest.RootURL).Msg("Ingest scheduler started")
	}

	log.Info().Msg("Sermon catalog started successfully")

	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()

	log.Info().Msg("Starting graceful shutdown...")

	// 1. no new ingest cycles
	if sched != nil {
		sched.Stop()
		log.Info().Msg("Ingest scheduler stopped")
	}

	// 2. drain requests and pending view counts
	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping HTTP server")
	} else {
		log.Info().Msg("HTTP server stopped")
	}

	// 3. release upstream resources
	if crawler != nil {
		if err := crawler.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing ingest crawler")
		}
	}
	if err := resultCache.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing cache")
	}

	// 4. database last
	if err := catalog.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing catalog store")
	} else {
		log.Info().Msg("Catalog store closed")
	}

	cancel()

	select {
	case <-shutdownCtx.Done():
		if shutdownCtx.Err() == context.DeadlineExceeded {
			log.Warn().Msg("Shutdown timeout exceeded, forcing exit")
		}
	default:
		log.Info().Msg("Graceful shutdown completed")
	}
}

// openStore selects the persistence backend from DB_DRIVER
func openStore(cfg *config.DBConfig) (store.Store, error) {
	if cfg.Driver == "memory" {
		st, err := store.LoadMemoryStore(cfg.FixturePath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("fixture", cfg.FixturePath).Msg("Using in-memory catalog")
		return st, nil
	}

	st, err := store.NewMySQLStore(cfg)
	if err != nil {
		return nil, err
	}
	log.Info().Msg("Database connection established")
	return st, nil
}
