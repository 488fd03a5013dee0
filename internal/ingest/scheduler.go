package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/user/sermon-catalog-go/internal/config"
	"github.com/user/sermon-catalog-go/internal/store"
)

// DefaultInitialDelay is the wait before the first cycle
const DefaultInitialDelay = 5 * time.Second

// Result summarizes one ingest cycle
type Result struct {
	Found      int
	Saved      int
	Duplicates int
}

// Scheduler manages periodic ingest cycles
type Scheduler struct {
	crawler      Crawler
	store        store.Store
	config       *config.IngestConfig
	initialDelay time.Duration
	running      atomic.Bool
	mu           sync.Mutex // one cycle at a time
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

// NewScheduler creates a new scheduler instance
func NewScheduler(crawler Crawler, st store.Store, cfg *config.IngestConfig) *Scheduler {
	return &Scheduler{
		crawler:      crawler,
		store:        st,
		config:       cfg,
		initialDelay: DefaultInitialDelay,
		stopCh:       make(chan struct{}),
	}
}

// SetInitialDelay overrides the wait before the first cycle
func (s *Scheduler) SetInitialDelay(d time.Duration) {
	s.initialDelay = d
}

// Start begins the scheduler with initial delay and periodic execution
func (s *Scheduler) Start(ctx context.Context) {
	if !s.config.Enabled {
		log.Info().Msg("Ingest scheduler is disabled")
		return
	}

	s.wg.Add(1)
	go s.run(ctx)
}

// run is the main scheduler loop
func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	log.Info().Dur("delay", s.initialDelay).Msg("Ingest scheduler starting with initial delay")

	select {
	case <-time.After(s.initialDelay):
		s.execute(ctx, "scheduled")
	case <-s.stopCh:
		log.Info().Msg("Ingest scheduler stopped during initial delay")
		return
	case <-ctx.Done():
		log.Info().Msg("Ingest scheduler context cancelled during initial delay")
		return
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.config.Interval).Msg("Ingest scheduler started periodic execution")

	for {
		select {
		case <-ticker.C:
			s.execute(ctx, "scheduled")
		case <-s.stopCh:
			log.Info().Msg("Ingest scheduler stopped")
			return
		case <-ctx.Done():
			log.Info().Msg("Ingest scheduler context cancelled")
			return
		}
	}
}

// execute runs one cycle unless another is in progress
func (s *Scheduler) execute(ctx context.Context, trigger string) bool {
	if !s.mu.TryLock() {
		log.Warn().Str("trigger", trigger).Msg("Ingest cycle already running, skipping this trigger")
		cyclesTotal.WithLabelValues("skipped").Inc()
		return false
	}
	defer s.mu.Unlock()

	s.running.Store(true)
	defer s.running.Store(false)

	start := time.Now()
	log.Info().Str("trigger", trigger).Msg("Starting ingest cycle")

	res, err := s.RunOnce(ctx)
	duration := time.Since(start)
	cycleDuration.Observe(duration.Seconds())

	if err != nil {
		cyclesTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Dur("duration", duration).Msg("Ingest cycle failed")
		return true
	}

	cyclesTotal.WithLabelValues("success").Inc()
	log.Info().
		Int("found", res.Found).
		Int("saved", res.Saved).
		Int("duplicates", res.Duplicates).
		Dur("duration", duration).
		Msg("Ingest cycle completed")
	return true
}

// RunOnce crawls the origin and saves every row not already catalogued
func (s *Scheduler) RunOnce(ctx context.Context) (Result, error) {
	videos, err := s.crawler.Crawl(ctx)
	if err != nil && len(videos) == 0 {
		return Result{}, err
	}
	if err != nil {
		log.Warn().Err(err).Int("found", len(videos)).Msg("Crawl ended early, saving partial results")
	}

	res := Result{Found: len(videos)}
	if len(videos) == 0 {
		return res, nil
	}

	saved, duplicates, saveErr := s.store.SaveVideos(ctx, videos)
	if saveErr != nil {
		return res, saveErr
	}
	res.Saved, res.Duplicates = saved, duplicates
	videosIngested.Add(float64(saved))
	return res, nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		log.Info().Msg("Stopping ingest scheduler...")
		close(s.stopCh)
	})
	s.wg.Wait()
}

// IsRunning returns true if an ingest cycle is currently running
func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

// TryRun attempts to run a cycle immediately.
// Returns false if a cycle is already running.
func (s *Scheduler) TryRun(ctx context.Context) bool {
	return s.execute(ctx, "manual")
}
