package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/recurring-tracker/internal/app"
	"github.com/dvloznov/recurring-tracker/internal/config"
	"github.com/dvloznov/recurring-tracker/internal/jobs"
	"github.com/dvloznov/recurring-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/recurring-tracker/internal/logger"
	"github.com/dvloznov/recurring-tracker/internal/pipeline"
)

func main() {
	configPath := flag.String("config", os.Getenv("RECURRING_CONFIG"), "Path to config file (or set RECURRING_CONFIG env)")
	once := flag.Bool("once", false, "Run a single scan round and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithConfig(cfg.LoggerConfig())

	if len(cfg.Worker.Users) == 0 {
		log.Warn().Msg("No users configured under worker.users - nothing will be scanned")
	}

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	// In production, this would be replaced with Cloud Tasks or Pub/Sub
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Worker.QueueSize, cfg.Worker.Workers, jobStore)

	if err := jobQueue.Start(ctx, jobs.NewDetectRecurringHandler(application.Pipeline())); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	sched := &scheduler{
		publisher:    jobQueue,
		users:        cfg.Worker.Users,
		lookbackDays: cfg.Detection.LookbackDays,
		horizonDays:  cfg.Detection.UpcomingHorizonDays,
		now:          time.Now,
		log:          log,
	}

	if *once {
		sched.round(ctx)
		shutdown(log, jobQueue)
		return
	}

	go sched.run(ctx, cfg.Worker.Interval)
	log.Info().
		Dur("interval", cfg.Worker.Interval).
		Int("users", len(cfg.Worker.Users)).
		Msg("Worker service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")
	shutdown(log, jobQueue)
	cancel()

	log.Info().Msg("Worker service exited")
}

func shutdown(log zerolog.Logger, queue *inmemory.Queue) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
}

// scheduler publishes a lookback scan for every configured user on each tick.
type scheduler struct {
	publisher    jobs.Publisher
	users        []string
	lookbackDays int
	horizonDays  int
	now          func() time.Time
	log          zerolog.Logger
}

func (s *scheduler) run(ctx context.Context, interval time.Duration) {
	s.round(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.round(ctx)
		}
	}
}

// round publishes one job per user and returns how many were accepted.
func (s *scheduler) round(ctx context.Context) int {
	start, end := pipeline.LookbackWindow(s.now(), s.lookbackDays)

	published := 0
	for _, userID := range s.users {
		job := &jobs.DetectRecurringJob{
			UserID:      userID,
			Start:       start,
			End:         end,
			HorizonDays: s.horizonDays,
		}
		if err := s.publisher.PublishDetectRecurring(ctx, job); err != nil {
			if errors.Is(err, jobs.ErrQueueClosed) {
				return published
			}
			s.log.Error().Err(err).Str("user", logger.MaskUserID(userID)).Msg("Failed to publish scan")
			continue
		}
		published++
	}

	s.log.Info().
		Time("start", start).
		Time("end", end).
		Int("published", published).
		Msg("Scheduled recurring scans")
	return published
}
