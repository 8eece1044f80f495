package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/fantasy-rugby/internal/fixtures"
	"github.com/stitts-dev/fantasy-rugby/internal/models"
)

const pruneSchedule = "0 3 * * *" // 3 AM daily

// JobPruner is implemented by stores that need finished jobs removed.
type JobPruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// PredictionScheduler regenerates the current round's predictions on a cron
// schedule and prunes old jobs.
type PredictionScheduler struct {
	predictions *PredictionService
	tracker     *JobTracker
	store       JobStore
	schedule    *fixtures.Schedule
	season      int
	spec        string
	jobTTL      time.Duration
	logger      *logrus.Logger

	cron      *cron.Cron
	mu        sync.Mutex
	isRunning bool
}

func NewPredictionScheduler(
	predictions *PredictionService,
	tracker *JobTracker,
	store JobStore,
	schedule *fixtures.Schedule,
	season int,
	spec string,
	jobTTL time.Duration,
	logger *logrus.Logger,
) *PredictionScheduler {
	if schedule == nil {
		schedule = fixtures.Default()
	}
	return &PredictionScheduler{
		predictions: predictions,
		tracker:     tracker,
		store:       store,
		schedule:    schedule,
		season:      season,
		spec:        spec,
		jobTTL:      jobTTL,
		logger:      logger,
		cron:        cron.New(),
	}
}

// Start registers the cron entries and starts the cron runner.
func (s *PredictionScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("prediction scheduler is already running")
	}

	if _, err := s.cron.AddFunc(s.spec, s.refreshPredictions); err != nil {
		return fmt.Errorf("failed to schedule prediction refresh: %w", err)
	}
	if _, ok := s.store.(JobPruner); ok && s.jobTTL > 0 {
		if _, err := s.cron.AddFunc(pruneSchedule, s.pruneJobs); err != nil {
			return fmt.Errorf("failed to schedule job cleanup: %w", err)
		}
	}

	s.cron.Start()
	s.isRunning = true

	s.logger.WithFields(logrus.Fields{
		"schedule": s.spec,
		"season":   s.season,
	}).Info("Prediction scheduler started")
	return nil
}

// Stop waits for running cron entries to return.
func (s *PredictionScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	s.logger.Info("Prediction scheduler stopped")
}

// RunNow starts a predictions job for the current round.
func (s *PredictionScheduler) RunNow(ctx context.Context) (*models.Job, error) {
	round := s.schedule.CurrentRound(s.season)
	if round == 0 {
		return nil, fmt.Errorf("%w: no fixtures for season %d", ErrInvalidInput, s.season)
	}

	season := s.season
	return s.tracker.Start(ctx, models.JobKindPredictions, season, round, func(ctx context.Context) (interface{}, error) {
		return s.predictions.GenerateForRound(ctx, season, round)
	})
}

func (s *PredictionScheduler) refreshPredictions() {
	job, err := s.RunNow(context.Background())
	if err != nil {
		s.logger.WithError(err).Error("Scheduled prediction refresh failed to start")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"job_id": job.ID,
		"round":  job.Round,
	}).Info("Scheduled prediction refresh started")
}

func (s *PredictionScheduler) pruneJobs() {
	pruner, ok := s.store.(JobPruner)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := pruner.Prune(ctx, time.Now().UTC().Add(-s.jobTTL))
	if err != nil {
		s.logger.WithError(err).Error("Failed to prune old jobs")
		return
	}
	s.logger.WithField("removed", removed).Info("Pruned old jobs")
}
