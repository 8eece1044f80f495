package services

import (
	"github.com/stitts-dev/fantasy-rugby/internal/fixtures"
	"github.com/stitts-dev/fantasy-rugby/internal/models"
)

func (s *ServicesTestSuite) TestPredictionScheduler_RunNowTargetsCurrentRound() {
	tracker, store := s.newTracker(nil)
	sched := NewPredictionScheduler(s.predictions, tracker, store, s.schedule, 2026, "0 6 * * *", 0, s.logger)

	prop := s.createPlayer("Dan Sheehan", "Ireland", "hooker", false)
	s.selectPlayer(prop.ID, 2, true)

	job, err := sched.RunNow(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, job.Round)
	s.Equal(models.JobKindPredictions, job.Kind)
	tracker.Wait()

	done, err := tracker.Get(s.ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(models.JobStatusCompleted, done.Status)

	var count int64
	s.Require().NoError(s.db.Model(&models.Prediction{}).Where("round = ?", 2).Count(&count).Error)
	s.Equal(int64(1), count)
}

func (s *ServicesTestSuite) TestPredictionScheduler_UnknownSeason() {
	tracker, store := s.newTracker(nil)
	sched := NewPredictionScheduler(s.predictions, tracker, store, s.schedule, 2030, "0 6 * * *", 0, s.logger)

	_, err := sched.RunNow(s.ctx)
	s.ErrorIs(err, ErrInvalidInput)
}

func (s *ServicesTestSuite) TestPredictionScheduler_StartStop() {
	tracker, store := s.newTracker(nil)
	sched := NewPredictionScheduler(s.predictions, tracker, store, fixtures.Default(), 2026, "0 6 * * *", 0, s.logger)

	s.Require().NoError(sched.Start())
	s.Error(sched.Start())
	sched.Stop()
	sched.Stop()

	bad := NewPredictionScheduler(s.predictions, tracker, store, nil, 2026, "not a cron spec", 0, s.logger)
	s.Error(bad.Start())
}
