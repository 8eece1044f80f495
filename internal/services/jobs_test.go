package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stitts-dev/fantasy-rugby/internal/models"
)

func (s *ServicesTestSuite) newTracker(hub *JobHub) (*JobTracker, *GormJobStore) {
	store := NewGormJobStore(s.db)
	return NewJobTracker(store, hub, s.logger), store
}

func (s *ServicesTestSuite) TestJobTracker_Completes() {
	tracker, _ := s.newTracker(nil)

	job, err := tracker.Start(s.ctx, models.JobKindPredictions, 2026, 2, func(ctx context.Context) (interface{}, error) {
		return map[string]int{"predictions_generated": 46}, nil
	})
	s.Require().NoError(err)
	s.Equal(models.JobStatusInProgress, job.Status)
	s.NotEmpty(job.ID)

	tracker.Wait()

	done, err := tracker.Get(s.ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(models.JobStatusCompleted, done.Status)
	s.True(done.Done())
	s.Require().NotNil(done.CompletedAt)
	s.Require().NotNil(done.DurationSeconds)

	var result map[string]int
	s.Require().NoError(json.Unmarshal(done.Result, &result))
	s.Equal(46, result["predictions_generated"])
}

func (s *ServicesTestSuite) TestJobTracker_RecordsFailures() {
	tracker, _ := s.newTracker(nil)

	failed, err := tracker.Start(s.ctx, models.JobKindOptimise, 2026, 1, func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("solver exploded")
	})
	s.Require().NoError(err)
	panicked, err := tracker.Start(s.ctx, models.JobKindOptimise, 2026, 1, func(ctx context.Context) (interface{}, error) {
		panic("boom")
	})
	s.Require().NoError(err)

	tracker.Wait()

	job, err := tracker.Get(s.ctx, failed.ID)
	s.Require().NoError(err)
	s.Equal(models.JobStatusFailed, job.Status)
	s.Equal("solver exploded", job.Error)

	job, err = tracker.Get(s.ctx, panicked.ID)
	s.Require().NoError(err)
	s.Equal(models.JobStatusFailed, job.Status)
	s.Contains(job.Error, "boom")

	_, err = tracker.Get(s.ctx, "missing")
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServicesTestSuite) TestJobTracker_ListNewestFirst() {
	tracker, _ := s.newTracker(nil)
	noop := func(ctx context.Context) (interface{}, error) { return nil, nil }

	first, err := tracker.Start(s.ctx, models.JobKindPredictions, 2026, 1, noop)
	s.Require().NoError(err)
	time.Sleep(5 * time.Millisecond)
	second, err := tracker.Start(s.ctx, models.JobKindPredictions, 2026, 2, noop)
	s.Require().NoError(err)
	tracker.Wait()

	jobs, err := tracker.List(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(jobs, 2)
	s.Equal(second.ID, jobs[0].ID)
	s.Equal(first.ID, jobs[1].ID)

	jobs, err = tracker.List(s.ctx, 1)
	s.Require().NoError(err)
	s.Len(jobs, 1)
}

func (s *ServicesTestSuite) TestJobTracker_ShutdownCancelsRunningJobs() {
	tracker, _ := s.newTracker(nil)

	job, err := tracker.Start(s.ctx, models.JobKindPredictions, 2026, 1, func(ctx context.Context) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	s.Require().NoError(tracker.Shutdown(ctx))

	stored, err := tracker.Get(s.ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(models.JobStatusFailed, stored.Status)
	s.Equal(context.Canceled.Error(), stored.Error)
}

func (s *ServicesTestSuite) TestGormJobStore_Prune() {
	store := NewGormJobStore(s.db)
	old := time.Now().UTC().Add(-48 * time.Hour)

	for _, job := range []models.Job{
		{ID: "old-done", Kind: models.JobKindPredictions, Status: models.JobStatusCompleted, StartedAt: old},
		{ID: "old-running", Kind: models.JobKindPredictions, Status: models.JobStatusInProgress, StartedAt: old},
		{ID: "fresh-done", Kind: models.JobKindPredictions, Status: models.JobStatusFailed, StartedAt: time.Now().UTC()},
	} {
		job := job
		s.Require().NoError(store.Save(s.ctx, &job))
	}

	n, err := store.Prune(s.ctx, time.Now().UTC().Add(-24*time.Hour))
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	_, err = store.Get(s.ctx, "old-done")
	s.ErrorIs(err, ErrNotFound)
	_, err = store.Get(s.ctx, "old-running")
	s.NoError(err)
}

func (s *ServicesTestSuite) TestJobHub_StreamsEvents() {
	hub := NewJobHub(nil, s.logger)
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, r.URL.Query().Get("job_id"))
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?job_id=watched"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	defer conn.Close()

	s.Require().Eventually(func() bool { return hub.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(JobEvent{Type: "job_update", Job: models.Job{ID: "other"}})
	hub.Publish(JobEvent{Type: "job_update", Job: models.Job{ID: "watched", Status: models.JobStatusCompleted}})

	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	var event JobEvent
	s.Require().NoError(conn.ReadJSON(&event))
	s.Equal("job_update", event.Type)
	s.Equal("watched", event.Job.ID)
	s.Equal(models.JobStatusCompleted, event.Job.Status)

	conn.Close()
	s.Require().Eventually(func() bool { return hub.ConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
