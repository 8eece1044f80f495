package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/stitts-dev/fantasy-rugby/internal/models"
	"github.com/stitts-dev/fantasy-rugby/pkg/database"
	"github.com/stitts-dev/fantasy-rugby/pkg/logger"
)

// JobStore persists job state.
type JobStore interface {
	Save(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id string) (*models.Job, error)
	List(ctx context.Context, limit int) ([]models.Job, error)
}

// GormJobStore keeps jobs in the jobs table.
type GormJobStore struct {
	db *database.DB
}

func NewGormJobStore(db *database.DB) *GormJobStore {
	return &GormJobStore{db: db}
}

func (s *GormJobStore) Save(ctx context.Context, job *models.Job) error {
	if err := s.db.WithContext(ctx).Save(job).Error; err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *GormJobStore) Get(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *GormJobStore) List(ctx context.Context, limit int) ([]models.Job, error) {
	var jobs []models.Job
	if err := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// Prune deletes finished jobs that started before the cutoff.
func (s *GormJobStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("status <> ? AND started_at < ?", models.JobStatusInProgress, before).
		Delete(&models.Job{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

const (
	redisJobPrefix = "job:"
	redisJobIndex  = "jobs:by_start"
)

// RedisJobStore keeps jobs as JSON with a TTL and a sorted index by start
// time.
type RedisJobStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisJobStore(client *redis.Client, ttl time.Duration) *RedisJobStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisJobStore{client: client, ttl: ttl}
}

func (s *RedisJobStore) Save(ctx context.Context, job *models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisJobPrefix+job.ID, data, s.ttl)
	pipe.ZAdd(ctx, redisJobIndex, redis.Z{Score: float64(job.StartedAt.UnixNano()), Member: job.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *RedisJobStore) Get(ctx context.Context, id string) (*models.Job, error) {
	data, err := s.client.Get(ctx, redisJobPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// List skips index entries whose job has expired and prunes them.
func (s *RedisJobStore) List(ctx context.Context, limit int) ([]models.Job, error) {
	ids, err := s.client.ZRevRange(ctx, redisJobIndex, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	if len(ids) == 0 {
		return []models.Job{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisJobPrefix + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load jobs: %w", err)
	}

	jobs := make([]models.Job, 0, len(values))
	expired := []interface{}{}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var job models.Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	if len(expired) > 0 {
		s.client.ZRem(ctx, redisJobIndex, expired...)
	}
	return jobs, nil
}

// JobFunc is the work behind a job. Its result is stored as JSON.
type JobFunc func(ctx context.Context) (interface{}, error)

const defaultJobListLimit = 50

// JobTracker runs background work, records its progress in a JobStore and
// pushes each state change to the hub.
type JobTracker struct {
	store  JobStore
	hub    *JobHub
	logger *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJobTracker accepts a nil hub.
func NewJobTracker(store JobStore, hub *JobHub, logger *logrus.Logger) *JobTracker {
	ctx, cancel := context.WithCancel(context.Background())
	return &JobTracker{
		store:  store,
		hub:    hub,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start records an in-progress job and runs fn in the background. The
// returned job is a snapshot taken before fn starts.
func (t *JobTracker) Start(ctx context.Context, kind string, season, round int, fn JobFunc) (*models.Job, error) {
	job := &models.Job{
		ID:        uuid.New().String(),
		Kind:      kind,
		Status:    models.JobStatusInProgress,
		Season:    season,
		Round:     round,
		StartedAt: time.Now().UTC(),
	}
	if err := t.store.Save(ctx, job); err != nil {
		return nil, err
	}
	t.publish(*job)

	snapshot := *job
	t.wg.Add(1)
	go t.run(job, fn)
	return &snapshot, nil
}

func (t *JobTracker) run(job *models.Job, fn JobFunc) {
	defer t.wg.Done()
	log := logger.WithJobContext(job.ID, job.Kind)
	log.WithFields(logrus.Fields{"season": job.Season, "round": job.Round}).Info("Job started")

	result, err := t.safeCall(fn)

	completed := time.Now().UTC()
	duration := completed.Sub(job.StartedAt).Seconds()
	job.CompletedAt = &completed
	job.DurationSeconds = &duration

	if err != nil {
		job.Status = models.JobStatusFailed
		job.Error = err.Error()
		log.WithError(err).Error("Job failed")
	} else {
		job.Status = models.JobStatusCompleted
		if result != nil {
			data, mErr := json.Marshal(result)
			if mErr != nil {
				log.WithError(mErr).Warn("Failed to marshal job result")
			} else {
				job.Result = datatypes.JSON(data)
			}
		}
		log.WithField("duration_seconds", duration).Info("Job completed")
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := t.store.Save(saveCtx, job); err != nil {
		log.WithError(err).Error("Failed to save job state")
	}
	t.publish(*job)
}

func (t *JobTracker) safeCall(fn JobFunc) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return fn(t.ctx)
}

func (t *JobTracker) publish(job models.Job) {
	if t.hub == nil {
		return
	}
	t.hub.Publish(JobEvent{Type: "job_update", Job: job})
}

func (t *JobTracker) Get(ctx context.Context, id string) (*models.Job, error) {
	return t.store.Get(ctx, id)
}

func (t *JobTracker) List(ctx context.Context, limit int) ([]models.Job, error) {
	if limit <= 0 {
		limit = defaultJobListLimit
	}
	return t.store.List(ctx, limit)
}

// Wait blocks until every started job has finished.
func (t *JobTracker) Wait() {
	t.wg.Wait()
}

// Shutdown cancels running jobs and waits for them until ctx expires.
func (t *JobTracker) Shutdown(ctx context.Context) error {
	t.cancel()
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
