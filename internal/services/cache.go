package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// ErrCacheMiss is returned by Get when the key is absent or Redis is not
// configured.
var ErrCacheMiss = errors.New("cache miss")

// CacheService is a JSON cache over Redis. A nil client turns every call into
// a miss or a no-op, and an open breaker short-circuits calls while Redis is
// failing.
type CacheService struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

func NewCacheService(client *redis.Client, failureThreshold int, logger *logrus.Logger) *CacheService {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failureThreshold)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker":    name,
				"from_state": from.String(),
				"to_state":   to.String(),
			}).Warn("Cache circuit breaker state changed")
		},
	})

	return &CacheService{
		client:  client,
		breaker: cb,
		logger:  logger,
	}
}

// Enabled reports whether a Redis client is configured.
func (s *CacheService) Enabled() bool {
	return s != nil && s.client != nil
}

func (s *CacheService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if !s.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	_, err = s.breaker.Execute(func() (interface{}, error) {
		return nil, s.client.Set(ctx, key, data, expiration).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	if !s.Enabled() {
		return ErrCacheMiss
	}

	res, err := s.breaker.Execute(func() (interface{}, error) {
		return s.client.Get(ctx, key).Bytes()
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to get cache: %w", err)
	}

	if err := json.Unmarshal(res.([]byte), dest); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return nil
}

func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	if !s.Enabled() || len(keys) == 0 {
		return nil
	}

	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.client.Del(ctx, keys...).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to delete cache: %w", err)
	}
	return nil
}

// InvalidateRound drops every cached optimisation and the prediction list
// for a round. Called when prices, selections or predictions change.
func (s *CacheService) InvalidateRound(ctx context.Context, season, round int) error {
	if !s.Enabled() {
		return nil
	}

	pattern := fmt.Sprintf("optimise:%d:%d:*", season, round)
	res, err := s.breaker.Execute(func() (interface{}, error) {
		var keys []string
		iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		return keys, iter.Err()
	})
	if err != nil {
		return fmt.Errorf("failed to scan round cache: %w", err)
	}

	keys := append(res.([]string), PredictionsCacheKey(season, round))
	if err := s.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to invalidate round cache: %w", err)
	}
	return nil
}

// Cache key generators

// OptimiseCacheKey hashes the request so equal requests share an entry.
func OptimiseCacheKey(season, round int, request interface{}) string {
	data, _ := json.Marshal(request)
	sum := sha256.Sum256(data)
	return fmt.Sprintf("optimise:%d:%d:%s", season, round, hex.EncodeToString(sum[:8]))
}

func PredictionsCacheKey(season, round int) string {
	return fmt.Sprintf("predictions:%d:%d", season, round)
}
