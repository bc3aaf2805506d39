package services

import (
	"context"
	"fmt"
	"time"

	"ringokai/pkg/logger"
)

type CacheService interface {
	// Basic cache operations
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Advanced operations
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Increment(ctx context.Context, key string, delta int64) (int64, error)

	// Health
	Ping(ctx context.Context) error
}

// RedisClient is the slice of the redis cache the service consumes.
// pkg/cache.RedisCache satisfies it.
type RedisClient interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	IncrementBy(ctx context.Context, key string, value int64) (int64, error)
	Ping(ctx context.Context) error
}

type cacheService struct {
	redisClient RedisClient
	logger      *logger.Logger
	keyPrefix   string
	defaultTTL  time.Duration
}

func NewCacheService(
	redisClient RedisClient,
	logger *logger.Logger,
	keyPrefix string,
	defaultTTL time.Duration,
) CacheService {
	return &cacheService{
		redisClient: redisClient,
		logger:      logger,
		keyPrefix:   keyPrefix,
		defaultTTL:  defaultTTL,
	}
}

func (s *cacheService) Get(ctx context.Context, key string, dest interface{}) error {
	fullKey := s.buildKey(key)

	if err := s.redisClient.Get(ctx, fullKey, dest); err != nil {
		return fmt.Errorf("failed to get cache key %s: %w", key, err)
	}

	s.logger.WithField("cache_key", key).Debug("Cache hit")
	return nil
}

func (s *cacheService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	fullKey := s.buildKey(key)

	if expiration == 0 {
		expiration = s.defaultTTL
	}

	if err := s.redisClient.Set(ctx, fullKey, value, expiration); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}

	s.logger.WithField("cache_key", key).
		WithField("expiration", expiration).
		Debug("Cache set")

	return nil
}

func (s *cacheService) Delete(ctx context.Context, keys ...string) error {
	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = s.buildKey(key)
	}

	if err := s.redisClient.Delete(ctx, fullKeys...); err != nil {
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}

	s.logger.WithField("cache_keys", keys).Debug("Cache keys deleted")
	return nil
}

func (s *cacheService) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := s.redisClient.Exists(ctx, s.buildKey(key))
	if err != nil {
		return false, fmt.Errorf("failed to check cache key existence: %w", err)
	}
	return exists, nil
}

func (s *cacheService) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	fullKey := s.buildKey(key)

	if expiration == 0 {
		expiration = s.defaultTTL
	}

	result, err := s.redisClient.SetNX(ctx, fullKey, value, expiration)
	if err != nil {
		return false, fmt.Errorf("failed to set cache key if not exists: %w", err)
	}
	return result, nil
}

func (s *cacheService) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	result, err := s.redisClient.IncrementBy(ctx, s.buildKey(key), delta)
	if err != nil {
		return 0, fmt.Errorf("failed to increment cache key: %w", err)
	}
	return result, nil
}

func (s *cacheService) Ping(ctx context.Context) error {
	if err := s.redisClient.Ping(ctx); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *cacheService) buildKey(key string) string {
	if s.keyPrefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", s.keyPrefix, key)
}
