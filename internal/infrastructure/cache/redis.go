package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/audiostream/internal/domain/model"
	"github.com/hszk-dev/audiostream/internal/domain/repository"
)

const (
	// resultKeyPrefix is the prefix for result keys in Redis.
	resultKeyPrefix = "audio:"

	flushScanCount = 100
)

// resultJSON is the JSON representation of a Result for caching.
// Using explicit struct avoids coupling to domain model's JSON tags.
type resultJSON struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Duration    int    `json:"duration"`
	StreamURL   string `json:"stream_url"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	SourceURL   string `json:"source_url"`
	Success     bool   `json:"success"`
	ResolvedVia string `json:"resolved_via"`
	ResolvedAt  string `json:"resolved_at"`
}

// RedisResultStore implements repository.ResultStore using Redis as the backing store.
type RedisResultStore struct {
	client *redis.Client
}

// Compile-time verification that RedisResultStore implements repository.ResultStore.
var _ repository.ResultStore = (*RedisResultStore)(nil)

// NewRedisResultStore creates a new Redis-backed result store.
func NewRedisResultStore(client *redis.Client) *RedisResultStore {
	return &RedisResultStore{
		client: client,
	}
}

// Get retrieves a result from Redis.
// Returns nil, nil on miss.
func (s *RedisResultStore) Get(ctx context.Context, mediaID string) (*model.Result, error) {
	data, err := s.client.Get(ctx, s.buildKey(mediaID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	result, err := s.deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("deserialize result: %w", err)
	}

	return result, nil
}

// Set stores a result in Redis with the specified TTL.
func (s *RedisResultStore) Set(ctx context.Context, result *model.Result, ttl time.Duration) error {
	if result == nil {
		return model.ErrResultMissing
	}

	data, err := s.serialize(result)
	if err != nil {
		return fmt.Errorf("serialize result: %w", err)
	}

	if err := s.client.Set(ctx, s.buildKey(result.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes a result from Redis.
func (s *RedisResultStore) Delete(ctx context.Context, mediaID string) error {
	if err := s.client.Del(ctx, s.buildKey(mediaID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

// Flush removes every result key and returns how many were deleted.
// Keys outside the result prefix are left untouched.
func (s *RedisResultStore) Flush(ctx context.Context) (int, error) {
	deleted := 0
	iter := s.client.Scan(ctx, 0, resultKeyPrefix+"*", flushScanCount).Iterator()
	for iter.Next(ctx) {
		n, err := s.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			return deleted, fmt.Errorf("redis del: %w", err)
		}
		deleted += int(n)
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis scan: %w", err)
	}

	return deleted, nil
}

// buildKey constructs the Redis key for a media identifier.
func (s *RedisResultStore) buildKey(mediaID string) string {
	return resultKeyPrefix + mediaID
}

func (s *RedisResultStore) serialize(r *model.Result) ([]byte, error) {
	v := resultJSON{
		ID:          r.ID,
		Title:       r.Title,
		Artist:      r.Artist,
		Duration:    r.Duration,
		StreamURL:   r.StreamURL,
		Thumbnail:   r.Thumbnail,
		SourceURL:   r.SourceURL,
		Success:     r.Success,
		ResolvedVia: r.ResolvedVia,
		ResolvedAt:  r.ResolvedAt.Format(time.RFC3339Nano),
	}
	return json.Marshal(v)
}

func (s *RedisResultStore) deserialize(data []byte) (*model.Result, error) {
	var v resultJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}

	if err := model.ValidateID(v.ID); err != nil {
		return nil, fmt.Errorf("parse media ID: %w", err)
	}

	resolvedAt, err := time.Parse(time.RFC3339Nano, v.ResolvedAt)
	if err != nil {
		return nil, fmt.Errorf("parse resolved_at: %w", err)
	}

	return &model.Result{
		ID:          v.ID,
		Title:       v.Title,
		Artist:      v.Artist,
		Duration:    v.Duration,
		StreamURL:   v.StreamURL,
		Thumbnail:   v.Thumbnail,
		SourceURL:   v.SourceURL,
		Success:     v.Success,
		ResolvedVia: v.ResolvedVia,
		ResolvedAt:  resolvedAt,
	}, nil
}
