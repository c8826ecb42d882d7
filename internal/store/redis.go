package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nexusedu/exam-agent/internal/config"
	"github.com/nexusedu/exam-agent/internal/model"
)

// RedisStore keeps snapshots in a lab-local Redis. Intended for diskless
// kiosk clients where the machine's own disk does not survive a reboot but
// the lab network does. Key shapes follow the backend's session-key
// conventions (config.StorageKey).
type RedisStore struct {
	rdb *redis.Client
}

// OpenRedis connects and validates the Redis client.
func OpenRedis(ctx context.Context, url string, log zerolog.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Msg("Redis store connected")

	return &RedisStore{rdb: rdb}, nil
}

// Close closes the client connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) set(ctx context.Context, key string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) get(ctx context.Context, key string, v interface{}) error {
	payload, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get: %w", err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) SaveSession(ctx context.Context, studentID string, snap *model.SessionSnapshot) error {
	return s.set(ctx, config.StorageKey.SessionSnapshotKey(studentID), snap)
}

func (s *RedisStore) LoadSession(ctx context.Context, studentID string) (*model.SessionSnapshot, error) {
	var snap model.SessionSnapshot
	if err := s.get(ctx, config.StorageKey.SessionSnapshotKey(studentID), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *RedisStore) ClearSession(ctx context.Context, studentID string) error {
	if err := s.rdb.Del(ctx, config.StorageKey.SessionSnapshotKey(studentID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) SavePending(ctx context.Context, studentID string, pending *model.PendingSubmission) error {
	return s.set(ctx, config.StorageKey.PendingSubmissionKey(studentID), pending)
}

func (s *RedisStore) LoadPending(ctx context.Context, studentID string) (*model.PendingSubmission, error) {
	var pending model.PendingSubmission
	if err := s.get(ctx, config.StorageKey.PendingSubmissionKey(studentID), &pending); err != nil {
		return nil, err
	}
	return &pending, nil
}

func (s *RedisStore) ClearPending(ctx context.Context, studentID string) error {
	if err := s.rdb.Del(ctx, config.StorageKey.PendingSubmissionKey(studentID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
