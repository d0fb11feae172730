package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"feedsync/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisPersister stores the record as JSON under a single key. Useful when
// several client processes on one host share a login.
type RedisPersister struct {
	rdb *redis.Client
	key string
}

// NewRedisPersister returns a persister using key on rdb.
func NewRedisPersister(rdb *redis.Client, key string) *RedisPersister {
	return &RedisPersister{rdb: rdb, key: key}
}

func (r *RedisPersister) Load(ctx context.Context) (*models.SessionRecord, error) {
	raw, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	var rec models.SessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &rec, nil
}

func (r *RedisPersister) Save(ctx context.Context, rec *models.SessionRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.rdb.Set(ctx, r.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (r *RedisPersister) Clear(ctx context.Context) error {
	if err := r.rdb.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (r *RedisPersister) Close() error {
	return r.rdb.Close()
}
