package tracker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/grovetools/prodtrack/errors"
)

// DefaultRedisKey is used when no key is configured.
const DefaultRedisKey = "prodtrack:metrics"

// RedisPersister stores the aggregate as one JSON value under a session key.
type RedisPersister struct {
	client  *redis.Client
	key     string
	timeout time.Duration
}

// NewRedisPersister connects lazily to addr.
func NewRedisPersister(addr string, db int, key string) *RedisPersister {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisPersister{
		client: redis.NewClient(&redis.Options{
			Addr:        addr,
			DB:          db,
			DialTimeout: 2 * time.Second,
		}),
		key:     key,
		timeout: 3 * time.Second,
	}
}

// Load reads the aggregate. A missing key yields an empty aggregate.
func (p *RedisPersister) Load() (map[string]Metric, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	data, err := p.client.Get(ctx, p.key).Bytes()
	if err == redis.Nil {
		return make(map[string]Metric), nil
	}
	if err != nil {
		return nil, errors.StorageFailed("redis", err).WithDetail("key", p.key)
	}

	out := make(map[string]Metric)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.StorageFailed("redis", err).WithDetail("key", p.key)
	}
	return out, nil
}

// Save replaces the stored aggregate.
func (p *RedisPersister) Save(m map[string]Metric) error {
	data, err := json.Marshal(m)
	if err != nil {
		return errors.StorageFailed("redis", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.client.Set(ctx, p.key, data, 0).Err(); err != nil {
		return errors.StorageFailed("redis", err).WithDetail("key", p.key)
	}
	return nil
}

// Clear deletes the key.
func (p *RedisPersister) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.client.Del(ctx, p.key).Err(); err != nil {
		return errors.StorageFailed("redis", err).WithDetail("key", p.key)
	}
	return nil
}

// Close closes the client.
func (p *RedisPersister) Close() error {
	return p.client.Close()
}
