package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis stores one JSON document per key. Update relies on MULTI/EXEC so the
// whole write map applies as a single unit.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps an existing client. All keys are namespaced with prefix.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "weftpos"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(path string) string {
	return r.prefix + ":" + path
}

// Get reads the document at path.
func (r *Redis) Get(ctx context.Context, path string) (Snapshot, error) {
	raw, err := r.client.Get(ctx, r.key(path)).Bytes()
	if err == redis.Nil {
		return jsonSnapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", path, err)
	}
	return jsonSnapshot{raw: raw}, nil
}

// List scans every document under prefix. The scan itself is not a consistent
// snapshot; callers needing freshness re-read individual paths under a lock.
func (r *Redis) List(ctx context.Context, prefix string) (map[string]Snapshot, error) {
	out := make(map[string]Snapshot)
	iter := r.client.Scan(ctx, 0, r.key(prefix)+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := r.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("store: list %s: %w", prefix, err)
		}
		out[key[len(r.prefix)+1:]] = jsonSnapshot{raw: raw}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("store: list %s: %w", prefix, err)
	}
	return out, nil
}

// Set writes a single document.
func (r *Redis) Set(ctx context.Context, path string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", path, err)
	}
	if err := r.client.Set(ctx, r.key(path), raw, 0).Err(); err != nil {
		return fmt.Errorf("store: set %s: %w", path, err)
	}
	return nil
}

// Remove deletes a single document.
func (r *Redis) Remove(ctx context.Context, path string) error {
	if err := r.client.Del(ctx, r.key(path)).Err(); err != nil {
		return fmt.Errorf("store: remove %s: %w", path, err)
	}
	return nil
}

// Update applies the write map through one transactional pipeline. Values are
// marshalled up front so a bad entry aborts before anything is queued.
func (r *Redis) Update(ctx context.Context, writes map[string]any) error {
	marshalled := make(map[string][]byte, len(writes))
	for path, value := range writes {
		if value == nil {
			marshalled[path] = nil
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("store: marshal %s: %w", path, err)
		}
		marshalled[path] = raw
	}
	pipe := r.client.TxPipeline()
	for path, raw := range marshalled {
		if raw == nil {
			pipe.Del(ctx, r.key(path))
			continue
		}
		pipe.Set(ctx, r.key(path), raw, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: update %d paths: %w", len(writes), err)
	}
	return nil
}

// Push allocates a child identifier under path. The store never sees the path
// until the caller writes to it.
func (r *Redis) Push(ctx context.Context, path string) (string, error) {
	return uuid.NewString(), nil
}
