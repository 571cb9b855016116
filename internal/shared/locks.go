package shared

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// BatchLockKey builds the lock key for a single inventory batch. Locks are per
// batch, never per fabric, so reductions touching disjoint batches can run
// concurrently.
func BatchLockKey(fabricID, batchID string) string {
	return fmt.Sprintf("inventory:batch:%s:%s:lock", fabricID, batchID)
}

// LockManager provides exclusive batch locks. Acquire returns false when the
// lock is contended; the caller must abort and unwind. Release is idempotent.
type LockManager interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// releaseScript deletes the lock only when the stored token matches, so a lock
// that expired and was re-acquired elsewhere is never released by the old
// holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// RedisLockManager implements LockManager with SET NX plus a TTL guard.
type RedisLockManager struct {
	client *redis.Client
	ttl    time.Duration
	tokens sync.Map
}

// NewRedisLockManager constructs a RedisLockManager. The TTL bounds how long a
// crashed holder can leave a batch locked.
func NewRedisLockManager(client *redis.Client, ttl time.Duration) *RedisLockManager {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLockManager{client: client, ttl: ttl}
}

// Acquire takes the lock, returning false when another holder owns it.
func (m *RedisLockManager) Acquire(ctx context.Context, key string) (bool, error) {
	token := uuid.NewString()
	ok, err := m.client.SetNX(ctx, key, token, m.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock acquire %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	m.tokens.Store(key, token)
	return true, nil
}

// Release drops the lock when this manager holds it. Releasing a key that was
// never acquired, or releasing twice, is a no-op.
func (m *RedisLockManager) Release(ctx context.Context, key string) error {
	token, ok := m.tokens.LoadAndDelete(key)
	if !ok {
		return nil
	}
	if err := releaseScript.Run(ctx, m.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("lock release %s: %w", key, err)
	}
	return nil
}

// MemoryLockManager is a process-local LockManager for tests and single-node
// development.
type MemoryLockManager struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewMemoryLockManager constructs an empty MemoryLockManager.
func NewMemoryLockManager() *MemoryLockManager {
	return &MemoryLockManager{held: make(map[string]bool)}
}

// Acquire takes the lock, returning false when already held.
func (m *MemoryLockManager) Acquire(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return false, nil
	}
	m.held[key] = true
	return true, nil
}

// Release drops the lock. Idempotent.
func (m *MemoryLockManager) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, key)
	return nil
}

// Held reports whether key is currently locked.
func (m *MemoryLockManager) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[key]
}
