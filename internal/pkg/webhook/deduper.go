package webhook

import (
	"sync"
	"time"

	"github.com/stacksgate/stacksgate/internal/pkg/cache"
)

const inflightKeyPrefix = "webhook:inflight:"

// DefaultInflightTTL bounds how long a marker can outlive a crashed worker.
const DefaultInflightTTL = 30 * time.Minute

// Deduper guards against concurrent deliveries of the same logical event key.
// TryAcquire reports whether the caller won the marker; losers must treat the
// delivery as already in flight.
type Deduper interface {
	TryAcquire(key string) (bool, error)
	Release(key string)
	IsInflight(key string) bool
}

// RedisDeduper stores in-flight markers in the shared cache so deduplication
// holds across processes.
type RedisDeduper struct {
	ttl time.Duration
}

// NewRedisDeduper creates a deduper with the given marker TTL.
func NewRedisDeduper(ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultInflightTTL
	}
	return &RedisDeduper{ttl: ttl}
}

func (d *RedisDeduper) TryAcquire(key string) (bool, error) {
	return cache.SetNX(inflightKeyPrefix+key, "1", d.ttl)
}

func (d *RedisDeduper) Release(key string) {
	_ = cache.Delete(inflightKeyPrefix + key)
}

func (d *RedisDeduper) IsInflight(key string) bool {
	_, err := cache.Get(inflightKeyPrefix + key)
	return err == nil
}

// MemoryDeduper is a process-local Deduper used in tests and single-node runs.
type MemoryDeduper struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewMemoryDeduper creates an empty in-memory deduper.
func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{inflight: make(map[string]struct{})}
}

func (d *MemoryDeduper) TryAcquire(key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.inflight[key]; ok {
		return false, nil
	}
	d.inflight[key] = struct{}{}
	return true, nil
}

func (d *MemoryDeduper) Release(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inflight, key)
}

func (d *MemoryDeduper) IsInflight(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.inflight[key]
	return ok
}
