package domain

import (
	"context"
	"time"
)

// KeyValueStore is the ephemeral keyed store backing the job lifecycle
// manager. Records expire after their TTL; every write refreshes it.
// Implemented by jobstore.RedisStore and jobstore.MemoryStore.
type KeyValueStore interface {
	// Incr atomically increments the counter stored at key and returns the
	// new value. Counters do not expire.
	Incr(ctx context.Context, key string) (int64, error)
	// Set stores value at key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns the value at key, or a NotFoundError if the key is absent
	// or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Update applies fn to the current value of key as an atomic
	// read-modify-write and stores the result with a refreshed TTL.
	// A concurrent write to the same key restarts the update. fn receiving
	// the stored bytes may return a NotFoundError-wrapped sentinel to abort.
	// Absent keys yield a NotFoundError without calling fn.
	Update(ctx context.Context, key string, ttl time.Duration, fn func(current []byte) ([]byte, error)) error
	// Keys returns all live keys matching the glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)
	// Close releases the store's resources.
	Close() error
}

// JobHistoryEntry is a durable record of a job's terminal transition,
// retained past the keyed store's TTL.
type JobHistoryEntry struct {
	ID         int64
	Token      int64
	Kind       JobKind
	Status     JobStatus
	Error      string
	CreatedAt  time.Time
	FinishedAt time.Time
}

// JobHistoryRepository persists terminal job transitions.
// Implemented by repository.JobHistoryRepo.
type JobHistoryRepository interface {
	Insert(ctx context.Context, entry *JobHistoryEntry) error
	List(ctx context.Context, limit int) ([]JobHistoryEntry, error)
}
