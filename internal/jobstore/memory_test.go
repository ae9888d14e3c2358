package jobstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabserve/internal/domain"
)

func TestMemoryStore_SetGet(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "job:1", []byte(`{"token":1}`), time.Hour))

	got, err := s.Get(ctx, "job:1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"token":1}`), got)

	_, err = s.Get(ctx, "job:2")
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestMemoryStore_Expiry(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.Set(ctx, "job:1", []byte("v"), time.Hour))

	// Advance past the TTL.
	s.SetClock(func() time.Time { return now.Add(2 * time.Hour) })

	_, err := s.Get(ctx, "job:1")
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)

	keys, err := s.Keys(ctx, "job:*")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMemoryStore_UpdateRefreshesTTL(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	s.SetClock(func() time.Time { return now })
	require.NoError(t, s.Set(ctx, "job:1", []byte("a"), time.Hour))

	// Just before expiry, a write refreshes the TTL.
	s.SetClock(func() time.Time { return now.Add(59 * time.Minute) })
	err := s.Update(ctx, "job:1", time.Hour, func(cur []byte) ([]byte, error) {
		return append(cur, 'b'), nil
	})
	require.NoError(t, err)

	// The original deadline has passed but the record is still live.
	s.SetClock(func() time.Time { return now.Add(90 * time.Minute) })
	got, err := s.Get(ctx, "job:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), got)
}

func TestMemoryStore_IncrIsMonotonic(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	const n = 50
	tokens := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.Incr(ctx, "job:counter")
			require.NoError(t, err)
			tokens <- v
		}()
	}
	wg.Wait()
	close(tokens)

	seen := make(map[int64]bool, n)
	for v := range tokens {
		assert.False(t, seen[v], "duplicate token %d", v)
		seen[v] = true
	}
	assert.Len(t, seen, n)
	for i := int64(1); i <= n; i++ {
		assert.True(t, seen[i], "missing token %d", i)
	}
}

func TestMemoryStore_Keys(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "job:1", []byte("a"), time.Hour))
	require.NoError(t, s.Set(ctx, "job:2", []byte("b"), time.Hour))
	require.NoError(t, s.Set(ctx, "other:1", []byte("c"), time.Hour))

	keys, err := s.Keys(ctx, "job:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"job:1", "job:2"}, keys)
}
