package registry_test

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerlink/peerlink/pkg/codegen"
	"github.com/peerlink/peerlink/pkg/domain"
	"github.com/peerlink/peerlink/pkg/registry"
)

type fixedAllocator struct{ code int }

func (f fixedAllocator) Allocate(func(int) bool) (int, error) { return f.code, nil }

func session(key string) domain.Session {
	return domain.Session{StorageKey: key, OriginalName: "a.txt", CreatedAt: time.Now()}
}

func TestPutAndGet(t *testing.T) {
	t.Parallel()

	r := registry.New()
	require.NoError(t, r.Put(42, session("k1")))

	got, ok := r.Get(42)
	require.True(t, ok)
	assert.Equal(t, 42, got.Code)
	assert.Equal(t, "k1", got.StorageKey)

	_, ok = r.Get(43)
	assert.False(t, ok)
}

func TestPutDuplicateIsInternalFault(t *testing.T) {
	t.Parallel()

	r := registry.New()
	require.NoError(t, r.Put(7, session("k1")))

	err := r.Put(7, session("k2"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInternal)

	got, _ := r.Get(7)
	assert.Equal(t, "k1", got.StorageKey, "first binding must survive")
}

func TestRemoveOnce(t *testing.T) {
	t.Parallel()

	r := registry.New()
	require.NoError(t, r.Put(9, session("k")))

	s, ok := r.Remove(9)
	require.True(t, ok)
	assert.Equal(t, "k", s.StorageKey)

	_, ok = r.Remove(9)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRemoveIf(t *testing.T) {
	t.Parallel()

	r := registry.New()
	require.NoError(t, r.Put(5, session("new-key")))

	_, ok := r.RemoveIf(5, "old-key")
	assert.False(t, ok, "stale key must not evict the live session")

	_, ok = r.RemoveIf(5, "new-key")
	assert.True(t, ok)

	_, ok = r.RemoveIf(5, "new-key")
	assert.False(t, ok)
}

func TestConcurrentRemoveHasOneWinner(t *testing.T) {
	t.Parallel()

	r := registry.New()
	require.NoError(t, r.Put(1, session("k")))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := r.RemoveIf(1, "k"); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestRegisterAllocatesUniqueCodes(t *testing.T) {
	t.Parallel()

	r := registry.New()
	gen := codegen.New(codegen.WithSource(rand.NewPCG(3, 4)), codegen.WithRange(1, 500))

	var wg sync.WaitGroup
	codes := make(chan int, 500)
	for i := 0; i < 500; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := r.Register(gen, session("k"))
			if err == nil {
				codes <- s.Code
			}
		}()
	}
	wg.Wait()
	close(codes)

	seen := map[int]bool{}
	for c := range codes {
		assert.False(t, seen[c], "code %d handed out twice", c)
		seen[c] = true
	}
	assert.Len(t, seen, 500)

	_, err := r.Register(gen, session("k"))
	assert.ErrorIs(t, err, domain.ErrCapacityExhausted)
}

func TestRegisterRejectsLiveCodeFromAllocator(t *testing.T) {
	t.Parallel()

	r := registry.New()
	require.NoError(t, r.Put(11, session("k")))

	_, err := r.Register(fixedAllocator{code: 11}, session("k2"))
	assert.ErrorIs(t, err, domain.ErrInternal)
}

func TestSnapshotAndDrain(t *testing.T) {
	t.Parallel()

	r := registry.New()
	require.NoError(t, r.Put(3, session("c")))
	require.NoError(t, r.Put(1, session("a")))
	require.NoError(t, r.Put(2, session("b")))

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{snap[0].Code, snap[1].Code, snap[2].Code})
	assert.True(t, r.HasStorageKey("b"))
	assert.False(t, r.HasStorageKey("z"))

	// Mutating the snapshot does not touch the registry.
	snap[0].StorageKey = "mutated"
	got, _ := r.Get(1)
	assert.Equal(t, "a", got.StorageKey)

	drained := r.Drain()
	assert.Len(t, drained, 3)
	assert.Equal(t, 0, r.Len())
}

func TestHasStorageKeyTracksEveryRemoval(t *testing.T) {
	t.Parallel()

	r := registry.New()
	require.NoError(t, r.Put(1, session("put")))
	registered, err := r.Register(fixedAllocator{code: 2}, session("registered"))
	require.NoError(t, err)
	require.NoError(t, r.Put(3, session("conditional")))
	require.NoError(t, r.Put(4, session("drained")))

	for _, key := range []string{"put", "registered", "conditional", "drained"} {
		assert.True(t, r.HasStorageKey(key), key)
	}

	_, ok := r.Remove(1)
	require.True(t, ok)
	assert.False(t, r.HasStorageKey("put"))
	assert.True(t, r.HasStorageKey("registered"))

	_, ok = r.RemoveIf(3, "other")
	require.False(t, ok)
	assert.True(t, r.HasStorageKey("conditional"))
	_, ok = r.RemoveIf(3, "conditional")
	require.True(t, ok)
	assert.False(t, r.HasStorageKey("conditional"))

	_, ok = r.RemoveIf(registered.Code, registered.StorageKey)
	require.True(t, ok)
	assert.False(t, r.HasStorageKey("registered"))

	r.Drain()
	assert.False(t, r.HasStorageKey("drained"))

	// A reused code indexes only the new key.
	require.NoError(t, r.Put(4, session("fresh")))
	assert.True(t, r.HasStorageKey("fresh"))
	assert.False(t, r.HasStorageKey("drained"))
}
