package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_GetCreatesFreshSession(t *testing.T) {
	store := NewInMemoryStore(time.Minute, 100)

	s := store.Get("conv-1", time.Now())
	require.NotNil(t, s)
	assert.Equal(t, "conv-1", s.ConversationID)
}

func TestInMemoryStore_PutThenGetReturnsSameState(t *testing.T) {
	store := NewInMemoryStore(time.Minute, 100)
	now := time.Now()

	s := store.Get("conv-1", now)
	s.Intent = "CreatePatient"
	store.Put(s)

	got := store.Get("conv-1", now.Add(time.Second))
	assert.Equal(t, "CreatePatient", got.Intent)
}

func TestInMemoryStore_TTLExpiry(t *testing.T) {
	store := NewInMemoryStore(10*time.Millisecond, 100)
	now := time.Now()

	s := store.Get("conv-1", now)
	s.Intent = "CreatePatient"
	store.Put(s)

	got := store.Get("conv-1", now.Add(20*time.Millisecond))
	assert.Equal(t, "Unknown", got.Intent)
}

func TestInMemoryStore_ZeroTTLExpiresImmediately(t *testing.T) {
	store := NewInMemoryStore(0, 100)
	now := time.Now()

	s := store.Get("conv-1", now)
	s.Intent = "CreatePatient"
	store.Put(s)

	got := store.Get("conv-1", now.Add(time.Nanosecond))
	assert.Equal(t, "Unknown", got.Intent)
}

func TestInMemoryStore_LRUEvictsOldest(t *testing.T) {
	store := NewInMemoryStore(time.Hour, 2)
	now := time.Now()

	a := store.Get("a", now)
	store.Put(a)
	b := store.Get("b", now.Add(time.Millisecond))
	store.Put(b)
	c := store.Get("c", now.Add(2*time.Millisecond))
	store.Put(c)

	stats := store.Stats()
	assert.Equal(t, 2, stats.Entries)

	got := store.Get("a", now.Add(3*time.Millisecond))
	assert.Equal(t, "Unknown", got.Intent)
}

func TestInMemoryStore_Delete(t *testing.T) {
	store := NewInMemoryStore(time.Hour, 100)
	now := time.Now()

	s := store.Get("conv-1", now)
	s.Intent = "CreatePatient"
	store.Put(s)
	store.Delete("conv-1")

	got := store.Get("conv-1", now)
	assert.Equal(t, "Unknown", got.Intent)
}

func TestInMemoryStore_AcquireSerializesSameConversation(t *testing.T) {
	store := NewInMemoryStore(time.Hour, 100)

	var order []int
	var inside, maxInside int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			release := store.Acquire("conv-1")
			defer release()
			mu.Lock()
			order = append(order, n)
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Len(t, order, 5)
	assert.Equal(t, 1, maxInside)
}

func TestInMemoryStore_AcquireDoesNotBlockDistinctConversations(t *testing.T) {
	store := NewInMemoryStore(time.Hour, 100)

	releaseA := store.Acquire("conv-a")
	done := make(chan struct{})
	go func() {
		releaseB := store.Acquire("conv-b")
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquiring a distinct conversation lock blocked unexpectedly")
	}
	releaseA()
}
