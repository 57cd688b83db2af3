package namecache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hydrochat/hydrochat/pkg/backendclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	calls   int32
	payload []backendclient.Patient
	fail    bool
}

func (f *fakeLister) ListPatients(ctx context.Context) backendclient.Result {
	atomic.AddInt32(&f.calls, 1)
	if f.fail {
		return backendclient.Result{Outcome: backendclient.ServerError}
	}
	return backendclient.Result{Outcome: backendclient.Ok, Payload: f.payload}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "jane tan", Normalize("  Jane   Tan  "))
	assert.Equal(t, "jane tan", Normalize("JANE TAN"))
}

func TestCache_Resolve_Unique(t *testing.T) {
	lister := &fakeLister{payload: []backendclient.Patient{{ID: 1, FirstName: "Jane", LastName: "Tan"}}}
	c := New(lister, time.Minute)

	res := c.Resolve(context.Background(), "Jane Tan")
	require.Equal(t, Unique, res.Resolution)
	assert.Equal(t, int64(1), res.Patient.ID)
}

func TestCache_Resolve_Ambiguous(t *testing.T) {
	lister := &fakeLister{payload: []backendclient.Patient{
		{ID: 1, FirstName: "John", LastName: "Tan"},
		{ID: 2, FirstName: "John", LastName: "Tan"},
	}}
	c := New(lister, time.Minute)

	res := c.Resolve(context.Background(), "John Tan")
	require.Equal(t, Ambiguous, res.Resolution)
	assert.Len(t, res.Candidates, 2)
}

func TestCache_Resolve_None(t *testing.T) {
	lister := &fakeLister{payload: nil}
	c := New(lister, time.Minute)

	res := c.Resolve(context.Background(), "Nobody Here")
	assert.Equal(t, None, res.Resolution)
}

func TestCache_Lookup(t *testing.T) {
	lister := &fakeLister{payload: []backendclient.Patient{{ID: 42, FirstName: "Jane", LastName: "Tan"}}}
	c := New(lister, time.Minute)

	p, ok := c.Lookup(context.Background(), 42)
	require.True(t, ok)
	assert.Equal(t, "Jane", p.FirstName)

	_, ok = c.Lookup(context.Background(), 99)
	assert.False(t, ok)
}

func TestCache_DoesNotRefetchWithinTTL(t *testing.T) {
	lister := &fakeLister{payload: []backendclient.Patient{{ID: 1, FirstName: "Jane", LastName: "Tan"}}}
	c := New(lister, time.Minute)

	c.Resolve(context.Background(), "Jane Tan")
	c.Resolve(context.Background(), "Jane Tan")

	assert.Equal(t, int32(1), atomic.LoadInt32(&lister.calls))
}

func TestCache_InvalidateForcesRefresh(t *testing.T) {
	lister := &fakeLister{payload: []backendclient.Patient{{ID: 1, FirstName: "Jane", LastName: "Tan"}}}
	c := New(lister, time.Minute)

	c.Resolve(context.Background(), "Jane Tan")
	c.Invalidate()
	c.Resolve(context.Background(), "Jane Tan")

	assert.Equal(t, int32(2), atomic.LoadInt32(&lister.calls))
}

func TestCache_RefreshFailureServesStaleSnapshot(t *testing.T) {
	lister := &fakeLister{payload: []backendclient.Patient{{ID: 1, FirstName: "Jane", LastName: "Tan"}}}
	c := New(lister, time.Millisecond)
	require.NoError(t, c.Refresh(context.Background()))

	lister.fail = true
	time.Sleep(2 * time.Millisecond)

	res := c.Resolve(context.Background(), "Jane Tan")
	assert.Equal(t, Unique, res.Resolution)
}
