// Package namecache maintains a TTL-bounded, single-flight-refreshed
// projection of the backend's patient list, indexed by normalized full name
// and by id.
package namecache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hydrochat/hydrochat/pkg/backendclient"
	"github.com/hydrochat/hydrochat/pkg/masking"
	"golang.org/x/sync/singleflight"
)

// Resolution tags the outcome of a name resolution.
type Resolution int

const (
	// None means no patient matches the given name.
	None Resolution = iota
	// Unique means exactly one patient matches.
	Unique
	// Ambiguous means more than one patient shares the name.
	Ambiguous
)

// ResolveResult is the outcome of Resolve.
type ResolveResult struct {
	Resolution Resolution
	Patient    *backendclient.Patient
	Candidates []backendclient.Patient
}

// Lister is the subset of the backend tool client the cache needs to
// refresh itself.
type Lister interface {
	ListPatients(ctx context.Context) backendclient.Result
}

// Cache is the Name Cache component (spec 4.3). Safe for concurrent use.
type Cache struct {
	lister Lister
	ttl    time.Duration

	mu        sync.RWMutex
	byName    map[string][]backendclient.Patient
	byID      map[int64]backendclient.Patient
	loadedAt  time.Time
	stale     bool

	group singleflight.Group
}

// New creates a Cache that refreshes from lister, with the given TTL.
func New(lister Lister, ttl time.Duration) *Cache {
	return &Cache{
		lister: lister,
		ttl:    ttl,
		byName: make(map[string][]backendclient.Patient),
		byID:   make(map[int64]backendclient.Patient),
		stale:  true,
	}
}

// Normalize lowercases and whitespace-collapses a full name, per spec 4.3.
func Normalize(fullName string) string {
	fields := strings.Fields(fullName)
	return strings.ToLower(strings.Join(fields, " "))
}

// Invalidate marks the cache stale; the next read triggers a refresh.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.stale = true
	c.mu.Unlock()
}

// ensureFresh refreshes the cache if it is stale or past TTL, using a
// single-flight guard so concurrent readers do not cause a thundering herd.
// On refresh failure, the previous snapshot continues to be served.
func (c *Cache) ensureFresh(ctx context.Context) {
	c.mu.RLock()
	needsRefresh := c.stale || time.Since(c.loadedAt) > c.ttl
	c.mu.RUnlock()
	if !needsRefresh {
		return
	}

	_, _, _ = c.group.Do("refresh", func() (any, error) {
		c.mu.RLock()
		stillStale := c.stale || time.Since(c.loadedAt) > c.ttl
		c.mu.RUnlock()
		if !stillStale {
			return nil, nil
		}
		return nil, c.Refresh(ctx)
	})
}

// Refresh lists all patients from the backend atomically and replaces both
// indexes. On failure the previous snapshot is left untouched and an error
// is logged, per spec 4.3.
func (c *Cache) Refresh(ctx context.Context) error {
	res := c.lister.ListPatients(ctx)
	if res.Outcome != backendclient.Ok {
		masking.LogError("", "namecache", "refresh failed, serving stale snapshot", "outcome", fmt.Sprint(res.Outcome))
		return fmt.Errorf("namecache: refresh failed: %v", res.Err)
	}
	patients, _ := res.Payload.([]backendclient.Patient)

	byName := make(map[string][]backendclient.Patient, len(patients))
	byID := make(map[int64]backendclient.Patient, len(patients))
	for _, p := range patients {
		key := Normalize(p.FirstName + " " + p.LastName)
		byName[key] = append(byName[key], p)
		byID[p.ID] = p
	}

	c.mu.Lock()
	c.byName = byName
	c.byID = byID
	c.loadedAt = time.Now()
	c.stale = false
	c.mu.Unlock()
	return nil
}

// Resolve looks up patients by normalized full name (spec 4.3). The set is
// exact: identically-named patients are kept distinct, never silently
// disambiguated.
func (c *Cache) Resolve(ctx context.Context, fullName string) ResolveResult {
	c.ensureFresh(ctx)

	c.mu.RLock()
	defer c.mu.RUnlock()

	matches := c.byName[Normalize(fullName)]
	switch len(matches) {
	case 0:
		return ResolveResult{Resolution: None}
	case 1:
		p := matches[0]
		return ResolveResult{Resolution: Unique, Patient: &p}
	default:
		candidates := make([]backendclient.Patient, len(matches))
		copy(candidates, matches)
		return ResolveResult{Resolution: Ambiguous, Candidates: candidates}
	}
}

// Lookup finds a patient by id (spec 4.3).
func (c *Cache) Lookup(ctx context.Context, id int64) (backendclient.Patient, bool) {
	c.ensureFresh(ctx)

	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.byID[id]
	return p, ok
}

// IsFresh reports whether the cache currently holds a non-stale, within-TTL
// snapshot that a caller may read via Snapshot without forcing a refresh.
func (c *Cache) IsFresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.stale && time.Since(c.loadedAt) <= c.ttl
}

// Snapshot returns all cached patients without forcing a refresh check,
// intended for callers that already know the cache is fresh enough (e.g.
// pagination over a list already fetched this turn).
func (c *Cache) Snapshot() []backendclient.Patient {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]backendclient.Patient, 0, len(c.byID))
	for _, p := range c.byID {
		out = append(out, p)
	}
	return out
}
