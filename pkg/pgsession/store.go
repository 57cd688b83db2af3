package pgsession

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hydrochat/hydrochat/pkg/masking"
	"github.com/hydrochat/hydrochat/pkg/session"
)

// Store is a Postgres-backed session.Store (spec 4.5/6's "persisted state
// layout" allowance). It has no LRU cap. TTL expiry runs synchronously on access,
// matching the in-memory store's eviction-locking rule (spec 5) rather than
// a background sweeper, even though the data now survives process restarts.
type Store struct {
	pool *pgxpool.Pool
	ttl  time.Duration

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New wraps an already-migrated Postgres connection pool as a session.Store.
func New(pool *pgxpool.Pool, ttl time.Duration) *Store {
	return &Store{pool: pool, ttl: ttl, locks: map[string]*sync.Mutex{}}
}

// Acquire serializes concurrent turns for the same conversation_id, the
// same lock-per-id idiom the in-memory store uses (spec 5).
func (s *Store) Acquire(id string) func() {
	s.locksMu.Lock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	s.locksMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Get loads the session for id, returning a fresh State if absent or
// expired past ttl.
func (s *Store) Get(id string, now time.Time) *session.State {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var lastTouched time.Time
	var stateJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT last_touched_at, state_json FROM hydrochat_sessions WHERE conversation_id = $1`,
		id,
	).Scan(&lastTouched, &stateJSON)
	if err != nil {
		return session.New(id, now)
	}

	if s.ttl > 0 && now.Sub(lastTouched) > s.ttl {
		s.Delete(id)
		return session.New(id, now)
	}

	st, err := session.Deserialize(stateJSON)
	if err != nil {
		masking.LogError(id, "pgsession.Get", "failed to deserialize persisted state, starting fresh", "error", err)
		return session.New(id, now)
	}
	return st
}

// Put upserts s.
func (s *Store) Put(st *session.State) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := st.Serialize()
	if err != nil {
		masking.LogError(st.ConversationID, "pgsession.Put", "failed to serialize state, not persisted", "error", err)
		return
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO hydrochat_sessions (conversation_id, last_touched_at, state_json)
		VALUES ($1, $2, $3)
		ON CONFLICT (conversation_id) DO UPDATE
		SET last_touched_at = EXCLUDED.last_touched_at, state_json = EXCLUDED.state_json
	`, st.ConversationID, st.LastTouchedAt, data)
	if err != nil {
		masking.LogError(st.ConversationID, "pgsession.Put", "failed to persist state", "error", err)
	}
}

// Delete removes the session for id, if present.
func (s *Store) Delete(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = s.pool.Exec(ctx, `DELETE FROM hydrochat_sessions WHERE conversation_id = $1`, id)
}

// Stats reports current occupancy; MaxEntries is unbounded for the
// Postgres-backed store (no LRU cap, unlike the in-memory store).
func (s *Store) Stats() session.Stats {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var count int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM hydrochat_sessions`).Scan(&count); err != nil {
		return session.Stats{TTL: s.ttl}
	}
	return session.Stats{Entries: count, MaxEntries: 0, TTL: s.ttl}
}
