// Package cache holds the process-wide session table snapshot. The
// table is fetched from the store at most once per TTL window and
// treated as immutable between fetches; every render reads the same
// snapshot without coordination beyond the cache's own lock.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/shopview/shopview/internal/session"
)

// Loader supplies the raw session documents.
type Loader interface {
	Load(ctx context.Context) ([]session.Document, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) ([]session.Document, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context) ([]session.Document, error) {
	return f(ctx)
}

// Snapshot caches the normalized session table for a fixed TTL. The
// clock is injected so tests can drive expiry.
type Snapshot struct {
	loader Loader
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	rows      session.Table
	fetchedAt time.Time
	valid     bool
}

// Option configures a Snapshot.
type Option func(*Snapshot)

// WithClock overrides the time source. Nil is ignored.
func WithClock(now func() time.Time) Option {
	return func(s *Snapshot) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Snapshot over the given loader. The first Get fetches;
// later Gets reuse the table until ttl elapses.
func New(loader Loader, ttl time.Duration, opts ...Option) *Snapshot {
	s := &Snapshot{
		loader: loader,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the cached table, fetching and normalizing from the
// loader when the cache is empty or expired. Load failures are not
// cached: the next Get retries.
func (s *Snapshot) Get(ctx context.Context) (session.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.valid && s.now().Sub(s.fetchedAt) < s.ttl {
		return s.rows, nil
	}

	docs, err := s.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.rows = session.NormalizeAll(docs)
	s.fetchedAt = s.now()
	s.valid = true
	return s.rows, nil
}

// Invalidate drops the cached table; the next Get refetches.
func (s *Snapshot) Invalidate() {
	s.mu.Lock()
	s.valid = false
	s.mu.Unlock()
}

// FetchedAt reports when the current table was fetched, and whether a
// table is cached at all.
func (s *Snapshot) FetchedAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchedAt, s.valid
}

// TTL returns the configured time-to-live.
func (s *Snapshot) TTL() time.Duration {
	return s.ttl
}
