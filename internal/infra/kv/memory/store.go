// Package memory provides a process-local Store backed by go-cache.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/totegamma/greenledger/internal/domain"
	"github.com/totegamma/greenledger/internal/usecase"
)

// Store keeps one dataset in memory. Entries never expire individually; the
// dataset deadline archives all of them at once.
type Store struct {
	mu       sync.RWMutex
	items    *cache.Cache
	deadline time.Time
	now      func() time.Time
}

type Option func(*Store)

// WithClock overrides the wall clock used for lifetime checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		items: cache.New(cache.NoExpiration, 0),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deadline returns the current dataset expiry; zero if never extended.
func (s *Store) Deadline() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deadline
}

func (s *Store) archived() bool {
	return !s.deadline.IsZero() && s.now().After(s.deadline)
}

func (s *Store) View(ctx context.Context, fn func(tx usecase.Reader) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.archived() {
		return domain.ErrArchived
	}
	return fn(&txn{store: s})
}

func (s *Store) Update(ctx context.Context, fn func(tx usecase.Txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.archived() {
		return domain.ErrArchived
	}

	tx := &txn{store: s, writes: map[string][]byte{}}
	if err := fn(tx); err != nil {
		return err
	}

	for key, value := range tx.writes {
		s.items.Set(key, value, cache.NoExpiration)
	}

	if tx.extend != nil {
		now := s.now()
		if tx.extend.NeedsExtension(s.deadline, now) {
			s.deadline = now.Add(tx.extend.ExtendTo)
		}
	}

	return nil
}

func (s *Store) Restore(ctx context.Context, lifetime domain.Lifetime) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deadline = s.now().Add(lifetime.ExtendTo)
	return nil
}

type txn struct {
	store  *Store
	writes map[string][]byte
	extend *domain.Lifetime
}

func (t *txn) Get(key string) ([]byte, bool, error) {
	if value, ok := t.writes[key]; ok {
		return clone(value), true, nil
	}
	x, found := t.store.items.Get(key)
	if !found {
		return nil, false, nil
	}
	return clone(x.([]byte)), true, nil
}

func (t *txn) Set(key string, value []byte) {
	t.writes[key] = clone(value)
}

func (t *txn) Extend(lifetime domain.Lifetime) {
	t.extend = &lifetime
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var _ usecase.Store = (*Store)(nil)
